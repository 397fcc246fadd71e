package models

// GeneralSettings holds site identity and registration options.
type GeneralSettings struct {
	SiteName             string   `json:"site_name" yaml:"site_name" validate:"required,max=120"`
	SiteDescription      string   `json:"site_description" yaml:"site_description" validate:"max=255"`
	LogoURL              string   `json:"logo_url" yaml:"logo_url" validate:"omitempty,max=512"`
	PrimaryColor         string   `json:"primary_color" yaml:"primary_color" validate:"required,hexcolor"`
	SecondaryColor       string   `json:"secondary_color" yaml:"secondary_color" validate:"required,hexcolor"`
	EnableRegistrations  bool     `json:"enable_registrations" yaml:"enable_registrations"`
	RequireAdminApproval bool     `json:"require_admin_approval" yaml:"require_admin_approval"`
	DefaultUserRole      UserRole `json:"default_user_role" yaml:"default_user_role" validate:"required,oneof=admin instructor learner"`
}

// NotificationSettings toggles email notifications.
type NotificationSettings struct {
	EnableEmailNotifications       bool   `json:"enable_email_notifications" yaml:"enable_email_notifications"`
	CourseEnrollmentNotification   bool   `json:"course_enrollment_notification" yaml:"course_enrollment_notification"`
	AssessmentReminderNotification bool   `json:"assessment_reminder_notification" yaml:"assessment_reminder_notification"`
	AchievementNotification        bool   `json:"achievement_notification" yaml:"achievement_notification"`
	SystemUpdatesNotification      bool   `json:"system_updates_notification" yaml:"system_updates_notification"`
	EmailDigestFrequency           string `json:"email_digest_frequency" yaml:"email_digest_frequency" validate:"required,oneof=never daily weekly"`
}

// SecuritySettings holds password and session policy.
type SecuritySettings struct {
	PasswordMinLength        int  `json:"password_min_length" yaml:"password_min_length" validate:"min=6,max=64"`
	RequireSpecialCharacters bool `json:"require_special_characters" yaml:"require_special_characters"`
	RequireNumbers           bool `json:"require_numbers" yaml:"require_numbers"`
	PasswordExpiryDays       int  `json:"password_expiry_days" yaml:"password_expiry_days" validate:"min=0,max=365"`
	SessionTimeoutMinutes    int  `json:"session_timeout_minutes" yaml:"session_timeout_minutes" validate:"min=5,max=1440"`
	MaxLoginAttempts         int  `json:"max_login_attempts" yaml:"max_login_attempts" validate:"min=1,max=20"`
	TwoFactorAuthentication  bool `json:"two_factor_authentication" yaml:"two_factor_authentication"`
}

// Settings groups every settings section.
type Settings struct {
	General       GeneralSettings      `json:"general" yaml:"general"`
	Notifications NotificationSettings `json:"notifications" yaml:"notifications"`
	Security      SecuritySettings     `json:"security" yaml:"security"`
}
