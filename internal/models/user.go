package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleInstructor UserRole = "instructor"
	RoleLearner    UserRole = "learner"
)

// Roles lists every role in display order.
var Roles = []UserRole{RoleAdmin, RoleInstructor, RoleLearner}

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User represents an application user stored in the users table.
type User struct {
	ID               string     `db:"id" json:"id" yaml:"id"`
	Name             string     `db:"name" json:"name" yaml:"name"`
	Email            string     `db:"email" json:"email" yaml:"email"`
	PasswordHash     string     `db:"password_hash" json:"-" yaml:"-"`
	Role             UserRole   `db:"role" json:"role" yaml:"role"`
	Status           UserStatus `db:"status" json:"status" yaml:"status"`
	Level            int        `db:"level" json:"level" yaml:"level"`
	TotalPoints      int        `db:"total_points" json:"total_points" yaml:"total_points"`
	EnrolledCourses  int        `db:"enrolled_courses" json:"enrolled_courses" yaml:"-"`
	CompletedCourses int        `db:"completed_courses" json:"completed_courses" yaml:"-"`
	LastLoginAt      *time.Time `db:"last_login_at" json:"last_login_at,omitempty" yaml:"last_login_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Active reports whether the account is enabled.
func (u User) Active() bool {
	return u.Status == UserStatusActive
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Role     UserRole `json:"role" validate:"required,oneof=admin instructor learner"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
}

// ChangeRoleRequest updates a user's role.
type ChangeRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=admin instructor learner"`
}

// ChangeStatusRequest activates or deactivates a user.
type ChangeStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=active inactive"`
}
