package models

import "time"

// RequirementType classifies an MVK requirement.
type RequirementType string

const (
	RequirementTypeCourse     RequirementType = "course"
	RequirementTypeAssessment RequirementType = "assessment"
)

// RequirementStatus is the learner's completion state for one requirement.
type RequirementStatus string

const (
	RequirementNotStarted RequirementStatus = "not_started"
	RequirementInProgress RequirementStatus = "in_progress"
	RequirementCompleted  RequirementStatus = "completed"
)

// StatusForProgress derives the requirement status from a percentage.
func StatusForProgress(progress int) RequirementStatus {
	switch {
	case progress >= 100:
		return RequirementCompleted
	case progress <= 0:
		return RequirementNotStarted
	default:
		return RequirementInProgress
	}
}

// Requirement is a minimum viable knowledge item joined with the learner's progress.
type Requirement struct {
	ID          string          `db:"id" json:"id" yaml:"id"`
	Title       string          `db:"title" json:"title" yaml:"title"`
	Description string          `db:"description" json:"description" yaml:"description"`
	Type        RequirementType `db:"type" json:"type" yaml:"type"`
	College     string          `db:"college" json:"college" yaml:"college"`
	Level       string          `db:"level" json:"level" yaml:"level"`
	IsRequired  bool            `db:"is_required" json:"is_required" yaml:"is_required"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at" yaml:"-"`

	Progress      int               `db:"-" json:"progress" yaml:"-"`
	Status        RequirementStatus `db:"-" json:"status" yaml:"-"`
	CompletedDate *time.Time        `db:"-" json:"completed_date,omitempty" yaml:"-"`
}

// RequirementProgress stores one learner's progress against a requirement.
type RequirementProgress struct {
	UserID        string            `db:"user_id" json:"user_id" yaml:"user_id"`
	RequirementID string            `db:"requirement_id" json:"requirement_id" yaml:"requirement_id"`
	Progress      int               `db:"progress" json:"progress" yaml:"progress"`
	Status        RequirementStatus `db:"status" json:"status" yaml:"-"`
	CompletedDate *time.Time        `db:"completed_date" json:"completed_date,omitempty" yaml:"completed_date"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at" yaml:"-"`
}

// CollegeProgress aggregates a learner's MVK progress within one college.
type CollegeProgress struct {
	College   string `json:"college"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Progress  int    `json:"progress"`
}
