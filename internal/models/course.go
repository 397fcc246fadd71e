package models

import "time"

// CourseStatus is the learner-facing state of a course, derived from enrollment and progress.
type CourseStatus string

const (
	CourseStatusNotEnrolled CourseStatus = "not_enrolled"
	CourseStatusEnrolled    CourseStatus = "enrolled"
	CourseStatusInProgress  CourseStatus = "in_progress"
	CourseStatusCompleted   CourseStatus = "completed"
)

// Course is a catalog entry joined with the requesting learner's enrollment.
type Course struct {
	ID          string    `db:"id" json:"id" yaml:"id"`
	Title       string    `db:"title" json:"title" yaml:"title"`
	Description string    `db:"description" json:"description" yaml:"description"`
	Level       string    `db:"level" json:"level" yaml:"level"`
	College     string    `db:"college" json:"college" yaml:"college"`
	Modules     int       `db:"modules" json:"modules" yaml:"modules"`
	Thumbnail   string    `db:"thumbnail" json:"thumbnail,omitempty" yaml:"thumbnail"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" yaml:"-"`

	Progress   int  `db:"-" json:"progress" yaml:"-"`
	IsEnrolled bool `db:"-" json:"is_enrolled" yaml:"-"`
}

// Status resolves the learner-facing status. A course at 100% that was never enrolled stays not_enrolled.
func (c Course) Status() CourseStatus {
	switch {
	case !c.IsEnrolled:
		return CourseStatusNotEnrolled
	case c.Progress >= 100:
		return CourseStatusCompleted
	case c.Progress > 0:
		return CourseStatusInProgress
	default:
		return CourseStatusEnrolled
	}
}

// Enrollment links a learner to a course with their completion percentage.
type Enrollment struct {
	UserID      string     `db:"user_id" json:"user_id" yaml:"user_id"`
	CourseID    string     `db:"course_id" json:"course_id" yaml:"course_id"`
	Progress    int        `db:"progress" json:"progress" yaml:"progress"`
	EnrolledAt  time.Time  `db:"enrolled_at" json:"enrolled_at" yaml:"-"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty" yaml:"-"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Completed reports whether the enrollment reached full progress.
func (e Enrollment) Completed() bool {
	return e.Progress >= 100
}

// UpdateProgressRequest sets a completion percentage.
type UpdateProgressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

// CourseFilterOptions lists the distinct values usable as course criteria.
type CourseFilterOptions struct {
	Levels   []string `json:"levels"`
	Colleges []string `json:"colleges"`
	Statuses []string `json:"statuses"`
}
