package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// CourseRepository serves the course catalog and enrollments from memory.
type CourseRepository struct {
	m *Memory
}

// NewCourseRepository binds a course repository to m.
func NewCourseRepository(m *Memory) *CourseRepository {
	return &CourseRepository{m: m}
}

// List returns every catalog entry in insertion order.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append(make([]models.Course, 0, len(r.m.courses)), r.m.courses...), nil
}

// FindByID returns a catalog entry or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, c := range r.m.courses {
		if c.ID == id {
			course := c
			return &course, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ListEnrollments returns the enrollments of userID, or all of them when userID is empty.
func (r *CourseRepository) ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.Enrollment, 0)
	for _, u := range r.m.users {
		if userID != "" && u.ID != userID {
			continue
		}
		for _, c := range r.m.courses {
			if e, ok := r.m.enrollments[membership{u.ID, c.ID}]; ok {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// FindEnrollment returns one enrollment or sql.ErrNoRows.
func (r *CourseRepository) FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	e, ok := r.m.enrollments[membership{userID, courseID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

// CreateEnrollment inserts an enrollment. An existing pair yields ErrDuplicate.
func (r *CourseRepository) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := membership{e.UserID, e.CourseID}
	if _, exists := r.m.enrollments[key]; exists {
		return fmt.Errorf("create enrollment: %w", ErrDuplicate)
	}
	now := r.m.now()
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = now
	}
	e.UpdatedAt = now
	r.m.enrollments[key] = *e
	return nil
}

// UpdateEnrollment replaces the progress fields of an existing enrollment.
func (r *CourseRepository) UpdateEnrollment(ctx context.Context, e *models.Enrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := membership{e.UserID, e.CourseID}
	current, ok := r.m.enrollments[key]
	if !ok {
		return sql.ErrNoRows
	}
	current.Progress = e.Progress
	current.CompletedAt = e.CompletedAt
	current.UpdatedAt = r.m.now()
	r.m.enrollments[key] = current
	*e = current
	return nil
}
