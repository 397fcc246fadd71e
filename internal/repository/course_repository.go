package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

const courseColumns = `id, title, description, level, college, modules, thumbnail, created_at`

const enrollmentColumns = `user_id, course_id, progress, enrolled_at, completed_at, updated_at`

// CourseRepository reads the course catalog and tracks enrollments in postgres.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns the whole catalog ordered by creation time.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	return selectAll[models.Course](ctx, r.db, "list courses",
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at ASC, id ASC`)
}

// FindByID returns one catalog entry.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return getOne[models.Course](ctx, r.db, "find course",
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
}

// ListEnrollments returns the enrollments of userID, or all enrollments when userID is empty.
func (r *CourseRepository) ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	return selectAll[models.Enrollment](ctx, r.db, "list enrollments",
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE ($1 = '' OR user_id = $1) ORDER BY user_id, enrolled_at`, userID)
}

func (r *CourseRepository) FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	return getOne[models.Enrollment](ctx, r.db, "find enrollment",
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID)
}

// CreateEnrollment inserts an enrollment row. The primary key rejects a second enrollment.
func (r *CourseRepository) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	now := time.Now().UTC()
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = now
	}
	e.UpdatedAt = now
	_, err := namedExec(ctx, r.db, "create enrollment",
		`INSERT INTO enrollments (`+enrollmentColumns+`) VALUES (:user_id, :course_id, :progress, :enrolled_at, :completed_at, :updated_at)`, e)
	return err
}

// UpdateEnrollment stores progress and completion time.
func (r *CourseRepository) UpdateEnrollment(ctx context.Context, e *models.Enrollment) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := namedExec(ctx, r.db, "update enrollment",
		`UPDATE enrollments SET progress = :progress, completed_at = :completed_at, updated_at = :updated_at WHERE user_id = :user_id AND course_id = :course_id`, e)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
