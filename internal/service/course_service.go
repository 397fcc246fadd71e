package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)
	FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, e *models.Enrollment) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// CourseService lists the course catalog from a learner's point of view and manages enrollments.
type CourseService struct {
	repo      courseRepository
	audit     auditRecorder
	cache     cacheInvalidator
	catalog   *Catalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService. audit and cache may be nil.
func NewCourseService(repo courseRepository, audit auditRecorder, cache cacheInvalidator, catalog *Catalog, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, audit: audit, cache: cache, catalog: catalogOrDefault(catalog), validator: validate, logger: logger}
}

// List returns the catalog joined with userID's enrollments, filtered, ordered and paged.
func (s *CourseService) List(ctx context.Context, userID string, q ListQuery) (*ListResult[models.Course], error) {
	courses, err := s.forLearner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return runList(s.catalog, "courses", s.catalog.Courses, courses, q)
}

// Options returns the distinct levels and colleges of the catalog.
func (s *CourseService) Options(ctx context.Context) (*models.CourseFilterOptions, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	levels, err := facetValues(s.catalog.Courses, courses, CourseKeyLevel)
	if err != nil {
		return nil, err
	}
	colleges, err := facetValues(s.catalog.Courses, courses, CourseKeyCollege)
	if err != nil {
		return nil, err
	}
	return &models.CourseFilterOptions{
		Levels:   levels,
		Colleges: colleges,
		Statuses: []string{
			"all",
			string(models.CourseStatusEnrolled),
			string(models.CourseStatusInProgress),
			string(models.CourseStatusCompleted),
			string(models.CourseStatusNotEnrolled),
		},
	}, nil
}

// Get returns one course with userID's progress.
func (s *CourseService) Get(ctx context.Context, userID, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	enrollment, err := s.repo.FindEnrollment(ctx, userID, courseID)
	switch {
	case err == nil:
		course.IsEnrolled = true
		course.Progress = enrollment.Progress
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return course, nil
}

// Enroll registers userID on a course with zero progress.
func (s *CourseService) Enroll(ctx context.Context, userID, courseID string, meta models.RequestMeta) (*models.Course, error) {
	course, err := s.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsEnrolled {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled in "+course.Title)
	}

	enrollment := &models.Enrollment{UserID: userID, CourseID: courseID}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.recordAudit(ctx, userID, courseID, meta)
	s.invalidate(ctx)

	course.IsEnrolled = true
	course.Progress = 0
	return course, nil
}

// UpdateProgress sets userID's completion percentage on an enrolled course.
func (s *CourseService) UpdateProgress(ctx context.Context, userID, courseID string, req models.UpdateProgressRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	enrollment, err := s.repo.FindEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not enrolled in course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	enrollment.Progress = *req.Progress
	enrollment.CompletedAt = nil
	if enrollment.Completed() {
		now := time.Now().UTC()
		enrollment.CompletedAt = &now
	}
	if err := s.repo.UpdateEnrollment(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}
	s.invalidate(ctx)

	return s.Get(ctx, userID, courseID)
}

// Stats returns the course summary of userID without listing records.
func (s *CourseService) Stats(ctx context.Context, userID string) (map[string]int, error) {
	courses, err := s.forLearner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.Courses.Summarize(courses), nil
}

// EnrollmentSummary summarizes every enrollment of every learner.
func (s *CourseService) EnrollmentSummary(ctx context.Context) (map[string]int, error) {
	enrollments, err := s.repo.ListEnrollments(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return s.catalog.Enrollments.Summarize(enrollments), nil
}

// Completions counts completed enrollments across every learner.
func (s *CourseService) Completions(ctx context.Context) (int, error) {
	summary, err := s.EnrollmentSummary(ctx)
	if err != nil {
		return 0, err
	}
	return summary["completed"], nil
}

func (s *CourseService) forLearner(ctx context.Context, userID string) ([]models.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if userID == "" {
		return courses, nil
	}
	enrollments, err := s.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	progress := make(map[string]int, len(enrollments))
	for _, e := range enrollments {
		progress[e.CourseID] = e.Progress
	}
	for i := range courses {
		if p, ok := progress[courses[i].ID]; ok {
			courses[i].IsEnrolled = true
			courses[i].Progress = p
		}
	}
	return courses, nil
}

func (s *CourseService) recordAudit(ctx context.Context, userID, courseID string, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionCourseEnroll,
		Resource:   "course",
		ResourceID: &courseID,
		NewValues:  []byte(fmt.Sprintf(`{"course_id":%q}`, courseID)),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
