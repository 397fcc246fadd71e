package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/export"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
	"github.com/noah-isme/ace-lms-api/pkg/storage"
)

type reportUserSource interface {
	ListAll(ctx context.Context) ([]models.User, error)
}

type reportCourseSource interface {
	List(ctx context.Context) ([]models.Course, error)
	ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)
}

type reportRequirementSource interface {
	List(ctx context.Context) ([]models.Requirement, error)
	ListProgress(ctx context.Context, userID string) ([]models.RequirementProgress, error)
}

// ReportSources are the collections report datasets are built from.
type ReportSources struct {
	Users        reportUserSource
	Courses      reportCourseSource
	Requirements reportRequirementSource
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	sources   ReportSources
	storage   fileStorage
	renderers map[models.ReportFormat]export.Renderer
	signer    *storage.SignedURLSigner
	catalog   *Catalog
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Without renderers, CSV and PDF are registered.
func NewExportService(sources ReportSources, store fileStorage, signer *storage.SignedURLSigner, catalog *Catalog, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byFormat := make(map[models.ReportFormat]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[models.ReportFormat(r.Extension())] = r
	}
	return &ExportService{
		sources:   sources,
		storage:   store,
		renderers: byFormat,
		signer:    signer,
		catalog:   catalogOrDefault(catalog),
		logger:    logger,
		cfg:       cfg,
	}
}

// Supports reports whether a renderer is registered for format.
func (s *ExportService) Supports(format models.ReportFormat) bool {
	_, ok := s.renderers[format]
	return ok
}

// ContentType returns the MIME type of format.
func (s *ExportService) ContentType(format models.ReportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// ValidateCriteria checks criteria against the engine backing reportType.
func (s *ExportService) ValidateCriteria(reportType models.ReportType, criteria map[string]string) error {
	c := filter.Criteria(criteria)
	switch reportType {
	case models.ReportTypeUserActivity:
		return s.catalog.Users.Validate(c)
	case models.ReportTypeCourseCompletion, models.ReportTypeContentEngagement:
		return s.catalog.Courses.Validate(c)
	case models.ReportTypeMVKProgress:
		if err := s.catalog.Requirements.Validate(c); err != nil {
			return err
		}
		return rejectLearnerCriteria(c)
	case models.ReportTypeAssessmentResults:
		return s.catalog.Requirements.Validate(c)
	default:
		return fmt.Errorf("unsupported report type %s", reportType)
	}
}

// Generate builds the dataset of job, renders it and stores the result behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	dataset, err := s.BuildDataset(ctx, job.Type, job.Params.Criteria)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Sugar().Infow("report rendered", "job_id", job.ID, "type", job.Type, "format", job.Params.Format, "rows", len(dataset.Rows), "bytes", len(payload))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.SignedToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, timestamp, sanitizeFilename(job.ID), ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// BuildDataset assembles the rows and summary of one report type.
func (s *ExportService) BuildDataset(ctx context.Context, reportType models.ReportType, criteria map[string]string) (export.Dataset, error) {
	info, ok := models.LookupReportType(reportType)
	if !ok {
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", reportType)
	}
	c := filter.Criteria(criteria)

	var (
		dataset export.Dataset
		err     error
	)
	switch reportType {
	case models.ReportTypeUserActivity:
		dataset, err = s.buildUserActivity(ctx, c)
	case models.ReportTypeCourseCompletion:
		dataset, err = s.buildCourseCompletion(ctx, c)
	case models.ReportTypeMVKProgress:
		dataset, err = s.buildMVKProgress(ctx, c)
	case models.ReportTypeAssessmentResults:
		dataset, err = s.buildAssessmentResults(ctx, c)
	case models.ReportTypeContentEngagement:
		dataset, err = s.buildContentEngagement(ctx, c)
	}
	if err != nil {
		return export.Dataset{}, err
	}
	dataset.Title = info.Name + " Report"
	return dataset, nil
}

type enrollmentTally struct {
	enrolled    int
	completed   int
	inProgress  int
	progressSum int
}

func (t enrollmentTally) averageProgress() int {
	if t.enrolled == 0 {
		return 0
	}
	return (t.progressSum*2 + t.enrolled) / (t.enrolled * 2)
}

func (t *enrollmentTally) add(progress int) {
	t.enrolled++
	t.progressSum += progress
	switch {
	case progress >= 100:
		t.completed++
	case progress > 0:
		t.inProgress++
	}
}

func (s *ExportService) buildUserActivity(ctx context.Context, criteria filter.Criteria) (export.Dataset, error) {
	users, err := s.sources.Users.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list users: %w", err)
	}
	enrollments, err := s.sources.Courses.ListEnrollments(ctx, "")
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list enrollments: %w", err)
	}
	byUser := make(map[string]*enrollmentTally)
	for _, e := range enrollments {
		t, ok := byUser[e.UserID]
		if !ok {
			t = &enrollmentTally{}
			byUser[e.UserID] = t
		}
		t.add(e.Progress)
	}

	visible := s.catalog.Users.Filter(users, criteria)
	headers := []string{"Name", "Email", "Role", "Status", "Level", "Points", "Enrolled Courses", "Completed Courses", "Last Login"}
	rows := make([]map[string]string, 0, len(visible))
	for _, u := range visible {
		t := byUser[u.ID]
		if t == nil {
			t = &enrollmentTally{}
		}
		rows = append(rows, map[string]string{
			"Name":              u.Name,
			"Email":             u.Email,
			"Role":              string(u.Role),
			"Status":            string(u.Status),
			"Level":             strconv.Itoa(u.Level),
			"Points":            strconv.Itoa(u.TotalPoints),
			"Enrolled Courses":  strconv.Itoa(t.enrolled),
			"Completed Courses": strconv.Itoa(t.completed),
			"Last Login":        formatReportTime(u.LastLoginAt),
		})
	}
	return export.Dataset{
		Headers:      headers,
		Rows:         rows,
		Summary:      s.catalog.Users.Summarize(visible),
		SummaryOrder: s.catalog.Users.MetricNames(),
	}, nil
}

func (s *ExportService) courseTallies(ctx context.Context, criteria filter.Criteria) ([]models.Course, map[string]*enrollmentTally, int, error) {
	courses, err := s.sources.Courses.List(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("list courses: %w", err)
	}
	enrollments, err := s.sources.Courses.ListEnrollments(ctx, "")
	if err != nil {
		return nil, nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	byCourse := make(map[string]*enrollmentTally, len(courses))
	for _, c := range courses {
		byCourse[c.ID] = &enrollmentTally{}
	}
	learners := map[string]struct{}{}
	for _, e := range enrollments {
		if t, ok := byCourse[e.CourseID]; ok {
			t.add(e.Progress)
			learners[e.UserID] = struct{}{}
		}
	}
	return s.catalog.Courses.Filter(courses, criteria), byCourse, len(learners), nil
}

func (s *ExportService) buildCourseCompletion(ctx context.Context, criteria filter.Criteria) (export.Dataset, error) {
	courses, tallies, _, err := s.courseTallies(ctx, criteria)
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"Course", "College", "Level", "Enrolled", "Completed", "Completion Rate (%)", "Average Progress (%)"}
	rows := make([]map[string]string, 0, len(courses))
	var enrolled, completed int
	for _, c := range courses {
		t := tallies[c.ID]
		rate := 0
		if t.enrolled > 0 {
			rate = t.completed * 100 / t.enrolled
		}
		enrolled += t.enrolled
		completed += t.completed
		rows = append(rows, map[string]string{
			"Course":               c.Title,
			"College":              c.College,
			"Level":                c.Level,
			"Enrolled":             strconv.Itoa(t.enrolled),
			"Completed":            strconv.Itoa(t.completed),
			"Completion Rate (%)":  strconv.Itoa(rate),
			"Average Progress (%)": strconv.Itoa(t.averageProgress()),
		})
	}
	return export.Dataset{
		Headers:      headers,
		Rows:         rows,
		Summary:      map[string]int{"courses": len(courses), "enrollments": enrolled, "completions": completed},
		SummaryOrder: []string{"courses", "enrollments", "completions"},
	}, nil
}

func (s *ExportService) buildContentEngagement(ctx context.Context, criteria filter.Criteria) (export.Dataset, error) {
	courses, tallies, learners, err := s.courseTallies(ctx, criteria)
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"Course", "College", "Modules", "Learners", "Active Learners", "Completed", "Average Progress (%)"}
	rows := make([]map[string]string, 0, len(courses))
	modules := 0
	for _, c := range courses {
		t := tallies[c.ID]
		modules += c.Modules
		rows = append(rows, map[string]string{
			"Course":               c.Title,
			"College":              c.College,
			"Modules":              strconv.Itoa(c.Modules),
			"Learners":             strconv.Itoa(t.enrolled),
			"Active Learners":      strconv.Itoa(t.inProgress),
			"Completed":            strconv.Itoa(t.completed),
			"Average Progress (%)": strconv.Itoa(t.averageProgress()),
		})
	}
	return export.Dataset{
		Headers:      headers,
		Rows:         rows,
		Summary:      map[string]int{"courses": len(courses), "modules": modules, "learners": learners},
		SummaryOrder: []string{"courses", "modules", "learners"},
	}, nil
}

// rejectLearnerCriteria refuses status and progress on the per-requirement report. Its rows
// aggregate every learner, so those fields have no single value there.
func rejectLearnerCriteria(c filter.Criteria) error {
	for _, key := range []string{RequirementKeyStatus, "progress"} {
		if v := c[key]; v != "" && !(key == RequirementKeyStatus && v == "all") {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is tracked per learner and cannot narrow the mvk_progress report", key))
		}
	}
	return nil
}

func (s *ExportService) buildMVKProgress(ctx context.Context, criteria filter.Criteria) (export.Dataset, error) {
	if err := rejectLearnerCriteria(criteria); err != nil {
		return export.Dataset{}, err
	}
	requirements, err := s.sources.Requirements.List(ctx)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list requirements: %w", err)
	}
	progress, err := s.sources.Requirements.ListProgress(ctx, "")
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list requirement progress: %w", err)
	}
	byRequirement := make(map[string]*enrollmentTally, len(requirements))
	for _, r := range requirements {
		byRequirement[r.ID] = &enrollmentTally{}
	}
	for _, p := range progress {
		if t, ok := byRequirement[p.RequirementID]; ok {
			t.add(p.Progress)
		}
	}

	visible := s.catalog.Requirements.Filter(requirements, criteria)
	headers := []string{"Requirement", "College", "Level", "Type", "Learners Tracking", "Completed", "In Progress", "Average Progress (%)"}
	rows := make([]map[string]string, 0, len(visible))
	tracking, completed := 0, 0
	for _, r := range visible {
		t := byRequirement[r.ID]
		tracking += t.enrolled
		completed += t.completed
		rows = append(rows, map[string]string{
			"Requirement":          r.Title,
			"College":              r.College,
			"Level":                r.Level,
			"Type":                 string(r.Type),
			"Learners Tracking":    strconv.Itoa(t.enrolled),
			"Completed":            strconv.Itoa(t.completed),
			"In Progress":          strconv.Itoa(t.inProgress),
			"Average Progress (%)": strconv.Itoa(t.averageProgress()),
		})
	}
	return export.Dataset{
		Headers:      headers,
		Rows:         rows,
		Summary:      map[string]int{"requirements": len(visible), "tracking": tracking, "completed": completed},
		SummaryOrder: []string{"requirements", "tracking", "completed"},
	}, nil
}

// buildAssessmentResults lists every active learner against every assessment requirement.
// Untracked pairs appear as not started.
func (s *ExportService) buildAssessmentResults(ctx context.Context, criteria filter.Criteria) (export.Dataset, error) {
	users, err := s.sources.Users.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list users: %w", err)
	}
	requirements, err := s.sources.Requirements.List(ctx)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list requirements: %w", err)
	}
	progress, err := s.sources.Requirements.ListProgress(ctx, "")
	if err != nil {
		return export.Dataset{}, fmt.Errorf("list requirement progress: %w", err)
	}
	type key struct{ user, requirement string }
	tracked := make(map[key]models.RequirementProgress, len(progress))
	for _, p := range progress {
		tracked[key{p.UserID, p.RequirementID}] = p
	}

	criteria = criteria.With(RequirementKeyType, string(models.RequirementTypeAssessment))
	headers := []string{"Learner", "Email", "Assessment", "College", "Progress (%)", "Status", "Completed Date"}
	rows := make([]map[string]string, 0)
	results := make([]models.Requirement, 0)
	for _, u := range users {
		if u.Role != models.RoleLearner || !u.Active() {
			continue
		}
		for _, r := range requirements {
			r.Progress = 0
			r.Status = models.RequirementNotStarted
			r.CompletedDate = nil
			if p, ok := tracked[key{u.ID, r.ID}]; ok {
				r.Progress = p.Progress
				r.Status = models.StatusForProgress(p.Progress)
				r.CompletedDate = p.CompletedDate
			}
			if !s.catalog.Requirements.Matches(r, criteria) {
				continue
			}
			results = append(results, r)
			rows = append(rows, map[string]string{
				"Learner":        u.Name,
				"Email":          u.Email,
				"Assessment":     r.Title,
				"College":        r.College,
				"Progress (%)":   strconv.Itoa(r.Progress),
				"Status":         string(r.Status),
				"Completed Date": formatReportTime(r.CompletedDate),
			})
		}
	}
	return export.Dataset{
		Headers:      headers,
		Rows:         rows,
		Summary:      s.catalog.Requirements.Summarize(results),
		SummaryOrder: s.catalog.Requirements.MetricNames(),
	}, nil
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
