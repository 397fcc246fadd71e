package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/dto"
	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params models.ReportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type reportStore interface {
	reportJobStore
	ListJobs(ctx context.Context, limit int) ([]models.ReportJob, error)
	CreateDownload(ctx context.Context, d *models.ReportDownload) error
	ListDownloads(ctx context.Context, limit int) ([]models.ReportDownload, error)
	CreateSchedule(ctx context.Context, s *models.ScheduledReport) error
	ListSchedules(ctx context.Context) ([]models.ScheduledReport, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo      reportStore
	queue     jobDispatcher
	exporter  *ExportService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ReportFile is an opened, finished export ready to stream.
type ReportFile struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// NewReportService constructs the report service. audit may be nil.
func NewReportService(repo reportStore, queue jobDispatcher, exporter *ExportService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:      repo,
		queue:     queue,
		exporter:  exporter,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Catalogue lists the report types that can be generated.
func (s *ReportService) Catalogue() []models.ReportTypeInfo {
	out := make([]models.ReportTypeInfo, len(models.ReportCatalogue))
	copy(out, models.ReportCatalogue)
	return out
}

// Generate validates the request, persists a job and enqueues it for rendering.
func (s *ReportService) Generate(ctx context.Context, req models.GenerateReportRequest, actorID string, meta models.RequestMeta) (*dto.ReportJobResponse, error) {
	if req.Format == "" {
		req.Format = models.ReportFormatCSV
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if !s.exporter.Supports(req.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if err := s.exporter.ValidateCriteria(req.Type, req.Criteria); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnknownFilter.Code, appErrors.ErrUnknownFilter.Status, err.Error())
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{Format: req.Format, Criteria: req.Criteria},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := s.now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, models.ReportJobUpdate{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.recordAudit(ctx, actorID, models.AuditActionReportGenerate, job.ID, map[string]interface{}{"type": job.Type, "format": job.Params.Format}, meta)
	s.logger.Sugar().Infow("report queued", "job_id", job.ID, "type", job.Type, "format", job.Params.Format, "actor_id", actorID)
	return &dto.ReportJobResponse{ID: job.ID, Type: job.Type, Format: job.Params.Format, Status: job.Status, Progress: job.Progress}, nil
}

// Status exposes job metadata to clients.
func (s *ReportService) Status(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.ReportStatusResponse{
		ID:         job.ID,
		Type:       job.Type,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultURL:  job.ResultURL,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *ReportService) ListJobs(ctx context.Context, limit int) ([]models.ReportJob, error) {
	items, err := s.repo.ListJobs(ctx, clampLimit(limit))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return items, nil
}

// ResolveDownload validates token, opens the stored export and records the download.
func (s *ReportService) ResolveDownload(ctx context.Context, token, actorID string) (*ReportFile, error) {
	signed, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.loadJob(ctx, signed.JobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(signed.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}

	name := string(job.Type)
	if info, ok := models.LookupReportType(job.Type); ok {
		name = info.Name
	}
	download := &models.ReportDownload{
		ID:           uuid.NewString(),
		JobID:        job.ID,
		Type:         job.Type,
		Name:         name,
		Format:       job.Params.Format,
		DownloadedBy: actorID,
		DownloadedAt: s.now().UTC(),
	}
	if err := s.repo.CreateDownload(ctx, download); err != nil {
		s.logger.Warn("failed to record report download", zap.String("job_id", job.ID), zap.Error(err))
	}

	return &ReportFile{
		File:        file,
		Filename:    filepath.Base(signed.Path),
		ContentType: s.exporter.ContentType(job.Params.Format),
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}

// RecentDownloads lists downloaded reports, newest first.
func (s *ReportService) RecentDownloads(ctx context.Context, limit int) ([]models.ReportDownload, error) {
	items, err := s.repo.ListDownloads(ctx, clampLimit(limit))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report downloads")
	}
	return items, nil
}

// Schedule registers a recurring report. The first run is one period from now.
func (s *ReportService) Schedule(ctx context.Context, req models.ScheduleReportRequest, actorID string, meta models.RequestMeta) (*models.ScheduledReport, error) {
	if req.Format == "" {
		req.Format = models.ReportFormatCSV
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	now := s.now().UTC()
	schedule := &models.ScheduledReport{
		Name:       strings.TrimSpace(req.Name),
		Type:       req.Type,
		Format:     req.Format,
		Frequency:  req.Frequency,
		Recipients: req.Recipients,
		NextRunAt:  req.Frequency.Next(now),
		CreatedBy:  actorID,
		CreatedAt:  now,
	}
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report schedule")
	}
	s.recordAudit(ctx, actorID, models.AuditActionReportSchedule, schedule.ID, map[string]interface{}{"name": schedule.Name, "frequency": schedule.Frequency}, meta)
	return schedule, nil
}

// Schedules lists the recurring reports in creation order.
func (s *ReportService) Schedules(ctx context.Context) ([]models.ScheduledReport, error) {
	items, err := s.repo.ListSchedules(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report schedules")
	}
	return items, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued report jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("cleanup list failed", "error", err)
		return
	}
	for _, job := range finished {
		if job.ResultURL == nil {
			continue
		}
		token := extractToken(*job.ResultURL)
		if token == "" {
			continue
		}
		signed, err := s.exporter.ParseToken(token, true)
		if err != nil {
			continue
		}
		if err := s.exporter.Delete(signed.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}
	removed, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
		return
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "files", len(removed))
	}
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

func (s *ReportService) recordAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "reports",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record report audit log", zap.String("action", action), zap.Error(err))
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// reportObserver receives one call per report job attempt.
type reportObserver interface {
	ObserveReport(reportType, outcome string, rows int)
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	observer   reportObserver
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// WithObserver reports every job outcome to o.
func (w *ReportWorker) WithObserver(o reportObserver) *ReportWorker {
	w.observer = o
	return w
}

func (w *ReportWorker) observe(reportType models.ReportType, outcome string, rows int) {
	if w.observer != nil {
		w.observer.ObserveReport(string(reportType), outcome, rows)
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, models.ReportJobUpdate{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		if job.Attempt >= w.maxRetries {
			w.Fail(ctx, job, err)
		} else {
			w.observe(record.Type, ReportOutcomeRetried, 0)
			msg := err.Error()
			queued := models.ReportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, models.ReportJobUpdate{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, models.ReportJobUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.observe(record.Type, ReportOutcomeFinished, result.Rows)
	w.logger.Sugar().Infow("report finished", "job_id", job.ID, "type", record.Type, "rows", result.Rows)
	return nil
}

// Fail marks a job as permanently failed. It is the queue's failure handler once retries run out.
func (w *ReportWorker) Fail(ctx context.Context, job jobs.Job, cause error) {
	w.observe(models.ReportType(job.Type), ReportOutcomeFailed, 0)
	failed := models.ReportStatusFailed
	progress := 100
	msg := cause.Error()
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, models.ReportJobUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", err)
	}
}
