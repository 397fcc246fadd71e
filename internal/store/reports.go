package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// ReportRepository keeps report jobs, downloads and schedules in memory.
type ReportRepository struct {
	m *Memory
}

// NewReportRepository binds a report repository to m.
func NewReportRepository(m *Memory) *ReportRepository {
	return &ReportRepository{m: m}
}

// Create inserts a new report job with generated defaults.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, exists := r.m.jobs[job.ID]; exists {
		return fmt.Errorf("create report job: %w", ErrDuplicate)
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.m.now()
	}
	r.m.jobs[job.ID] = *job
	r.m.jobOrder = append(r.m.jobOrder, job.ID)
	return nil
}

// GetByID returns a job by identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	job, ok := r.m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get report job: %w", sql.ErrNoRows)
	}
	return &job, nil
}

// Update applies the non-nil fields of params.
func (r *ReportRepository) Update(ctx context.Context, id string, params models.ReportJobUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[id]
	if !ok {
		return fmt.Errorf("update report job: %w", sql.ErrNoRows)
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		ts := *params.FinishedAt
		job.FinishedAt = &ts
	}
	r.m.jobs[id] = job
	return nil
}

// ListQueued returns queued jobs oldest first.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.ReportJob, 0)
	for _, id := range r.m.jobOrder {
		if len(out) == limit {
			break
		}
		if job := r.m.jobs[id]; job.Status == models.ReportStatusQueued {
			out = append(out, job)
		}
	}
	return out, nil
}

// ListFinishedBefore returns finished jobs completed before cutoff, oldest first.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.ReportJob, 0)
	for _, id := range r.m.jobOrder {
		job := r.m.jobs[id]
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListJobs returns up to limit jobs, newest first.
func (r *ReportRepository) ListJobs(ctx context.Context, limit int) ([]models.ReportJob, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.ReportJob, 0)
	for _, id := range limitTail(r.m.jobOrder, limit) {
		out = append(out, r.m.jobs[id])
	}
	return out, nil
}

// CreateDownload records a fetched report.
func (r *ReportRepository) CreateDownload(ctx context.Context, d *models.ReportDownload) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = r.m.now()
	}
	r.m.downloads = append(r.m.downloads, *d)
	return nil
}

// ListDownloads returns up to limit downloads, newest first.
func (r *ReportRepository) ListDownloads(ctx context.Context, limit int) ([]models.ReportDownload, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return limitTail(r.m.downloads, limit), nil
}

// CreateSchedule stores a scheduled report.
func (r *ReportRepository) CreateSchedule(ctx context.Context, s *models.ScheduledReport) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.m.now()
	}
	stored := *s
	stored.Recipients = append([]string(nil), s.Recipients...)
	r.m.schedules = append(r.m.schedules, stored)
	return nil
}

// ListSchedules returns every scheduled report in creation order.
func (r *ReportRepository) ListSchedules(ctx context.Context) ([]models.ScheduledReport, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.ScheduledReport, 0, len(r.m.schedules))
	for _, s := range r.m.schedules {
		s.Recipients = append([]string(nil), s.Recipients...)
		out = append(out, s)
	}
	return out, nil
}
