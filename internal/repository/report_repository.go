package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

const reportJobColumns = `id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

const downloadColumns = `id, job_id, type, name, format, downloaded_by, downloaded_at`

const scheduleColumns = `id, name, type, format, frequency, recipients, next_run_at, created_by, created_at`

// ReportRepository persists report jobs, downloads and schedules.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a job, defaulting its id, status and creation time.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := namedExec(ctx, r.db, "create report job", `INSERT INTO report_jobs (`+reportJobColumns+`)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`, job)
	return err
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	return getOne[models.ReportJob](ctx, r.db, "get report job",
		`SELECT `+reportJobColumns+` FROM report_jobs WHERE id = $1`, id)
}

// Update writes the non-nil fields of params. An empty update is a no-op.
func (r *ReportRepository) Update(ctx context.Context, id string, params models.ReportJobUpdate) error {
	var set setClause
	if params.Status != nil {
		set.add("status", *params.Status)
	}
	if params.Progress != nil {
		set.add("progress", *params.Progress)
	}
	if params.ResultURL != nil {
		set.add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		set.add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		set.add("finished_at", *params.FinishedAt)
	}
	if set.empty() {
		return nil
	}

	clause, args := set.build("id", id)
	res, err := r.db.ExecContext(ctx, "UPDATE report_jobs "+clause, args...)
	if err != nil {
		return fmtErr("update report job", err)
	}
	return expectAffected(res)
}

// ListQueued returns the oldest queued jobs for recovery after a restart.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return selectAll[models.ReportJob](ctx, r.db, "list queued report jobs",
		`SELECT `+reportJobColumns+` FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`, orDefault(limit, 20))
}

// ListFinishedBefore returns finished jobs older than cutoff for cleanup.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return selectAll[models.ReportJob](ctx, r.db, "list finished report jobs",
		`SELECT `+reportJobColumns+` FROM report_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`,
		cutoff, orDefault(limit, 50))
}

// ListJobs returns the most recent jobs first.
func (r *ReportRepository) ListJobs(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return selectAll[models.ReportJob](ctx, r.db, "list report jobs",
		`SELECT `+reportJobColumns+` FROM report_jobs ORDER BY created_at DESC LIMIT $1`, orDefault(limit, 20))
}

// CreateDownload records that a finished report was fetched.
func (r *ReportRepository) CreateDownload(ctx context.Context, d *models.ReportDownload) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now().UTC()
	}
	_, err := namedExec(ctx, r.db, "create report download", `INSERT INTO report_downloads (`+downloadColumns+`)
VALUES (:id, :job_id, :type, :name, :format, :downloaded_by, :downloaded_at)`, d)
	return err
}

func (r *ReportRepository) ListDownloads(ctx context.Context, limit int) ([]models.ReportDownload, error) {
	return selectAll[models.ReportDownload](ctx, r.db, "list report downloads",
		`SELECT `+downloadColumns+` FROM report_downloads ORDER BY downloaded_at DESC LIMIT $1`, orDefault(limit, 10))
}

func (r *ReportRepository) CreateSchedule(ctx context.Context, s *models.ScheduledReport) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := namedExec(ctx, r.db, "create scheduled report", `INSERT INTO scheduled_reports (`+scheduleColumns+`)
VALUES (:id, :name, :type, :format, :frequency, :recipients, :next_run_at, :created_by, :created_at)`, s)
	return err
}

func (r *ReportRepository) ListSchedules(ctx context.Context) ([]models.ScheduledReport, error) {
	return selectAll[models.ScheduledReport](ctx, r.db, "list scheduled reports",
		`SELECT `+scheduleColumns+` FROM scheduled_reports ORDER BY created_at ASC`)
}
