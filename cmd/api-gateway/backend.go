package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/repository"
	"github.com/noah-isme/ace-lms-api/internal/store"
	"github.com/noah-isme/ace-lms-api/pkg/config"
	"github.com/noah-isme/ace-lms-api/pkg/database"
)

type userStore interface {
	ListAll(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type courseStore interface {
	List(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error)
	FindEnrollment(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, e *models.Enrollment) error
}

type requirementStore interface {
	List(ctx context.Context) ([]models.Requirement, error)
	FindByID(ctx context.Context, id string) (*models.Requirement, error)
	ListProgress(ctx context.Context, userID string) ([]models.RequirementProgress, error)
	UpsertProgress(ctx context.Context, p *models.RequirementProgress) error
}

type reportStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params models.ReportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
	ListJobs(ctx context.Context, limit int) ([]models.ReportJob, error)
	CreateDownload(ctx context.Context, d *models.ReportDownload) error
	ListDownloads(ctx context.Context, limit int) ([]models.ReportDownload, error)
	CreateSchedule(ctx context.Context, s *models.ScheduledReport) error
	ListSchedules(ctx context.Context) ([]models.ScheduledReport, error)
}

// backend bundles the repositories selected by STORE_DRIVER. Gamification and
// settings always live in the in-memory store.
type backend struct {
	users        userStore
	courses      courseStore
	requirements requirementStore
	reports      reportStore
	gamification *store.GamificationRepository
	settings     *store.SettingsRepository
	db           *sqlx.DB
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	memory, err := store.Open(cfg.Store.SeedFile)
	if err != nil {
		return nil, err
	}
	b := &backend{
		gamification: store.NewGamificationRepository(memory),
		settings:     store.NewSettingsRepository(memory),
	}

	if cfg.Store.Driver != config.StorePostgres {
		b.users = store.NewUserRepository(memory)
		b.courses = store.NewCourseRepository(memory)
		b.requirements = store.NewRequirementRepository(memory)
		b.reports = store.NewReportRepository(memory)
		logr.Sugar().Infow("using in-memory store", "seed_file", cfg.Store.SeedFile)
		return b, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logr.Info("database schema migrated")
	}
	b.db = db
	b.users = repository.NewUserRepository(db)
	b.courses = repository.NewCourseRepository(db)
	b.requirements = repository.NewRequirementRepository(db)
	b.reports = repository.NewReportRepository(db)
	logr.Sugar().Infow("using postgres store", "host", cfg.Database.Host, "database", cfg.Database.Name)
	return b, nil
}
