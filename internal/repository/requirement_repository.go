package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

const requirementColumns = `id, title, description, type, college, level, is_required, created_at`

const progressColumns = `user_id, requirement_id, progress, status, completed_date, updated_at`

// RequirementRepository stores MVK requirements and learner progress in postgres.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

func (r *RequirementRepository) List(ctx context.Context) ([]models.Requirement, error) {
	return selectAll[models.Requirement](ctx, r.db, "list requirements",
		`SELECT `+requirementColumns+` FROM requirements ORDER BY created_at ASC, id ASC`)
}

func (r *RequirementRepository) FindByID(ctx context.Context, id string) (*models.Requirement, error) {
	return getOne[models.Requirement](ctx, r.db, "find requirement",
		`SELECT `+requirementColumns+` FROM requirements WHERE id = $1`, id)
}

// ListProgress returns progress rows of userID, or every row when userID is empty.
func (r *RequirementRepository) ListProgress(ctx context.Context, userID string) ([]models.RequirementProgress, error) {
	return selectAll[models.RequirementProgress](ctx, r.db, "list requirement progress",
		`SELECT `+progressColumns+` FROM requirement_progress WHERE ($1 = '' OR user_id = $1) ORDER BY user_id, requirement_id`, userID)
}

// UpsertProgress inserts or replaces a learner's progress row.
func (r *RequirementRepository) UpsertProgress(ctx context.Context, p *models.RequirementProgress) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := namedExec(ctx, r.db, "upsert requirement progress", `INSERT INTO requirement_progress (`+progressColumns+`)
VALUES (:user_id, :requirement_id, :progress, :status, :completed_date, :updated_at)
ON CONFLICT (user_id, requirement_id) DO UPDATE SET progress = EXCLUDED.progress, status = EXCLUDED.status, completed_date = EXCLUDED.completed_date, updated_at = EXCLUDED.updated_at`, p)
	return err
}
