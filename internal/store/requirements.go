package store

import (
	"context"
	"database/sql"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// RequirementRepository serves MVK requirements and learner progress from memory.
type RequirementRepository struct {
	m *Memory
}

// NewRequirementRepository binds a requirement repository to m.
func NewRequirementRepository(m *Memory) *RequirementRepository {
	return &RequirementRepository{m: m}
}

// List returns every requirement in insertion order.
func (r *RequirementRepository) List(ctx context.Context) ([]models.Requirement, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append(make([]models.Requirement, 0, len(r.m.requirements)), r.m.requirements...), nil
}

// FindByID returns a requirement or sql.ErrNoRows.
func (r *RequirementRepository) FindByID(ctx context.Context, id string) (*models.Requirement, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, req := range r.m.requirements {
		if req.ID == id {
			out := req
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ListProgress returns the progress rows of userID, or every row when userID is empty.
func (r *RequirementRepository) ListProgress(ctx context.Context, userID string) ([]models.RequirementProgress, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.RequirementProgress, 0)
	for _, u := range r.m.users {
		if userID != "" && u.ID != userID {
			continue
		}
		for _, req := range r.m.requirements {
			if p, ok := r.m.progress[membership{u.ID, req.ID}]; ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// UpsertProgress stores p, replacing any previous row for the same learner and requirement.
func (r *RequirementRepository) UpsertProgress(ctx context.Context, p *models.RequirementProgress) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p.UpdatedAt = r.m.now()
	r.m.progress[membership{p.UserID, p.RequirementID}] = *p
	return nil
}
