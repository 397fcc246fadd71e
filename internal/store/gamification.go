package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// GamificationRepository holds badges, achievements and the points ledger.
type GamificationRepository struct {
	m *Memory
}

// NewGamificationRepository binds a gamification repository to m.
func NewGamificationRepository(m *Memory) *GamificationRepository {
	return &GamificationRepository{m: m}
}

func (r *GamificationRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append(make([]models.Badge, 0, len(r.m.badges)), r.m.badges...), nil
}

func (r *GamificationRepository) FindBadge(ctx context.Context, id string) (*models.Badge, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, b := range r.m.badges {
		if b.ID == id {
			out := b
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *GamificationRepository) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append(make([]models.Achievement, 0, len(r.m.achievements)), r.m.achievements...), nil
}

func (r *GamificationRepository) FindAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, a := range r.m.achievements {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// RecordAward appends the award, its point transaction and its activity line in one step.
func (r *GamificationRepository) RecordAward(ctx context.Context, award *models.Award, tx *models.PointTransaction, activity *models.Activity) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.userIndex(award.UserID) < 0 {
		return sql.ErrNoRows
	}
	now := r.m.now()
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if award.AwardedAt.IsZero() {
		award.AwardedAt = now
	}
	r.m.awards = append(r.m.awards, *award)
	if tx != nil {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		r.m.transactions = append(r.m.transactions, *tx)
	}
	if activity != nil {
		if activity.ID == "" {
			activity.ID = uuid.NewString()
		}
		if activity.CreatedAt.IsZero() {
			activity.CreatedAt = now
		}
		r.m.activities = append(r.m.activities, *activity)
	}
	return nil
}

// ListAwards returns awards of userID, or all awards when userID is empty, newest first.
func (r *GamificationRepository) ListAwards(ctx context.Context, userID string) ([]models.Award, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.Award, 0)
	for _, a := range limitTail(r.m.awards, 0) {
		if userID == "" || a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListTransactions returns up to limit transactions of userID, newest first. A limit <= 0 returns all.
func (r *GamificationRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.PointTransaction, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.PointTransaction, 0)
	for _, t := range limitTail(r.m.transactions, 0) {
		if limit > 0 && len(out) == limit {
			break
		}
		if userID == "" || t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListActivities returns up to limit feed entries, newest first.
func (r *GamificationRepository) ListActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return limitTail(r.m.activities, limit), nil
}
