package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// UserRepository serves accounts, refresh sessions and the audit trail from memory.
type UserRepository struct {
	m *Memory
}

// NewUserRepository binds a user repository to m.
func NewUserRepository(m *Memory) *UserRepository {
	return &UserRepository{m: m}
}

// FindByEmail returns a user by email address, compared case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			out := r.m.withCourseCounts(u)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	i := r.m.userIndex(id)
	if i < 0 {
		return nil, sql.ErrNoRows
	}
	out := r.m.withCourseCounts(r.m.users[i])
	return &out, nil
}

// ListAll returns every user in insertion order with enrollment counts filled in.
func (r *UserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]models.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		out = append(out, r.m.withCourseCounts(u))
	}
	return out, nil
}

// Create inserts a new user. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.m.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.m.users = append(r.m.users, *user)
	return nil
}

// Update stores the mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i := r.m.userIndex(user.ID)
	if i < 0 {
		return sql.ErrNoRows
	}
	current := r.m.users[i]
	current.Name = user.Name
	current.Role = user.Role
	current.Status = user.Status
	current.Level = user.Level
	current.TotalPoints = user.TotalPoints
	if user.PasswordHash != "" {
		current.PasswordHash = user.PasswordHash
	}
	current.UpdatedAt = r.m.now()
	r.m.users[i] = current
	user.UpdatedAt = current.UpdatedAt
	return nil
}

// Delete removes a user together with their enrollments, progress and sessions.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i := r.m.userIndex(id)
	if i < 0 {
		return sql.ErrNoRows
	}
	r.m.users = append(r.m.users[:i:i], r.m.users[i+1:]...)
	for key := range r.m.enrollments {
		if key.userID == id {
			delete(r.m.enrollments, key)
		}
	}
	for key := range r.m.progress {
		if key.userID == id {
			delete(r.m.progress, key)
		}
	}
	for tokenID, t := range r.m.tokens {
		if t.UserID == id {
			delete(r.m.tokens, tokenID)
		}
	}
	return nil
}

// UpdateLastLogin stamps the last successful sign in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i := r.m.userIndex(id)
	if i < 0 {
		return sql.ErrNoRows
	}
	r.m.users[i].LastLoginAt = &ts
	r.m.users[i].UpdatedAt = ts
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.m.now()
	}
	r.m.tokens[token.ID] = *token
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.tokens {
		if t.Token == token {
			out := t
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Revoked = true
	t.RevokedAt = &revokedAt
	r.m.tokens[id] = t
	return nil
}

// RevokeUserRefreshTokens revokes all active refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.now()
	for id, t := range r.m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &now
			r.m.tokens[id] = t
		}
	}
	return nil
}

// CreateAuditLog appends an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.m.now()
	}
	r.m.audit = append(r.m.audit, *log)
	return nil
}

// ListAuditLogs returns the newest entries first.
func (r *UserRepository) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return limitTail(r.m.audit, limit), nil
}
