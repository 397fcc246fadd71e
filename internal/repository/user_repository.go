package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, u.role, u.status, u.level, u.total_points, u.last_login_at, u.created_at, u.updated_at,
COALESCE(e.enrolled, 0) AS enrolled_courses, COALESCE(e.completed, 0) AS completed_courses`

const userFrom = `FROM users u
LEFT JOIN (SELECT user_id, COUNT(*) AS enrolled, COUNT(*) FILTER (WHERE progress >= 100) AS completed FROM enrollments GROUP BY user_id) e ON e.user_id = u.id`

const refreshTokenColumns = `id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`

const auditColumns = `id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches email case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return getOne[models.User](ctx, r.db, "find user by email",
		`SELECT `+userColumns+` `+userFrom+` WHERE LOWER(u.email) = LOWER($1) LIMIT 1`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return getOne[models.User](ctx, r.db, "find user by id",
		`SELECT `+userColumns+` `+userFrom+` WHERE u.id = $1 LIMIT 1`, id)
}

// ListAll returns every user with enrollment counts. Filtering happens in the service layer.
func (r *UserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	return selectAll[models.User](ctx, r.db, "list users",
		`SELECT `+userColumns+` `+userFrom+` ORDER BY u.created_at ASC, u.id ASC`)
}

// UpdateLastLogin updates the last_login_at timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login_at = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := namedExec(ctx, r.db, "create user", `INSERT INTO users (id, name, email, password_hash, role, status, level, total_points, created_at, updated_at)
VALUES (:id, :name, :email, :password_hash, :role, :status, :level, :total_points, :created_at, :updated_at)`, user)
	return err
}

// Update writes the mutable profile fields. An empty PasswordHash keeps the stored one.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := namedExec(ctx, r.db, "update user", `UPDATE users SET name = :name, role = :role, status = :status, level = :level, total_points = :total_points,
password_hash = COALESCE(NULLIF(:password_hash, ''), password_hash), updated_at = :updated_at WHERE id = :id`, user)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes a user. Enrollments, progress and sessions cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res)
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := namedExec(ctx, r.db, "create refresh token", `INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`, token)
	return err
}

// FindRefreshToken looks a session up by its opaque token value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return getOne[models.RefreshToken](ctx, r.db, "find refresh token",
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = $1 LIMIT 1`, token)
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := namedExec(ctx, r.db, "create audit log", `INSERT INTO audit_logs (`+auditColumns+`)
VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`, log)
	return err
}

// ListAuditLogs returns the newest audit entries.
func (r *UserRepository) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return selectAll[models.AuditLog](ctx, r.db, "list audit logs",
		`SELECT `+auditColumns+` FROM audit_logs ORDER BY created_at DESC LIMIT $1`, orDefault(limit, 50))
}
