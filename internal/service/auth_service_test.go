package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
	updated             *models.User
	revokedAll          bool
}

func (m *mockAuthRepo) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	return nil
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = m.revokeUserTokensErr == nil
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Name: "Wole Ayodele", Email: "user@example.com", PasswordHash: string(password), Status: models.UserStatusActive, Role: models.RoleAdmin}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Bearer", res.TokenType)
	require.NotNil(t, res.User)
	assert.Equal(t, "user@example.com", res.User.Email)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Status: models.UserStatusInactive}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Status: models.UserStatusActive, Role: models.RoleAdmin}
	repo.userByEmail = user
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.Nil(t, res.User)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Status: models.UserStatusActive}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceRefreshRevokedToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour), Revoked: true},
	}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})

	err := svc.Logout(context.Background(), "token", "someone-else", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Logout(context.Background(), "token", "u1", models.RequestMeta{IP: "127.0.0.1"}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[0].Action)
}

func TestAuthServiceMe(t *testing.T) {
	repo := &mockAuthRepo{userByID: &models.User{ID: "u1", Name: "Anna Ugwu", Role: models.RoleLearner}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{})

	user, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Anna Ugwu", user.Name)

	repo.findByIDErr = sql.ErrNoRows
	_, err = svc.Me(context.Background(), "u1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.signAccessToken(user, svc.now(), time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

type staticPolicy models.SecuritySettings

func (p staticPolicy) Get(ctx context.Context) (models.Settings, error) {
	return models.Settings{Security: models.SecuritySettings(p)}, nil
}

func TestAuthServiceLocksOutAfterMaxAttempts(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "anna@fincra.com", PasswordHash: string(password), Status: models.UserStatusActive}}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour}).
		WithSecurityPolicy(staticPolicy{MaxLoginAttempts: 2})
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "anna@fincra.com", Password: "wrong"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	}
	_, err := svc.Login(ctx, models.LoginRequest{Email: "ANNA@fincra.com", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrTooManyAttempts)
	assert.Equal(t, 429, appErrors.FromError(err).Status)

	now = now.Add(16 * time.Minute)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "anna@fincra.com", Password: "password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "anna@fincra.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "anna@fincra.com", Password: "password"})
	assert.NoError(t, err, "a success resets the failure count")
}

func TestAuthServiceSessionTimeoutCapsAccessToken(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "anna@fincra.com", PasswordHash: string(password), Status: models.UserStatusActive}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: 24 * time.Hour, RefreshTokenExpiry: time.Hour}).
		WithSecurityPolicy(staticPolicy{SessionTimeoutMinutes: 30})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@fincra.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, int64(30*60), res.ExpiresIn)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.WithinDuration(t, res.IssuedAt.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)

	issued := svc.now()
	svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = svc.ValidateToken(res.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceChangePassword(t *testing.T) {
	current, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	policy := staticPolicy{PasswordMinLength: 10, RequireNumbers: true, RequireSpecialCharacters: true}

	cases := []struct {
		name    string
		req     models.ChangePasswordRequest
		wantErr *appErrors.Error
	}{
		{"wrong current password", models.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "Longer-pass-1"}, appErrors.ErrInvalidCredentials},
		{"same password", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "password123"}, appErrors.ErrValidation},
		{"too short", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "sh0rt!"}, appErrors.ErrValidation},
		{"no number", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "no-numbers-here"}, appErrors.ErrValidation},
		{"no special character", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "plainpassword9"}, appErrors.ErrValidation},
		{"accepted", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "brand-new-pass7"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockAuthRepo{userByID: &models.User{ID: "u1", Email: "anna@fincra.com", PasswordHash: string(current), Status: models.UserStatusActive}}
			svc := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret"}).WithSecurityPolicy(policy)

			err := svc.ChangePassword(context.Background(), "u1", tc.req, models.RequestMeta{IP: "127.0.0.1"})
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr.Code, appErrors.FromError(err).Code)
				assert.Nil(t, repo.updated)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, repo.updated)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.updated.PasswordHash), []byte(tc.req.NewPassword)))
			assert.True(t, repo.revokedAll)
			require.Len(t, repo.auditLogs, 1)
			assert.Equal(t, models.AuditActionPasswordChange, repo.auditLogs[0].Action)
		})
	}
}

func TestAuthServiceFailureWindowsAreSwept(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", LockoutWindow: 15 * time.Minute})
	svc.now = func() time.Time { return now }

	for _, email := range []string{"ghost1@fincra.com", "ghost2@fincra.com", "ghost3@fincra.com"} {
		svc.recordFailure(email)
	}
	require.Len(t, svc.failures, 3)

	now = now.Add(16 * time.Minute)
	svc.recordFailure("ghost4@fincra.com")
	assert.Len(t, svc.failures, 1)
	assert.Contains(t, svc.failures, "ghost4@fincra.com")
	assert.Equal(t, 1, svc.failures["ghost4@fincra.com"].count)

	now = now.Add(time.Minute)
	svc.recordFailure("ghost4@fincra.com")
	assert.Equal(t, 2, svc.failures["ghost4@fincra.com"].count, "an open window keeps counting")
}
