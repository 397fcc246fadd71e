package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// securityPolicy supplies the admin-managed session and lockout settings.
type securityPolicy interface {
	Get(ctx context.Context) (models.Settings, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	Audience           []string
	SingleSession      bool
	// LockoutWindow is how long failed logins count towards the attempt limit.
	LockoutWindow time.Duration
}

type loginFailures struct {
	count int
	first time.Time
}

// AuthService issues and rotates sessions for LMS accounts.
type AuthService struct {
	repo      authUserRepository
	policy    securityPolicy
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time

	mu       sync.Mutex
	failures map[string]loginFailures
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = 15 * time.Minute
	}
	return &AuthService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		failures:  make(map[string]loginFailures),
	}
}

// WithSecurityPolicy makes login honour the session timeout and max login attempts of p.
func (s *AuthService) WithSecurityPolicy(p securityPolicy) *AuthService {
	s.policy = p
	return s
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid login payload")
	}
	security := s.security(ctx)
	key := strings.ToLower(req.Email)
	if s.locked(key, security.MaxLoginAttempts) {
		s.logger.Warn("login rejected while locked out", zap.String("email", key))
		return nil, appErrors.Clone(appErrors.ErrTooManyAttempts, "too many failed login attempts, try again later")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.recordFailure(key)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	case err != nil:
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if !user.Active() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(key)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	s.clearFailures(key)

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	sess, err := s.issueSession(ctx, user, security, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, sess.issuedAt); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit(ctx, user.ID, models.AuditActionLogin, `{"status":"success"}`, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})

	return &models.Session{
		TokenPair: sess.pair(),
		User:      &models.SessionUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role},
	}, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid refresh payload")
	}

	stored, err := s.activeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, stored.UserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.String("token_id", stored.ID), zap.Error(err))
	}

	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	sess, err := s.issueSession(ctx, user, s.security(ctx), meta)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, models.AuditActionRefresh, `{"refresh":"rotated"}`, meta)

	return &models.Session{TokenPair: sess.pair()}, nil
}

// Logout revokes refreshToken, which must belong to userID.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID string, meta models.RequestMeta) error {
	stored, err := s.repo.FindRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	case err != nil:
		return appErrors.Internal(err, "failed to load refresh token")
	}
	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return appErrors.Internal(err, "failed to revoke refresh token")
	}
	s.audit(ctx, userID, models.AuditActionLogout, `{"status":"logout"}`, meta)
	return nil
}

// ChangePassword verifies the current password, applies the password policy from the
// security settings to the new one and revokes every refresh token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta models.RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Invalid(err, "invalid change password payload")
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return appErrors.ErrInvalidCredentials
	}
	if req.NewPassword == req.CurrentPassword {
		return appErrors.Clone(appErrors.ErrValidation, "new password must differ from the current one")
	}
	if err := checkPassword(req.NewPassword, s.security(ctx)); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		return appErrors.Internal(err, "failed to revoke sessions")
	}
	s.audit(ctx, user.ID, models.AuditActionPasswordChange, `{"sessions":"revoked"}`, meta)
	return nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// ValidateToken parses an HS256 access token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// session is a freshly issued access and refresh token pair.
type session struct {
	access   string
	refresh  string
	ttl      time.Duration
	issuedAt time.Time
}

func (ss *session) pair() models.TokenPair {
	return models.TokenPair{
		AccessToken:  ss.access,
		RefreshToken: ss.refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(ss.ttl.Seconds()),
		IssuedAt:     ss.issuedAt,
	}
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, security models.SecuritySettings, meta models.RequestMeta) (*session, error) {
	issuedAt := s.now()
	ttl := s.accessTTL(security)
	access, err := s.signAccessToken(user, issuedAt, ttl)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	value, err := randomToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	refresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: issuedAt.Add(s.config.RefreshTokenExpiry),
		CreatedAt: issuedAt,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, appErrors.Internal(err, "failed to persist refresh token")
	}
	return &session{access: access, refresh: value, ttl: ttl, issuedAt: issuedAt}, nil
}

func (s *AuthService) activeRefreshToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	stored, err := s.repo.FindRefreshToken(ctx, value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
	case err != nil:
		return nil, appErrors.Internal(err, "failed to fetch refresh token")
	}
	if stored.Revoked || s.now().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}
	return stored, nil
}

// accessTTL is the configured access expiry, shortened to the session timeout when one is set.
func (s *AuthService) accessTTL(security models.SecuritySettings) time.Duration {
	ttl := s.config.AccessTokenExpiry
	if timeout := time.Duration(security.SessionTimeoutMinutes) * time.Minute; timeout > 0 && (ttl <= 0 || timeout < ttl) {
		ttl = timeout
	}
	return ttl
}

func (s *AuthService) signAccessToken(user *models.User, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) security(ctx context.Context) models.SecuritySettings {
	if s.policy == nil {
		return models.SecuritySettings{}
	}
	settings, err := s.policy.Get(ctx)
	if err != nil {
		s.logger.Warn("security settings unavailable, using defaults", zap.Error(err))
		return models.SecuritySettings{}
	}
	return settings.Security
}

func (s *AuthService) locked(email string, maxAttempts int) bool {
	if maxAttempts <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[email]
	if !ok {
		return false
	}
	if s.now().Sub(f.first) > s.config.LockoutWindow {
		delete(s.failures, email)
		return false
	}
	return f.count >= maxAttempts
}

func (s *AuthService) recordFailure(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// Drop windows that have lapsed so unknown addresses do not pile up.
	for key, entry := range s.failures {
		if now.Sub(entry.first) > s.config.LockoutWindow {
			delete(s.failures, key)
		}
	}
	f := s.failures[email]
	if f.count == 0 {
		f = loginFailures{first: now}
	}
	f.count++
	s.failures[email] = f
}

func (s *AuthService) clearFailures(email string) {
	s.mu.Lock()
	delete(s.failures, email)
	s.mu.Unlock()
}

func (s *AuthService) audit(ctx context.Context, userID string, action string, values string, meta models.RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: &userID,
		NewValues:  []byte(values),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.String("action", action), zap.Error(err))
	}
}

// checkPassword applies the admin password rules. A zero minimum length falls back to 8.
func checkPassword(password string, rules models.SecuritySettings) error {
	minLength := rules.PasswordMinLength
	if minLength <= 0 {
		minLength = 8
	}
	if len([]rune(password)) < minLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be at least %d characters", minLength))
	}
	if rules.RequireNumbers && !strings.ContainsAny(password, "0123456789") {
		return appErrors.Clone(appErrors.ErrValidation, "password must contain a number")
	}
	if rules.RequireSpecialCharacters && !strings.ContainsFunc(password, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	}) {
		return appErrors.Clone(appErrors.ErrValidation, "password must contain a special character")
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
