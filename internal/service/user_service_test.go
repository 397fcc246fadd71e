package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

type mockUserRepo struct {
	users          map[string]*models.User
	order          []string
	listErr        error
	findByIDErr    error
	findByEmailErr error
	updateErr      error
	revoked        []string
	auditLogs      []*models.AuditLog
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
		m.order = append(m.order, u.ID)
	}
	return m
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]models.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.User, 0, len(m.order))
	for _, id := range m.order {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	m.order = append(m.order, user.ID)
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func directory() *mockUserRepo {
	return newMockUserRepo(
		models.User{ID: "usr-001", Name: "Wole Ayodele", Email: "wole@fincra.com", Role: models.RoleAdmin, Status: models.UserStatusActive, TotalPoints: 1200},
		models.User{ID: "usr-002", Name: "Yewande Adeyemi", Email: "yewande@fincra.com", Role: models.RoleInstructor, Status: models.UserStatusActive, TotalPoints: 950},
		models.User{ID: "usr-003", Name: "Anna Ugwu", Email: "anna@fincra.com", Role: models.RoleLearner, Status: models.UserStatusActive, TotalPoints: 750},
		models.User{ID: "usr-006", Name: "Kemi Adebayo", Email: "kemi@fincra.com", Role: models.RoleLearner, Status: models.UserStatusInactive, TotalPoints: 185},
	)
}

func TestUserServiceList(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, validator.New(), zap.NewNop())

	res, err := svc.List(context.Background(), ListQuery{
		Criteria: filter.Criteria{UserKeyRole: "learner", UserKeySearch: "KEMI"},
		Page:     models.PageParams{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "usr-006", res.Items[0].ID)
	assert.Equal(t, 1, res.Pagination.TotalCount)

	assert.Equal(t, 4, res.Summary["total"])
	assert.Equal(t, 3, res.Summary["active"])
	assert.Equal(t, 1, res.Summary["inactive"])
	assert.Equal(t, 2, res.Summary["learners"])
}

func TestUserServiceListSearchMatchesEmail(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, nil, nil)

	res, err := svc.List(context.Background(), ListQuery{Criteria: filter.Criteria{UserKeySearch: "yewande@"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "usr-002", res.Items[0].ID)
}

func TestUserServiceListSortsByPoints(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, nil, nil)

	res, err := svc.List(context.Background(), ListQuery{Order: filter.ParseOrder("-points", "")})
	require.NoError(t, err)
	require.Len(t, res.Items, 4)
	assert.Equal(t, "usr-001", res.Items[0].ID)
	assert.Equal(t, "usr-006", res.Items[3].ID)

	_, err = svc.List(context.Background(), ListQuery{Order: filter.Order{Key: "shoe_size"}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceListStrictKeys(t *testing.T) {
	catalog, err := NewCatalog(true)
	require.NoError(t, err)
	svc := NewUserService(directory(), nil, catalog, nil, nil)

	_, err = svc.List(context.Background(), ListQuery{Criteria: filter.Criteria{"department": "finance"}})
	assert.ErrorIs(t, err, appErrors.ErrUnknownFilter)

	lenient := NewUserService(directory(), nil, nil, nil, nil)
	res, err := lenient.List(context.Background(), ListQuery{Criteria: filter.Criteria{"department": "finance"}})
	require.NoError(t, err)
	assert.Len(t, res.Items, 4)
}

func TestUserServiceListRepositoryError(t *testing.T) {
	repo := directory()
	repo.listErr = errors.New("boom")
	svc := NewUserService(repo, nil, nil, nil, nil)

	_, err := svc.List(context.Background(), ListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestUserServiceRoleCounts(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, nil, nil)

	counts, err := svc.RoleCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"admin": 1, "instructor": 1, "learner": 2}, counts)
}

func TestUserServiceCreate(t *testing.T) {
	repo := directory()
	cache := &recordingInvalidator{}
	svc := NewUserService(repo, cache, nil, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), models.CreateUserRequest{Name: " Tolu Bello ", Email: "TOLU@FINCRA.COM", Password: "secret1", Role: models.RoleLearner}, "usr-001", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "tolu@fincra.com", user.Email)
	assert.Equal(t, "Tolu Bello", user.Name)
	assert.Equal(t, 1, user.Level)
	assert.True(t, user.Active())
	assert.NotEqual(t, "secret1", user.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	assert.Equal(t, []string{"dashboard:*"}, cache.patterns)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{Name: "Anna", Email: "anna@fincra.com", Password: "secret1", Role: models.RoleLearner}, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(directory(), nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{Name: "X", Email: "not-an-email", Password: "1", Role: "owner"}, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceChangeRole(t *testing.T) {
	repo := directory()
	svc := NewUserService(repo, nil, nil, nil, nil)

	user, err := svc.ChangeRole(context.Background(), "usr-003", models.ChangeRoleRequest{Role: models.RoleInstructor}, "usr-001", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, user.Role)
	assert.Equal(t, models.RoleInstructor, repo.users["usr-003"].Role)
	require.Len(t, repo.auditLogs, 1)
	assert.JSONEq(t, `{"role":"learner"}`, string(repo.auditLogs[0].OldValues))

	_, err = svc.ChangeRole(context.Background(), "usr-001", models.ChangeRoleRequest{Role: models.RoleLearner}, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ChangeRole(context.Background(), "ghost", models.ChangeRoleRequest{Role: models.RoleLearner}, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	repo := directory()
	svc := NewUserService(repo, nil, nil, nil, nil)

	user, err := svc.ChangeStatus(context.Background(), "usr-003", models.ChangeStatusRequest{Status: models.UserStatusInactive}, "usr-001", models.RequestMeta{})
	require.NoError(t, err)
	assert.False(t, user.Active())
	assert.Equal(t, []string{"usr-003"}, repo.revoked)

	_, err = svc.ChangeStatus(context.Background(), "usr-006", models.ChangeStatusRequest{Status: models.UserStatusActive}, "usr-001", models.RequestMeta{})
	require.NoError(t, err)
	assert.Len(t, repo.revoked, 1)
}

func TestUserServiceDelete(t *testing.T) {
	repo := directory()
	svc := NewUserService(repo, nil, nil, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "usr-006", "usr-001", models.RequestMeta{}))
	assert.NotContains(t, repo.users, "usr-006")
	assert.Equal(t, []string{"usr-006"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)

	assert.ErrorIs(t, svc.Delete(context.Background(), "usr-001", "usr-001", models.RequestMeta{}), appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), "usr-006", "usr-001", models.RequestMeta{}), appErrors.ErrNotFound)
}
