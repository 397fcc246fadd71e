package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

func openDefault(t *testing.T) *Memory {
	t.Helper()
	m, err := Open("")
	require.NoError(t, err)
	t.Cleanup(m.Reset)
	return m
}

func TestOpenSeedsDefaultFixtures(t *testing.T) {
	m := openDefault(t)
	ctx := context.Background()

	courses, err := NewCourseRepository(m).List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 6)
	assert.Equal(t, "Introduction to Business & Growth", courses[0].Title)

	reqs, err := NewRequirementRepository(m).List(ctx)
	require.NoError(t, err)
	assert.Len(t, reqs, 6)

	users, err := NewUserRepository(m).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 6)

	settings, err := NewSettingsRepository(m).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACE Learning Management System", settings.General.SiteName)
	assert.Equal(t, 8, settings.Security.PasswordMinLength)

	schedules, err := NewReportRepository(m).ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, []string{"admin@fincra.com", "hr@fincra.com"}, []string(schedules[1].Recipients))
}

func TestSeedHashesPasswordsAndDerivesCounts(t *testing.T) {
	m := openDefault(t)
	user, err := NewUserRepository(m).FindByEmail(context.Background(), "ANNA@fincra.com")
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	assert.Equal(t, 4, user.EnrolledCourses)
	assert.Equal(t, 1, user.CompletedCourses)
}

func TestSeedDerivesRequirementStatus(t *testing.T) {
	m := openDefault(t)
	rows, err := NewRequirementRepository(m).ListProgress(context.Background(), "usr-003")
	require.NoError(t, err)
	require.Len(t, rows, 6)

	byID := map[string]models.RequirementProgress{}
	for _, r := range rows {
		byID[r.RequirementID] = r
	}
	assert.Equal(t, models.RequirementCompleted, byID["mvk-001"].Status)
	require.NotNil(t, byID["mvk-001"].CompletedDate)
	assert.Equal(t, 2025, byID["mvk-001"].CompletedDate.Year())
	assert.Equal(t, models.RequirementInProgress, byID["mvk-002"].Status)
	assert.Equal(t, models.RequirementNotStarted, byID["mvk-003"].Status)
	assert.Nil(t, byID["mvk-003"].CompletedDate)
}

func TestSeedRejectsDanglingReferences(t *testing.T) {
	m := NewMemory()
	err := m.Seed(Fixtures{
		Courses:     []models.Course{{ID: "c1", Title: "A"}},
		Enrollments: []models.Enrollment{{UserID: "ghost", CourseID: "c1"}},
	})
	require.Error(t, err)

	courses, err := NewCourseRepository(m).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestSeedRejectsDuplicateIDs(t *testing.T) {
	err := NewMemory().Seed(Fixtures{Courses: []models.Course{{ID: "c1"}, {ID: "c1"}}})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestParseFixturesRejectsUnknownKeys(t *testing.T) {
	_, err := ParseFixtures([]byte("courses: []\nlessons: []\n"))
	assert.Error(t, err)
}

func TestLoadFixturesMissingFile(t *testing.T) {
	_, err := LoadFixtures("/nonexistent/fixtures.yaml")
	assert.Error(t, err)
}

func TestResetClearsTables(t *testing.T) {
	m := openDefault(t)
	m.Reset()

	users, err := NewUserRepository(m).ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestListReturnsCopies(t *testing.T) {
	m := openDefault(t)
	repo := NewCourseRepository(m)
	ctx := context.Background()

	first, err := repo.List(ctx)
	require.NoError(t, err)
	first[0].Title = "mutated"

	second, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Introduction to Business & Growth", second[0].Title)
}

func TestEnrollmentLifecycle(t *testing.T) {
	m := openDefault(t)
	repo := NewCourseRepository(m)
	ctx := context.Background()

	_, err := repo.FindEnrollment(ctx, "usr-003", "crs-001")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.CreateEnrollment(ctx, &models.Enrollment{UserID: "usr-003", CourseID: "crs-001"}))
	assert.ErrorIs(t, repo.CreateEnrollment(ctx, &models.Enrollment{UserID: "usr-003", CourseID: "crs-001"}), ErrDuplicate)

	e := &models.Enrollment{UserID: "usr-003", CourseID: "crs-001", Progress: 40}
	require.NoError(t, repo.UpdateEnrollment(ctx, e))
	assert.False(t, e.EnrolledAt.IsZero())

	got, err := repo.FindEnrollment(ctx, "usr-003", "crs-001")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)

	assert.ErrorIs(t, repo.UpdateEnrollment(ctx, &models.Enrollment{UserID: "usr-003", CourseID: "crs-404"}), sql.ErrNoRows)
}

func TestDeleteUserCascades(t *testing.T) {
	m := openDefault(t)
	ctx := context.Background()
	users := NewUserRepository(m)

	require.NoError(t, users.CreateRefreshToken(ctx, &models.RefreshToken{UserID: "usr-003", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, users.Delete(ctx, "usr-003"))

	_, err := users.FindByID(ctx, "usr-003")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = users.FindRefreshToken(ctx, "tok")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	enrollments, err := NewCourseRepository(m).ListEnrollments(ctx, "usr-003")
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	assert.ErrorIs(t, users.Delete(ctx, "usr-003"), sql.ErrNoRows)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	m := openDefault(t)
	err := NewUserRepository(m).Create(context.Background(), &models.User{Email: "Wole@Fincra.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRefreshTokenRevocation(t *testing.T) {
	m := openDefault(t)
	ctx := context.Background()
	users := NewUserRepository(m)

	token := &models.RefreshToken{UserID: "usr-001", Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, users.CreateRefreshToken(ctx, token))
	require.NotEmpty(t, token.ID)

	require.NoError(t, users.RevokeUserRefreshTokens(ctx, "usr-001"))
	got, err := users.FindRefreshToken(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.NotNil(t, got.RevokedAt)
}

func TestRecordAwardAppendsLedger(t *testing.T) {
	m := openDefault(t)
	ctx := context.Background()
	repo := NewGamificationRepository(m)

	award := &models.Award{UserID: "usr-004", Type: models.AwardTypePoints, Points: 15}
	tx := &models.PointTransaction{UserID: "usr-004", Kind: models.TransactionEarned, Points: 15}
	activity := &models.Activity{UserID: "usr-004", Kind: models.AwardTypePoints, Message: "Awarded 15 bonus points to Iyanu Akinleye"}
	require.NoError(t, repo.RecordAward(ctx, award, tx, activity))

	awards, err := repo.ListAwards(ctx, "usr-004")
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, award.ID, awards[0].ID)

	feed, err := repo.ListActivities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, activity.Message, feed[0].Message)

	err = repo.RecordAward(ctx, &models.Award{UserID: "ghost"}, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReportJobLifecycle(t *testing.T) {
	m := openDefault(t)
	ctx := context.Background()
	repo := NewReportRepository(m)

	job := &models.ReportJob{Type: models.ReportTypeUserActivity, CreatedBy: "usr-001"}
	require.NoError(t, repo.Create(ctx, job))
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	queued, err := repo.ListQueued(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	finished := models.ReportStatusFinished
	at := time.Now().Add(-48 * time.Hour)
	url := "/api/v1/reports/download/x"
	require.NoError(t, repo.Update(ctx, job.ID, models.ReportJobUpdate{Status: &finished, FinishedAt: &at, ResultURL: &url}))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, finished, got.Status)
	require.NotNil(t, got.ResultURL)
	assert.Equal(t, url, *got.ResultURL)

	old, err := repo.ListFinishedBefore(ctx, time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, old, 1)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
