package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/store"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

func newGamification(t *testing.T) (*GamificationService, *store.Memory) {
	t.Helper()
	m := seededStore(t)
	svc := NewGamificationService(store.NewGamificationRepository(m), store.NewUserRepository(m), nil, nil, nil, nil, GamificationConfig{LevelStep: 250})
	return svc, m
}

type failingAwardRepo struct {
	gamificationRepository
}

func (failingAwardRepo) RecordAward(ctx context.Context, award *models.Award, tx *models.PointTransaction, activity *models.Activity) error {
	return errors.New("ledger unavailable")
}

func TestLevelProgression(t *testing.T) {
	svc := NewGamificationService(nil, nil, nil, nil, nil, nil, GamificationConfig{})

	assert.Equal(t, 1, svc.LevelFor(0))
	assert.Equal(t, 1, svc.LevelFor(499))
	assert.Equal(t, 2, svc.LevelFor(500))
	assert.Equal(t, 4, svc.LevelFor(1200))
	assert.Equal(t, "Novice", LevelName(1))
	assert.Equal(t, "Practitioner", LevelName(3))
	assert.Equal(t, "Master", LevelName(42))
}

func TestGamificationStats(t *testing.T) {
	svc, _ := newGamification(t)

	stats, err := svc.Stats(context.Background(), demoLearner)
	require.NoError(t, err)
	assert.Equal(t, &models.LearnerStats{
		UserID:            demoLearner,
		TotalPoints:       750,
		AvailablePoints:   720,
		SpentPoints:       30,
		Level:             3,
		LevelName:         "Practitioner",
		PointsToNextLevel: 250,
		LevelProgress:     75,
		Badges:            1,
		Achievements:      1,
	}, stats)

	_, err = svc.Stats(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGamificationAwardBadge(t *testing.T) {
	svc, m := newGamification(t)
	ctx := context.Background()

	award, err := svc.Award(ctx, models.AwardRequest{UserID: "usr-005", Type: models.AwardTypeBadge, ItemID: "bdg-003"}, "usr-002", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Quick Learner", award.ItemName)
	assert.Equal(t, 30, award.Points)
	assert.NotEmpty(t, award.ID)

	user, err := store.NewUserRepository(m).FindByID(ctx, "usr-005")
	require.NoError(t, err)
	assert.Equal(t, 450, user.TotalPoints)

	activities, err := svc.Activities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Awarded 'Quick Learner' badge to Tolu Bello", activities[0].Message)

	txs, err := svc.Transactions(ctx, "usr-005", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionEarned, txs[0].Kind)

	logs, err := store.NewUserRepository(m).ListAuditLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionAwardGrant, logs[0].Action)
}

func TestGamificationAwardPointsRaisesLevel(t *testing.T) {
	svc, _ := newGamification(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, models.AwardRequest{UserID: "usr-005", Type: models.AwardTypePoints, Points: 80, Reason: "Mentoring"}, "usr-002", models.RequestMeta{})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "usr-005")
	require.NoError(t, err)
	assert.Equal(t, 500, stats.TotalPoints)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, "Apprentice", stats.LevelName)
}

func TestGamificationAwardRejections(t *testing.T) {
	svc, _ := newGamification(t)
	ctx := context.Background()

	cases := map[string]struct {
		req  models.AwardRequest
		want error
	}{
		"points without amount": {models.AwardRequest{UserID: "usr-005", Type: models.AwardTypePoints}, appErrors.ErrValidation},
		"badge without item":    {models.AwardRequest{UserID: "usr-005", Type: models.AwardTypeBadge}, appErrors.ErrValidation},
		"unknown type":          {models.AwardRequest{UserID: "usr-005", Type: "trophy", ItemID: "x"}, appErrors.ErrValidation},
		"inactive badge":        {models.AwardRequest{UserID: "usr-005", Type: models.AwardTypeBadge, ItemID: "bdg-004"}, appErrors.ErrValidation},
		"missing badge":         {models.AwardRequest{UserID: "usr-005", Type: models.AwardTypeBadge, ItemID: "bdg-404"}, appErrors.ErrNotFound},
		"missing achievement":   {models.AwardRequest{UserID: "usr-005", Type: models.AwardTypeAchievement, ItemID: "ach-404"}, appErrors.ErrNotFound},
		"inactive learner":      {models.AwardRequest{UserID: "usr-006", Type: models.AwardTypePoints, Points: 5}, appErrors.ErrValidation},
		"unknown learner":       {models.AwardRequest{UserID: "usr-404", Type: models.AwardTypePoints, Points: 5}, appErrors.ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Award(ctx, tc.req, "usr-002", models.RequestMeta{})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGamificationAwardRollsBackOnLedgerFailure(t *testing.T) {
	m := seededStore(t)
	users := store.NewUserRepository(m)
	svc := NewGamificationService(failingAwardRepo{store.NewGamificationRepository(m)}, users, nil, nil, nil, nil, GamificationConfig{})

	_, err := svc.Award(context.Background(), models.AwardRequest{UserID: "usr-005", Type: models.AwardTypePoints, Points: 100}, "usr-002", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)

	user, err := users.FindByID(context.Background(), "usr-005")
	require.NoError(t, err)
	assert.Equal(t, 420, user.TotalPoints)
}

func TestGamificationConcurrentAwardsKeepEveryPoint(t *testing.T) {
	svc, m := newGamification(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Award(ctx, models.AwardRequest{UserID: "usr-005", Type: models.AwardTypePoints, Points: 5}, "usr-002", models.RequestMeta{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := store.NewUserRepository(m).FindByID(ctx, "usr-005")
	require.NoError(t, err)
	assert.Equal(t, 520, user.TotalPoints)
}

func TestGamificationLeaderboard(t *testing.T) {
	svc, _ := newGamification(t)

	board, err := svc.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, models.LeaderboardEntry{Rank: 1, UserID: "usr-003", Name: "Anna Ugwu", Level: 3, TotalPoints: 750, Badges: 1}, board[0])
	assert.Equal(t, "usr-004", board[1].UserID)

	all, err := svc.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGamificationBadgeFilters(t *testing.T) {
	svc, _ := newGamification(t)

	res, err := svc.Badges(context.Background(), ListQuery{Criteria: filter.Criteria{"category": "course_completion", "active": "true"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 4, res.Summary["total"])
	assert.Equal(t, 3, res.Summary["active"])
}
