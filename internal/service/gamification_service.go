package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

const defaultLevelStep = 250

var levelNames = []string{"Novice", "Apprentice", "Practitioner", "Specialist", "Expert", "Master"}

type gamificationRepository interface {
	ListBadges(ctx context.Context) ([]models.Badge, error)
	FindBadge(ctx context.Context, id string) (*models.Badge, error)
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	FindAchievement(ctx context.Context, id string) (*models.Achievement, error)
	RecordAward(ctx context.Context, award *models.Award, tx *models.PointTransaction, activity *models.Activity) error
	ListAwards(ctx context.Context, userID string) ([]models.Award, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.PointTransaction, error)
	ListActivities(ctx context.Context, limit int) ([]models.Activity, error)
}

type learnerRepository interface {
	ListAll(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// GamificationConfig tunes level progression.
type GamificationConfig struct {
	LevelStep int
}

// GamificationService grants awards and reports learner points, levels and rankings.
type GamificationService struct {
	repo      gamificationRepository
	users     learnerRepository
	cache     cacheInvalidator
	catalog   *Catalog
	validator *validator.Validate
	logger    *zap.Logger
	step      int

	// serializes balance updates so concurrent awards cannot lose points
	mu sync.Mutex
}

// NewGamificationService constructs a GamificationService.
func NewGamificationService(repo gamificationRepository, users learnerRepository, cache cacheInvalidator, catalog *Catalog, validate *validator.Validate, logger *zap.Logger, cfg GamificationConfig) *GamificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	step := cfg.LevelStep
	if step <= 0 {
		step = defaultLevelStep
	}
	return &GamificationService{
		repo:      repo,
		users:     users,
		cache:     cache,
		catalog:   catalogOrDefault(catalog),
		validator: validate,
		logger:    logger,
		step:      step,
	}
}

// LevelFor returns the level reached with points. Every step points add a level, starting at 1.
func (s *GamificationService) LevelFor(points int) int {
	level := points / s.step
	if level < 1 {
		level = 1
	}
	return level
}

// LevelName returns the display name of level.
func LevelName(level int) string {
	switch {
	case level < 1:
		return levelNames[0]
	case level > len(levelNames):
		return levelNames[len(levelNames)-1]
	default:
		return levelNames[level-1]
	}
}

// Badges lists the badge catalogue filtered by category, tier or active flag.
func (s *GamificationService) Badges(ctx context.Context, q ListQuery) (*ListResult[models.Badge], error) {
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	return runList(s.catalog, "badges", s.catalog.Badges, badges, q)
}

// Achievements lists every achievement.
func (s *GamificationService) Achievements(ctx context.Context) ([]models.Achievement, error) {
	achievements, err := s.repo.ListAchievements(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}
	return achievements, nil
}

// Award grants a badge, an achievement or bonus points to a learner.
func (s *GamificationService) Award(ctx context.Context, req models.AwardRequest, actorID string, meta models.RequestMeta) (*models.Award, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}
	if req.Type == models.AwardTypePoints && req.Points <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "points awards need a positive amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	if !user.Active() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot award an inactive account")
	}

	award := &models.Award{UserID: user.ID, Type: req.Type, ItemID: req.ItemID, Points: req.Points, Reason: req.Reason, AwardedBy: actorID}
	var message, txDescription string
	switch req.Type {
	case models.AwardTypeBadge:
		badge, err := s.repo.FindBadge(ctx, req.ItemID)
		if err != nil {
			return nil, s.itemError(err, "badge")
		}
		if !badge.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "badge is not active")
		}
		award.ItemName, award.Points = badge.Name, badge.Points
		message = fmt.Sprintf("Awarded '%s' badge to %s", badge.Name, user.Name)
		txDescription = "Badge: " + badge.Name
	case models.AwardTypeAchievement:
		achievement, err := s.repo.FindAchievement(ctx, req.ItemID)
		if err != nil {
			return nil, s.itemError(err, "achievement")
		}
		if !achievement.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "achievement is not active")
		}
		award.ItemName, award.Points = achievement.Name, achievement.Points
		message = fmt.Sprintf("Unlocked '%s' achievement for %s", achievement.Name, user.Name)
		txDescription = "Achievement: " + achievement.Name
	default:
		award.ItemID = ""
		message = fmt.Sprintf("Awarded %d points to %s", req.Points, user.Name)
		txDescription = "Bonus points"
		if req.Reason != "" {
			txDescription += ": " + req.Reason
		}
	}

	before := *user
	user.TotalPoints += award.Points
	user.Level = s.LevelFor(user.TotalPoints)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to credit points")
	}

	var tx *models.PointTransaction
	if award.Points > 0 {
		tx = &models.PointTransaction{UserID: user.ID, Kind: models.TransactionEarned, Points: award.Points, Description: txDescription}
	}
	activity := &models.Activity{UserID: user.ID, Kind: req.Type, Message: message}
	if err := s.repo.RecordAward(ctx, award, tx, activity); err != nil {
		if rollbackErr := s.users.Update(ctx, &before); rollbackErr != nil {
			s.logger.Error("failed to roll back points after award failure", zap.String("user_id", user.ID), zap.Error(rollbackErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record award")
	}

	payload, _ := json.Marshal(map[string]interface{}{"type": award.Type, "item_id": award.ItemID, "points": award.Points, "level": user.Level})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionAwardGrant,
		Resource:   "gamification",
		ResourceID: &award.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record award audit log", zap.Error(err))
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}

	s.logger.Info("award granted",
		zap.String("user_id", user.ID),
		zap.String("type", string(award.Type)),
		zap.Int("points", award.Points),
		zap.Int("level", user.Level),
	)
	return award, nil
}

func (s *GamificationService) itemError(err error, kind string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, kind+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+kind)
}

// Stats returns the points balance and level progress of userID.
func (s *GamificationService) Stats(ctx context.Context, userID string) (*models.LearnerStats, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "learner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learner")
	}
	txs, err := s.repo.ListTransactions(ctx, userID, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	awards, err := s.repo.ListAwards(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list awards")
	}

	stats := &models.LearnerStats{UserID: user.ID, TotalPoints: user.TotalPoints}
	for _, tx := range txs {
		if tx.Kind == models.TransactionSpent {
			stats.SpentPoints += tx.Points
		}
	}
	stats.AvailablePoints = stats.TotalPoints - stats.SpentPoints
	if stats.AvailablePoints < 0 {
		stats.AvailablePoints = 0
	}
	for _, a := range awards {
		switch a.Type {
		case models.AwardTypeBadge:
			stats.Badges++
		case models.AwardTypeAchievement:
			stats.Achievements++
		}
	}

	stats.Level = s.LevelFor(user.TotalPoints)
	stats.LevelName = LevelName(stats.Level)
	next := (stats.Level + 1) * s.step
	stats.PointsToNextLevel = next - user.TotalPoints
	stats.LevelProgress = user.TotalPoints * 100 / next
	return stats, nil
}

// Leaderboard ranks active learners by points. A limit <= 0 returns everyone.
func (s *GamificationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list learners")
	}
	awards, err := s.repo.ListAwards(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list awards")
	}
	badges := map[string]int{}
	for _, a := range awards {
		if a.Type == models.AwardTypeBadge {
			badges[a.UserID]++
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		if u.Role != models.RoleLearner || !u.Active() {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:      u.ID,
			Name:        u.Name,
			Level:       s.LevelFor(u.TotalPoints),
			TotalPoints: u.TotalPoints,
			Badges:      badges[u.ID],
		})
	}

	ranked, err := s.catalog.Leaderboard.Sort(entries, filter.Order{Key: "points", Desc: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank learners")
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// Awards lists awards of userID newest first, or all awards when userID is empty.
func (s *GamificationService) Awards(ctx context.Context, userID string) ([]models.Award, error) {
	awards, err := s.repo.ListAwards(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list awards")
	}
	return awards, nil
}

// Transactions lists the point movements of userID newest first.
func (s *GamificationService) Transactions(ctx context.Context, userID string, limit int) ([]models.PointTransaction, error) {
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txs, nil
}

// Activities returns the most recent feed entries.
func (s *GamificationService) Activities(ctx context.Context, limit int) ([]models.Activity, error) {
	activities, err := s.repo.ListActivities(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return activities, nil
}
