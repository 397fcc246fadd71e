package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

type dashboardUsers interface {
	List(ctx context.Context, q ListQuery) (*ListResult[models.User], error)
	RoleCounts(ctx context.Context) (map[string]int, error)
}

type dashboardCourses interface {
	List(ctx context.Context, userID string, q ListQuery) (*ListResult[models.Course], error)
	EnrollmentSummary(ctx context.Context) (map[string]int, error)
}

type dashboardRequirements interface {
	Summary(ctx context.Context, userID string) (map[string]int, error)
	ProgressByCollege(ctx context.Context, userID string) ([]models.CollegeProgress, error)
}

type dashboardGamification interface {
	Stats(ctx context.Context, userID string) (*models.LearnerStats, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Awards(ctx context.Context, userID string) ([]models.Award, error)
	Activities(ctx context.Context, limit int) ([]models.Activity, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL        time.Duration
	ActivityLimit   int
	LeaderboardSize int
	RecentAwards    int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users        dashboardUsers
	Courses      dashboardCourses
	Requirements dashboardRequirements
	Gamification dashboardGamification
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes the role specific overview payloads.
type DashboardService struct {
	users        dashboardUsers
	courses      dashboardCourses
	requirements dashboardRequirements
	gamification dashboardGamification
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

const adminDashboardKey = "dashboard:admin"

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = 5
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 5
	}
	if cfg.RecentAwards <= 0 {
		cfg.RecentAwards = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:        params.Users,
		courses:      params.Courses,
		requirements: params.Requirements,
		gamification: params.Gamification,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// ForRole dispatches to the dashboard of role. The bool reports a cache hit.
func (s *DashboardService) ForRole(ctx context.Context, userID string, role models.UserRole) (interface{}, bool, error) {
	switch role {
	case models.RoleAdmin:
		return s.Admin(ctx)
	case models.RoleInstructor:
		d, err := s.Instructor(ctx, userID)
		return d, false, err
	case models.RoleLearner:
		d, err := s.Learner(ctx, userID)
		return d, false, err
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "no dashboard for role")
	}
}

// Admin returns the platform overview, served from cache when possible.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	d, hit, err := cached(ctx, s.cache, adminDashboardKey, s.cfg.CacheTTL, func() (*models.AdminDashboard, error) {
		return s.composeAdmin(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	if hit {
		s.logger.Debug("admin dashboard served from cache")
	}
	return d, hit, nil
}

// composeAdmin loads the independent sections concurrently; the first failure cancels the rest.
func (s *DashboardService) composeAdmin(ctx context.Context) (*models.AdminDashboard, error) {
	var (
		users       *ListResult[models.User]
		courses     *ListResult[models.Course]
		byRole      map[string]int
		enrollments map[string]int
		activities  []models.Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.users.List(gctx, ListQuery{})
		return err
	})
	g.Go(func() (err error) {
		byRole, err = s.users.RoleCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		courses, err = s.courses.List(gctx, "", ListQuery{})
		return err
	})
	g.Go(func() (err error) {
		enrollments, err = s.courses.EnrollmentSummary(gctx)
		return err
	})
	g.Go(func() (err error) {
		activities, err = s.gamification.Activities(gctx, s.cfg.ActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &models.AdminDashboard{
		TotalUsers:       users.Summary["total"],
		TotalCourses:     courses.Summary["total"],
		Certifications:   enrollments["completed"],
		UserSummary:      users.Summary,
		UsersByRole:      byRole,
		RecentActivities: activities,
		GeneratedAt:      s.now().UTC(),
	}, nil
}

// Instructor returns learner reach, the awards given by instructorID and course completion figures.
func (s *DashboardService) Instructor(ctx context.Context, instructorID string) (*models.InstructorDashboard, error) {
	learners, err := s.users.List(ctx, ListQuery{Criteria: filter.Criteria{
		UserKeyRole:   string(models.RoleLearner),
		UserKeyStatus: string(models.UserStatusActive),
	}})
	if err != nil {
		return nil, err
	}
	byRole, err := s.users.RoleCounts(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.courses.EnrollmentSummary(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := s.gamification.Awards(ctx, "")
	if err != nil {
		return nil, err
	}
	given := 0
	for _, a := range awards {
		if a.AwardedBy == instructorID {
			given++
		}
	}
	top, err := s.gamification.Leaderboard(ctx, s.cfg.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	activities, err := s.gamification.Activities(ctx, s.cfg.ActivityLimit)
	if err != nil {
		return nil, err
	}
	return &models.InstructorDashboard{
		TotalLearners:    byRole[string(models.RoleLearner)],
		ActiveLearners:   learners.Pagination.TotalCount,
		AwardsGiven:      given,
		CourseSummary:    enrollments,
		TopLearners:      top,
		RecentActivities: activities,
		GeneratedAt:      s.now().UTC(),
	}, nil
}

// Learner returns the personal overview of userID.
func (s *DashboardService) Learner(ctx context.Context, userID string) (*models.LearnerDashboard, error) {
	stats, err := s.gamification.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.courses.List(ctx, userID, ListQuery{
		Criteria: filter.Criteria{CourseKeyStatus: string(models.CourseStatusInProgress)},
		Order:    filter.Order{Key: "progress", Desc: true},
	})
	if err != nil {
		return nil, err
	}
	colleges, err := s.requirements.ProgressByCollege(ctx, userID)
	if err != nil {
		return nil, err
	}
	mvk, err := s.requirements.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	awards, err := s.gamification.Awards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(awards) > s.cfg.RecentAwards {
		awards = awards[:s.cfg.RecentAwards]
	}
	return &models.LearnerDashboard{
		Stats:              *stats,
		CoursesInProgress:  inProgress.Items,
		CourseSummary:      inProgress.Summary,
		MVKProgress:        colleges,
		MVKSummary:         mvk,
		RecentAchievements: awards,
		GeneratedAt:        s.now().UTC(),
	}, nil
}
