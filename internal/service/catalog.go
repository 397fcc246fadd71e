package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
)

// Course criteria keys.
const (
	CourseKeyLevel   = "level"
	CourseKeyCollege = "college"
	CourseKeyStatus  = "status"
	CourseKeySearch  = "search"
)

// Requirement criteria keys.
const (
	RequirementKeyCollege = "college"
	RequirementKeyStatus  = "status"
	RequirementKeyLevel   = "level"
	RequirementKeyType    = "type"
)

// User criteria keys.
const (
	UserKeyRole   = "role"
	UserKeyStatus = "status"
	UserKeySearch = "search"
)

// filterObserver receives one call per evaluated listing.
type filterObserver interface {
	ObserveFilter(resource string, total, visible int)
}

// Catalog holds the filter engines of every listable collection.
type Catalog struct {
	Courses      *filter.Engine[models.Course]
	Requirements *filter.Engine[models.Requirement]
	Users        *filter.Engine[models.User]
	Badges       *filter.Engine[models.Badge]
	Leaderboard  *filter.Engine[models.LeaderboardEntry]
	Enrollments  *filter.Engine[models.Enrollment]

	observer filterObserver
}

// NewCatalog builds the engines. With strictKeys, criteria naming unknown keys are rejected
// instead of ignored.
func NewCatalog(strictKeys bool) (*Catalog, error) {
	courses, err := newCourseEngine()
	if err != nil {
		return nil, fmt.Errorf("course engine: %w", err)
	}
	requirements, err := newRequirementEngine()
	if err != nil {
		return nil, fmt.Errorf("requirement engine: %w", err)
	}
	users, err := newUserEngine()
	if err != nil {
		return nil, fmt.Errorf("user engine: %w", err)
	}
	badges, err := newBadgeEngine()
	if err != nil {
		return nil, fmt.Errorf("badge engine: %w", err)
	}
	leaderboard, err := newLeaderboardEngine()
	if err != nil {
		return nil, fmt.Errorf("leaderboard engine: %w", err)
	}

	enrollments, err := newEnrollmentEngine()
	if err != nil {
		return nil, fmt.Errorf("enrollment engine: %w", err)
	}

	c := &Catalog{Courses: courses, Requirements: requirements, Users: users, Badges: badges, Leaderboard: leaderboard, Enrollments: enrollments}
	if strictKeys {
		c.Courses = c.Courses.WithPolicy(filter.RejectUnknownKeys)
		c.Requirements = c.Requirements.WithPolicy(filter.RejectUnknownKeys)
		c.Users = c.Users.WithPolicy(filter.RejectUnknownKeys)
		c.Badges = c.Badges.WithPolicy(filter.RejectUnknownKeys)
		c.Leaderboard = c.Leaderboard.WithPolicy(filter.RejectUnknownKeys)
		c.Enrollments = c.Enrollments.WithPolicy(filter.RejectUnknownKeys)
	}
	return c, nil
}

// WithObserver reports every listing evaluation to o.
func (c *Catalog) WithObserver(o filterObserver) *Catalog {
	c.observer = o
	return c
}

var defaultCatalog = mustCatalog()

func mustCatalog() *Catalog {
	c, err := NewCatalog(false)
	if err != nil {
		panic(err)
	}
	return c
}

func catalogOrDefault(c *Catalog) *Catalog {
	if c == nil {
		return defaultCatalog
	}
	return c
}

func newCourseEngine() (*filter.Engine[models.Course], error) {
	schema, err := filter.NewSchema(
		filter.Categorical(CourseKeyLevel, func(c models.Course) string { return c.Level }),
		filter.Categorical(CourseKeyCollege, func(c models.Course) string { return c.College }),
		filter.Field[models.Course]{
			Key:   CourseKeyStatus,
			Value: func(c models.Course) string { return string(c.Status()) },
			Match: matchCourseStatus,
		}.WithAny("all"),
		filter.Categorical("title", func(c models.Course) string { return c.Title }),
		filter.Numeric("progress", func(c models.Course) int { return c.Progress }),
		filter.Numeric("modules", func(c models.Course) int { return c.Modules }),
		filter.Predicate(CourseKeySearch, func(c models.Course, term string) bool {
			return containsFold(c.Title, term) || containsFold(c.Description, term)
		}),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.Course]("total"),
		filter.CountWhere[models.Course]("enrolled", CourseKeyStatus, string(models.CourseStatusEnrolled)),
		filter.CountWhere[models.Course]("completed", CourseKeyStatus, string(models.CourseStatusCompleted)),
		filter.CountWhere[models.Course]("in_progress", CourseKeyStatus, string(models.CourseStatusInProgress)),
		filter.CountWhere[models.Course]("not_enrolled", CourseKeyStatus, string(models.CourseStatusNotEnrolled)),
		filter.Mean[models.Course]("average_progress", "progress"),
	)
}

// matchCourseStatus treats "enrolled" as any enrollment and "completed" as full progress on an
// enrolled course. The remaining values compare against the derived status.
func matchCourseStatus(c models.Course, value string) bool {
	switch models.CourseStatus(value) {
	case models.CourseStatusEnrolled:
		return c.IsEnrolled
	case models.CourseStatusCompleted:
		return c.IsEnrolled && c.Progress == 100
	case models.CourseStatusInProgress:
		return c.IsEnrolled && c.Progress > 0 && c.Progress < 100
	default:
		return string(c.Status()) == value
	}
}

func newRequirementEngine() (*filter.Engine[models.Requirement], error) {
	schema, err := filter.NewSchema(
		filter.Categorical(RequirementKeyCollege, func(r models.Requirement) string { return r.College }),
		filter.Categorical(RequirementKeyStatus, func(r models.Requirement) string { return string(r.Status) }).WithAny("all"),
		filter.Categorical(RequirementKeyLevel, func(r models.Requirement) string { return r.Level }),
		filter.Categorical(RequirementKeyType, func(r models.Requirement) string { return string(r.Type) }),
		filter.Categorical("title", func(r models.Requirement) string { return r.Title }),
		filter.Numeric("progress", func(r models.Requirement) int { return r.Progress }),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.Requirement]("total"),
		filter.CountWhere[models.Requirement]("completed", RequirementKeyStatus, string(models.RequirementCompleted)),
		filter.CountWhere[models.Requirement]("in_progress", RequirementKeyStatus, string(models.RequirementInProgress)),
		filter.CountWhere[models.Requirement]("not_started", RequirementKeyStatus, string(models.RequirementNotStarted)),
		filter.Mean[models.Requirement]("overall_progress", "progress"),
	)
}

func newUserEngine() (*filter.Engine[models.User], error) {
	schema, err := filter.NewSchema(
		filter.Categorical(UserKeyRole, func(u models.User) string { return string(u.Role) }).WithAny("all"),
		filter.Categorical(UserKeyStatus, func(u models.User) string { return string(u.Status) }).WithAny("all"),
		filter.Predicate(UserKeySearch, func(u models.User, term string) bool {
			return containsFold(u.Name, term) || containsFold(u.Email, term)
		}),
		filter.Categorical("name", func(u models.User) string { return u.Name }),
		filter.Categorical("email", func(u models.User) string { return u.Email }),
		filter.Numeric("points", func(u models.User) int { return u.TotalPoints }),
		filter.Numeric("level", func(u models.User) int { return u.Level }),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.User]("total"),
		filter.CountWhere[models.User]("active", UserKeyStatus, string(models.UserStatusActive)),
		filter.CountWhere[models.User]("inactive", UserKeyStatus, string(models.UserStatusInactive)),
		filter.CountWhere[models.User]("admins", UserKeyRole, string(models.RoleAdmin)),
		filter.CountWhere[models.User]("instructors", UserKeyRole, string(models.RoleInstructor)),
		filter.CountWhere[models.User]("learners", UserKeyRole, string(models.RoleLearner)),
	)
}

func newBadgeEngine() (*filter.Engine[models.Badge], error) {
	schema, err := filter.NewSchema(
		filter.Categorical("category", func(b models.Badge) string { return b.Category }).WithAny("all"),
		filter.Categorical("tier", func(b models.Badge) string { return string(b.Tier) }).WithAny("all"),
		filter.Categorical("active", func(b models.Badge) string { return fmt.Sprint(b.Active) }),
		filter.Categorical("name", func(b models.Badge) string { return b.Name }),
		filter.Numeric("points", func(b models.Badge) int { return b.Points }),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.Badge]("total"),
		filter.CountWhere[models.Badge]("active", "active", "true"),
	)
}

func newLeaderboardEngine() (*filter.Engine[models.LeaderboardEntry], error) {
	schema, err := filter.NewSchema(
		filter.Numeric("points", func(e models.LeaderboardEntry) int { return e.TotalPoints }),
		filter.Numeric("level", func(e models.LeaderboardEntry) int { return e.Level }),
		filter.Numeric("badges", func(e models.LeaderboardEntry) int { return e.Badges }),
		filter.Categorical("name", func(e models.LeaderboardEntry) string { return e.Name }),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.LeaderboardEntry]("total"),
		filter.Mean[models.LeaderboardEntry]("average_points", "points"),
	)
}

// newEnrollmentEngine summarizes enrollments across learners. Status reuses the requirement
// vocabulary since an enrollment has no not_enrolled state.
func newEnrollmentEngine() (*filter.Engine[models.Enrollment], error) {
	schema, err := filter.NewSchema(
		filter.Categorical("user", func(e models.Enrollment) string { return e.UserID }),
		filter.Categorical("course", func(e models.Enrollment) string { return e.CourseID }),
		filter.Categorical("status", func(e models.Enrollment) string { return string(models.StatusForProgress(e.Progress)) }),
		filter.Numeric("progress", func(e models.Enrollment) int { return e.Progress }),
	)
	if err != nil {
		return nil, err
	}
	return filter.New(schema,
		filter.Total[models.Enrollment]("enrollments"),
		filter.CountWhere[models.Enrollment]("completed", "status", string(models.RequirementCompleted)),
		filter.CountWhere[models.Enrollment]("in_progress", "status", string(models.RequirementInProgress)),
		filter.CountWhere[models.Enrollment]("not_started", "status", string(models.RequirementNotStarted)),
		filter.Mean[models.Enrollment]("average_progress", "progress"),
	)
}

func containsFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(term)))
}

// ListQuery carries the criteria, ordering and paging of a listing request.
type ListQuery struct {
	Criteria filter.Criteria
	Order    filter.Order
	Page     models.PageParams
}

// ListResult is one page of a filtered collection. Summary is computed over the whole collection.
type ListResult[T any] struct {
	Items      []T
	Summary    filter.Summary
	Pagination models.Pagination
}

func runList[T any](c *Catalog, resource string, engine *filter.Engine[T], records []T, q ListQuery) (*ListResult[T], error) {
	if err := engine.Validate(q.Criteria); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnknownFilter.Code, appErrors.ErrUnknownFilter.Status, err.Error())
	}

	visible := engine.Filter(records, q.Criteria)
	ordered, err := engine.Sort(visible, q.Order)
	if err != nil {
		if errors.Is(err, filter.ErrUnknownField) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot sort by %q", q.Order.Key))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sort "+resource)
	}

	if c.observer != nil {
		c.observer.ObserveFilter(resource, len(records), len(visible))
	}

	page := q.Page.Normalize()
	start, end := page.Bounds(len(ordered))
	return &ListResult[T]{
		Items:   ordered[start:end],
		Summary: engine.Summarize(records),
		Pagination: models.Pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalCount: len(ordered),
		},
	}, nil
}

func facetValues[T any](engine *filter.Engine[T], records []T, key string) ([]string, error) {
	facets, err := engine.Facets(records, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute facets")
	}
	values := make([]string, 0, len(facets))
	for _, f := range facets {
		if f.Value != "" {
			values = append(values, f.Value)
		}
	}
	return values, nil
}
