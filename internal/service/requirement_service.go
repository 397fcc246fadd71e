package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

type requirementRepository interface {
	List(ctx context.Context) ([]models.Requirement, error)
	FindByID(ctx context.Context, id string) (*models.Requirement, error)
	ListProgress(ctx context.Context, userID string) ([]models.RequirementProgress, error)
	UpsertProgress(ctx context.Context, p *models.RequirementProgress) error
}

// RequirementService tracks learners' minimum viable knowledge (MVK) progress.
type RequirementService struct {
	repo      requirementRepository
	cache     cacheInvalidator
	catalog   *Catalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequirementService constructs a RequirementService.
func NewRequirementService(repo requirementRepository, cache cacheInvalidator, catalog *Catalog, validate *validator.Validate, logger *zap.Logger) *RequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequirementService{repo: repo, cache: cache, catalog: catalogOrDefault(catalog), validator: validate, logger: logger}
}

// List returns userID's requirements filtered, ordered and paged.
func (s *RequirementService) List(ctx context.Context, userID string, q ListQuery) (*ListResult[models.Requirement], error) {
	reqs, err := s.forLearner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return runList(s.catalog, "requirements", s.catalog.Requirements, reqs, q)
}

// Colleges returns the distinct colleges requirements belong to.
func (s *RequirementService) Colleges(ctx context.Context) ([]string, error) {
	reqs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	return facetValues(s.catalog.Requirements, reqs, RequirementKeyCollege)
}

// Summary returns userID's MVK summary.
func (s *RequirementService) Summary(ctx context.Context, userID string) (map[string]int, error) {
	reqs, err := s.forLearner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.Requirements.Summarize(reqs), nil
}

// UpdateProgress stores userID's progress on a requirement and derives its status.
func (s *RequirementService) UpdateProgress(ctx context.Context, userID, requirementID string, req models.UpdateProgressRequest) (*models.Requirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "progress needs a learner")
	}

	requirement, err := s.repo.FindByID(ctx, requirementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}

	progress := &models.RequirementProgress{
		UserID:        userID,
		RequirementID: requirementID,
		Progress:      *req.Progress,
		Status:        models.StatusForProgress(*req.Progress),
	}
	if progress.Status == models.RequirementCompleted {
		now := time.Now().UTC()
		progress.CompletedDate = &now
	}
	if err := s.repo.UpsertProgress(ctx, progress); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requirement progress")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}

	requirement.Progress = progress.Progress
	requirement.Status = progress.Status
	requirement.CompletedDate = progress.CompletedDate
	return requirement, nil
}

// ProgressByCollege aggregates userID's requirements per college in first-seen order.
func (s *RequirementService) ProgressByCollege(ctx context.Context, userID string) ([]models.CollegeProgress, error) {
	reqs, err := s.forLearner(ctx, userID)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	sums := []int{}
	out := []models.CollegeProgress{}
	for _, r := range reqs {
		i, ok := index[r.College]
		if !ok {
			i = len(out)
			index[r.College] = i
			out = append(out, models.CollegeProgress{College: r.College})
			sums = append(sums, 0)
		}
		out[i].Total++
		if r.Status == models.RequirementCompleted {
			out[i].Completed++
		}
		sums[i] += r.Progress
	}
	for i := range out {
		out[i].Progress = int(math.Round(float64(sums[i]) / float64(out[i].Total)))
	}
	return out, nil
}

// forLearner overlays userID's progress on the catalogue. An empty userID yields the bare
// catalogue with every requirement not started.
func (s *RequirementService) forLearner(ctx context.Context, userID string) ([]models.Requirement, error) {
	reqs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	if userID == "" {
		for i := range reqs {
			reqs[i].Progress = 0
			reqs[i].Status = models.RequirementNotStarted
			reqs[i].CompletedDate = nil
		}
		return reqs, nil
	}
	rows, err := s.repo.ListProgress(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirement progress")
	}
	byID := make(map[string]models.RequirementProgress, len(rows))
	for _, p := range rows {
		byID[p.RequirementID] = p
	}
	for i := range reqs {
		reqs[i].Status = models.RequirementNotStarted
		if p, ok := byID[reqs[i].ID]; ok {
			reqs[i].Progress = p.Progress
			reqs[i].Status = models.StatusForProgress(p.Progress)
			reqs[i].CompletedDate = p.CompletedDate
		}
	}
	return reqs, nil
}
