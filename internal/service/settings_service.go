package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, settings models.Settings) error
}

// Settings sections accepted by Update.
const (
	SettingsSectionGeneral       = "general"
	SettingsSectionNotifications = "notifications"
	SettingsSectionSecurity      = "security"
)

// SettingsService reads and updates the platform settings document one section at a time.
type SettingsService struct {
	repo      settingsRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService. audit may be nil.
func NewSettingsService(repo settingsRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Get returns every settings section.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return &settings, nil
}

// UpdateGeneral replaces the general section.
func (s *SettingsService) UpdateGeneral(ctx context.Context, section models.GeneralSettings, actorID string, meta models.RequestMeta) (*models.Settings, error) {
	section.SiteName = strings.TrimSpace(section.SiteName)
	return updateSection(ctx, s, SettingsSectionGeneral, section, actorID, meta, func(all *models.Settings) *models.GeneralSettings {
		return &all.General
	})
}

// UpdateNotifications replaces the notifications section.
func (s *SettingsService) UpdateNotifications(ctx context.Context, section models.NotificationSettings, actorID string, meta models.RequestMeta) (*models.Settings, error) {
	return updateSection(ctx, s, SettingsSectionNotifications, section, actorID, meta, func(all *models.Settings) *models.NotificationSettings {
		return &all.Notifications
	})
}

// UpdateSecurity replaces the security section.
func (s *SettingsService) UpdateSecurity(ctx context.Context, section models.SecuritySettings, actorID string, meta models.RequestMeta) (*models.Settings, error) {
	return updateSection(ctx, s, SettingsSectionSecurity, section, actorID, meta, func(all *models.Settings) *models.SecuritySettings {
		return &all.Security
	})
}

func updateSection[T any](ctx context.Context, s *SettingsService, name string, section T, actorID string, meta models.RequestMeta, field func(*models.Settings) *T) (*models.Settings, error) {
	if err := s.validator.Struct(section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+name+" settings")
	}
	current, err := s.repo.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	slot := field(&current)
	oldPayload, _ := json.Marshal(*slot)
	*slot = section
	if err := s.repo.Save(ctx, current); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	newPayload, _ := json.Marshal(section)

	if s.audit != nil {
		resourceID := name
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionSettingsUpdate,
			Resource:   "settings",
			ResourceID: &resourceID,
			OldValues:  oldPayload,
			NewValues:  newPayload,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record settings audit log", zap.String("section", name), zap.Error(err))
		}
	}
	s.logger.Info("settings updated", zap.String("section", name), zap.String("actor_id", actorID))
	return &current, nil
}
