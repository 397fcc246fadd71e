package store

import (
	"context"

	"github.com/noah-isme/ace-lms-api/internal/models"
)

// SettingsRepository holds the platform settings document.
type SettingsRepository struct {
	m *Memory
}

// NewSettingsRepository binds a settings repository to m.
func NewSettingsRepository(m *Memory) *SettingsRepository {
	return &SettingsRepository{m: m}
}

func (r *SettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.m.settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings models.Settings) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.settings = settings
	return nil
}
