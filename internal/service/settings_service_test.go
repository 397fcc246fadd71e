package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/store"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

func newSettingsService(t *testing.T) (*SettingsService, *store.UserRepository) {
	t.Helper()
	m := seededStore(t)
	audit := store.NewUserRepository(m)
	return NewSettingsService(store.NewSettingsRepository(m), audit, nil, nil), audit
}

func TestSettingsServiceGet(t *testing.T) {
	svc, _ := newSettingsService(t)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ACE Learning Management System", settings.General.SiteName)
	assert.Equal(t, "daily", settings.Notifications.EmailDigestFrequency)
	assert.Equal(t, 30, settings.Security.SessionTimeoutMinutes)
}

func TestSettingsServiceUpdateSecurity(t *testing.T) {
	svc, audit := newSettingsService(t)
	ctx := context.Background()

	current, err := svc.Get(ctx)
	require.NoError(t, err)
	security := current.Security
	security.SessionTimeoutMinutes = 60
	security.TwoFactorAuthentication = true

	updated, err := svc.UpdateSecurity(ctx, security, "usr-001", models.RequestMeta{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, 60, updated.Security.SessionTimeoutMinutes)
	assert.Equal(t, current.General, updated.General)

	reloaded, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, reloaded.Security.TwoFactorAuthentication)

	logs, err := audit.ListAuditLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionSettingsUpdate, logs[0].Action)
	var old models.SecuritySettings
	require.NoError(t, json.Unmarshal(logs[0].OldValues, &old))
	assert.Equal(t, 30, old.SessionTimeoutMinutes)
}

func TestSettingsServiceRejectsInvalidSections(t *testing.T) {
	svc, _ := newSettingsService(t)
	ctx := context.Background()
	current, err := svc.Get(ctx)
	require.NoError(t, err)

	security := current.Security
	security.PasswordMinLength = 4
	_, err = svc.UpdateSecurity(ctx, security, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	security = current.Security
	security.SessionTimeoutMinutes = 2000
	_, err = svc.UpdateSecurity(ctx, security, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	general := current.General
	general.PrimaryColor = "black"
	_, err = svc.UpdateGeneral(ctx, general, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	notifications := current.Notifications
	notifications.EmailDigestFrequency = "hourly"
	_, err = svc.UpdateNotifications(ctx, notifications, "usr-001", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	unchanged, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, current, unchanged)
}

func TestSettingsServiceUpdateGeneralTrimsName(t *testing.T) {
	svc, _ := newSettingsService(t)
	ctx := context.Background()
	current, err := svc.Get(ctx)
	require.NoError(t, err)

	general := current.General
	general.SiteName = "  ACE Academy "
	general.EnableRegistrations = false
	updated, err := svc.UpdateGeneral(ctx, general, "usr-001", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ACE Academy", updated.General.SiteName)
	assert.False(t, updated.General.EnableRegistrations)
}
