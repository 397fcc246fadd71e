package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// SettingsHandler reads and updates platform settings.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// Get godoc
// @Summary Platform settings
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateGeneral godoc
// @Summary Update general settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.GeneralSettings true "General settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings/general [put]
func (h *SettingsHandler) UpdateGeneral(c *gin.Context) {
	var section models.GeneralSettings
	updateSettings(c, &section, func(actorID string) (*models.Settings, error) {
		return h.service.UpdateGeneral(c.Request.Context(), section, actorID, requestMeta(c))
	})
}

// UpdateNotifications godoc
// @Summary Update notification settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.NotificationSettings true "Notification settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings/notifications [put]
func (h *SettingsHandler) UpdateNotifications(c *gin.Context) {
	var section models.NotificationSettings
	updateSettings(c, &section, func(actorID string) (*models.Settings, error) {
		return h.service.UpdateNotifications(c.Request.Context(), section, actorID, requestMeta(c))
	})
}

// UpdateSecurity godoc
// @Summary Update security settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SecuritySettings true "Security settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings/security [put]
func (h *SettingsHandler) UpdateSecurity(c *gin.Context) {
	var section models.SecuritySettings
	updateSettings(c, &section, func(actorID string) (*models.Settings, error) {
		return h.service.UpdateSecurity(c.Request.Context(), section, actorID, requestMeta(c))
	})
}

func updateSettings(c *gin.Context, section interface{}, apply func(actorID string) (*models.Settings, error)) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	if !bindJSON(c, section, "invalid settings payload") {
		return
	}
	settings, err := apply(claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
