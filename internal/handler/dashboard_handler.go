package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/middleware"
	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

type dashboardService interface {
	ForRole(ctx context.Context, userID string, role models.UserRole) (interface{}, bool, error)
	Learner(ctx context.Context, userID string) (*models.LearnerDashboard, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Mine godoc
// @Summary Dashboard of the caller's role
// @Description Admins get platform totals, instructors learner reach and awards, learners their own progress
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Mine(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	payload, cacheHit, err := h.service.ForRole(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, payload, nil, metaOf(c))
}

// Learner godoc
// @Summary Dashboard of a learner
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/learners/{id} [get]
func (h *DashboardHandler) Learner(c *gin.Context) {
	payload, err := h.service.Learner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
