package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// GamificationHandler serves badges, awards, points and the leaderboard.
type GamificationHandler struct {
	service *service.GamificationService
}

// NewGamificationHandler constructs the handler.
func NewGamificationHandler(svc *service.GamificationService) *GamificationHandler {
	return &GamificationHandler{service: svc}
}

// Badges godoc
// @Summary List badges
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param tier query string false "bronze, silver, gold or platinum"
// @Param active query bool false "Active flag"
// @Success 200 {object} response.Envelope
// @Router /gamification/badges [get]
func (h *GamificationHandler) Badges(c *gin.Context) {
	res, err := h.service.Badges(c.Request.Context(), listQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, res)
}

// Achievements godoc
// @Summary List achievements
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /gamification/achievements [get]
func (h *GamificationHandler) Achievements(c *gin.Context) {
	items, err := h.service.Achievements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Award godoc
// @Summary Grant an award
// @Description Grants a badge, an achievement or bonus points to an active learner
// @Tags Gamification
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AwardRequest true "Award payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gamification/awards [post]
func (h *GamificationHandler) Award(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req models.AwardRequest
	if !bindJSON(c, &req, "invalid award payload") {
		return
	}
	award, err := h.service.Award(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, award)
}

// MyStats godoc
// @Summary Points and level of the caller
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /gamification/me/stats [get]
func (h *GamificationHandler) MyStats(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	h.stats(c, claims.UserID)
}

// LearnerStats godoc
// @Summary Points and level of a learner
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gamification/learners/{id}/stats [get]
func (h *GamificationHandler) LearnerStats(c *gin.Context) {
	h.stats(c, c.Param("id"))
}

func (h *GamificationHandler) stats(c *gin.Context, userID string) {
	stats, err := h.service.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// MyAwards godoc
// @Summary Awards of the caller, newest first
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /gamification/me/awards [get]
func (h *GamificationHandler) MyAwards(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	awards, err := h.service.Awards(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, awards, nil)
}

// MyTransactions godoc
// @Summary Point movements of the caller
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /gamification/me/transactions [get]
func (h *GamificationHandler) MyTransactions(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	txs, err := h.service.Transactions(c.Request.Context(), claims.UserID, intQuery(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txs, nil)
}

// Leaderboard godoc
// @Summary Learner leaderboard
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /gamification/leaderboard [get]
func (h *GamificationHandler) Leaderboard(c *gin.Context) {
	entries, err := h.service.Leaderboard(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Activities godoc
// @Summary Recent activity feed
// @Tags Gamification
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /gamification/activities [get]
func (h *GamificationHandler) Activities(c *gin.Context) {
	items, err := h.service.Activities(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
