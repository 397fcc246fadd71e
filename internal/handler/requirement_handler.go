package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// RequirementHandler serves MVK requirement tracking.
type RequirementHandler struct {
	service *service.RequirementService
}

// NewRequirementHandler constructs the handler.
func NewRequirementHandler(svc *service.RequirementService) *RequirementHandler {
	return &RequirementHandler{service: svc}
}

// List godoc
// @Summary List MVK requirements
// @Description Requirements joined with the caller's progress. The summary in meta covers every requirement.
// @Tags MVK
// @Produce json
// @Security BearerAuth
// @Param college query string false "College"
// @Param status query string false "all, not_started, in_progress or completed"
// @Param level query string false "Level"
// @Param type query string false "course or assessment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /mvk/requirements [get]
func (h *RequirementHandler) List(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	res, err := h.service.List(c.Request.Context(), claims.UserID, listQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, res)
}

// Colleges godoc
// @Summary Requirement colleges
// @Tags MVK
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mvk/colleges [get]
func (h *RequirementHandler) Colleges(c *gin.Context) {
	colleges, err := h.service.Colleges(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, colleges, nil)
}

// Progress godoc
// @Summary MVK progress by college
// @Tags MVK
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /mvk/progress [get]
func (h *RequirementHandler) Progress(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	colleges, err := h.service.ProgressByCollege(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, colleges, nil, map[string]interface{}{"summary": summary})
}

// UpdateProgress godoc
// @Summary Update requirement progress
// @Description 0 marks the requirement not started, 100 completes it
// @Tags MVK
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Requirement ID"
// @Param payload body models.UpdateProgressRequest true "Progress 0..100"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mvk/requirements/{id}/progress [put]
func (h *RequirementHandler) UpdateProgress(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req models.UpdateProgressRequest
	if !bindJSON(c, &req, "invalid progress payload") {
		return
	}
	requirement, err := h.service.UpdateProgress(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirement, nil)
}
