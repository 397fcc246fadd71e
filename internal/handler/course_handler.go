package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// CourseHandler exposes the course catalogue to learners.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler constructs a course handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses
// @Description Lists the catalogue joined with the caller's enrollments. The summary in meta covers every course.
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param level query string false "Level"
// @Param college query string false "College"
// @Param status query string false "all, enrolled, in_progress, completed or not_enrolled"
// @Param search query string false "Matches title and description"
// @Param sort_by query string false "title, progress or college"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
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

// Options godoc
// @Summary Course filter options
// @Description Distinct levels, colleges and statuses usable as course filters
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/options [get]
func (h *CourseHandler) Options(c *gin.Context) {
	opts, err := h.service.Options(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, opts, nil)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	course, err := h.service.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Enroll godoc
// @Summary Enroll in course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	course, err := h.service.Enroll(c.Request.Context(), claims.UserID, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateProgress godoc
// @Summary Update course progress
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body models.UpdateProgressRequest true "Progress 0..100"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/progress [put]
func (h *CourseHandler) UpdateProgress(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req models.UpdateProgressRequest
	if !bindJSON(c, &req, "invalid progress payload") {
		return
	}
	course, err := h.service.UpdateProgress(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Stats godoc
// @Summary Course summary of the caller
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/stats [get]
func (h *CourseHandler) Stats(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
