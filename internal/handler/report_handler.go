package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// ReportHandler exposes report generation, downloads and schedules.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Catalogue godoc
// @Summary Available report types
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/types [get]
func (h *ReportHandler) Catalogue(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Catalogue(), nil)
}

// Generate godoc
// @Summary Queue a report
// @Description Queues a report job. Criteria use the filter keys of the report's collection.
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.GenerateReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req models.GenerateReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	job, err := h.service.Generate(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Jobs godoc
// @Summary Recent report jobs
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /reports/jobs [get]
func (h *ReportHandler) Jobs(c *gin.Context) {
	items, err := h.service.ListJobs(c.Request.Context(), intQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/jobs/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished report via signed token
// @Tags Reports
// @Produce octet-stream
// @Security BearerAuth
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	file, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close()

	var size int64 = -1
	if info, err := file.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, file.ContentType, file.File, nil)
}

// Downloads godoc
// @Summary Recently downloaded reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /reports/downloads [get]
func (h *ReportHandler) Downloads(c *gin.Context) {
	items, err := h.service.RecentDownloads(c.Request.Context(), intQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Schedule godoc
// @Summary Schedule a recurring report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ScheduleReportRequest true "Schedule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/schedules [post]
func (h *ReportHandler) Schedule(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req models.ScheduleReportRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	scheduled, err := h.service.Schedule(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scheduled)
}

// Schedules godoc
// @Summary Scheduled reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/schedules [get]
func (h *ReportHandler) Schedules(c *gin.Context) {
	items, err := h.service.Schedules(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
