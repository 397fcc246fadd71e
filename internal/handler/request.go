package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/middleware"
	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/internal/service"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/filter"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// Query parameters that steer paging and ordering. Every other parameter is a filter criterion.
var reservedParams = map[string]struct{}{
	"page":       {},
	"page_size":  {},
	"sort_by":    {},
	"sort_order": {},
}

// listQuery reads criteria, ordering and paging from the query string. Repeated parameters keep
// their first value.
func listQuery(c *gin.Context) service.ListQuery {
	q := service.ListQuery{Criteria: filter.Criteria{}}
	for key, values := range c.Request.URL.Query() {
		if _, reserved := reservedParams[key]; reserved || len(values) == 0 {
			continue
		}
		q.Criteria[key] = strings.TrimSpace(values[0])
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		q.Page.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size")); err == nil {
		q.Page.PageSize = size
	}
	q.Order = filter.Order{
		Key:  strings.TrimSpace(c.Query("sort_by")),
		Desc: strings.EqualFold(c.Query("sort_order"), "desc"),
	}
	return q
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}

// respondList writes one page of a listing with its summary in meta.
func respondList[T any](c *gin.Context, res *service.ListResult[T]) {
	middleware.SetMeta(c, "summary", res.Summary)
	response.List(c, res.Items, res.Pagination, metaOf(c))
}

func metaOf(c *gin.Context) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return meta
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// mustClaims returns the caller's claims, writing 401 when the request is anonymous.
func mustClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// bindAs decodes the body into a fresh Req for an authenticated caller.
func bindAs[Req any](c *gin.Context, message string) (Req, *models.JWTClaims, bool) {
	var req Req
	claims, ok := mustClaims(c)
	if !ok || !bindJSON(c, &req, message) {
		return req, nil, false
	}
	return req, claims, true
}

// reply writes data with status, or the error when err is set. 201 uses the created envelope.
func reply(c *gin.Context, status int, data interface{}, err error) {
	switch {
	case err != nil:
		response.Error(c, err)
	case status == http.StatusCreated:
		response.Created(c, data)
	default:
		response.JSON(c, status, data, nil)
	}
}

// listAuditLogs godoc
// @Summary Recent audit entries
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Entries to return (1-200, default 50)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit-logs [get]
func listAuditLogs(store AuditStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 50)
		if limit < 1 || limit > 200 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 200"))
			return
		}
		logs, err := store.ListAuditLogs(c.Request.Context(), limit)
		if err != nil {
			response.Error(c, appErrors.Internal(err, "failed to list audit logs"))
			return
		}
		response.JSON(c, http.StatusOK, logs, nil)
	}
}
