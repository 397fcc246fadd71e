package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
)

func perform(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, *gin.Context, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var env Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, c, env
}

func TestList(t *testing.T) {
	rec, _, env := perform(t, func(c *gin.Context) {
		List(c, []string{"crs-002"}, models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"summary": map[string]int{"total": 6}})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	assert.Contains(t, env.Meta, "summary")
}

func TestJSONOmitsEmptyMeta(t *testing.T) {
	rec, _, _ := perform(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, "ok", nil, map[string]interface{}{})
	})
	assert.NotContains(t, rec.Body.String(), "meta")
}

func TestAccepted(t *testing.T) {
	rec, _, _ := perform(t, func(c *gin.Context) { Accepted(c, map[string]string{"id": "job-1"}) })
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestErrorAttachesServerFailures(t *testing.T) {
	rec, c, env := perform(t, func(c *gin.Context) { Error(c, errors.New("disk full")) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInternal.Code, env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
	assert.Len(t, c.Errors, 1)
	assert.True(t, c.IsAborted())

	rec, c, env = perform(t, func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found")) })
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "course not found", env.Error.Message)
	assert.Empty(t, c.Errors)
}
