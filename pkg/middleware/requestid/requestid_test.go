package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var fromGin, fromCtx string
	router := gin.New()
	router.Use(Middleware())
	router.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "lms-web.42_a", true},
		{"missing id generated", "", false},
		{"newline rejected", "abc\r\nforged: 1", false},
		{"oversized rejected", strings.Repeat("a", maxLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(Header, tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, fromGin, fromCtx)
			assert.Equal(t, fromGin, rec.Header().Get(Header))
			if tc.keep {
				assert.Equal(t, tc.header, fromGin)
				return
			}
			_, err := uuid.Parse(fromGin)
			assert.NoError(t, err)
		})
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	assert.Empty(t, Value(nil))
	assert.Empty(t, FromContext(nil)) //nolint:staticcheck
}
