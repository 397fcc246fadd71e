package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ace-lms-api/internal/models"
	"github.com/noah-isme/ace-lms-api/pkg/middleware/requestid"
)

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records one entry per request that finishes below 400. A failed write is logged and
// never changes the response.
func Audit(repo AuditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		entry := auditEntry(c, action, resource, time.Since(start))
		if err := repo.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("write failed",
				zap.String("action", action),
				zap.String("request_id", requestid.Value(c)),
				zap.Error(err))
		}
	}
}

func auditEntry(c *gin.Context, action, resource string, latency time.Duration) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if claims := CurrentUser(c); claims != nil {
		uid := claims.UserID
		entry.UserID = &uid
	}
	if id := c.Param("id"); id != "" {
		entry.ResourceID = &id
	}

	values := map[string]interface{}{
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"status":     c.Writer.Status(),
		"latency_ms": latency.Milliseconds(),
	}
	if rid := requestid.Value(c); rid != "" {
		values["request_id"] = rid
	}
	entry.NewValues, _ = json.Marshal(values)
	return entry
}
