package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	metaStartKey    = "response_meta_start"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta starts the per-request meta map that handlers fill and the envelope carries.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// SetMeta records an arbitrary metadata entry, such as a listing summary.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaMap(c, true); meta != nil {
		meta[key] = value
	}
}

// ExtractMeta returns the metadata gathered so far, stamped with the request id and the
// time spent since WithResponseMeta ran. It is nil when the middleware is not installed
// and nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaMap(c, false)
	if meta == nil {
		return nil
	}
	if v, ok := c.Get(metaStartKey); ok {
		if start, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func metaMap(c *gin.Context, create bool) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	if !create {
		return nil
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
