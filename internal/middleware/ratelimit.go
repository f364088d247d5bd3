package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"linktree-ai-go/pkg/log"
)

// tenantFromRequest extracts the tenant id from the path, the query
// string, or the request body, in that order.
func tenantFromRequest(c *gin.Context) string {
	if tenantID := c.Param("tenant_id"); tenantID != "" {
		return tenantID
	}
	if tenantID := c.Query("tenant_id"); tenantID != "" {
		return tenantID
	}
	if c.Request.Body == nil {
		return ""
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var probe struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(bodyBytes, &probe); err != nil {
		return ""
	}
	return probe.TenantID
}

// RateLimit enforces a fixed-window per-tenant request limit backed by
// a Redis counter. Requests without a tenant id pass through; a Redis
// outage fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 600
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *gin.Context) {
		tenantID := tenantFromRequest(c)
		if tenantID == "" {
			c.Next()
			return
		}

		key := "ratelimit:" + tenantID
		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Warnf("rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rdb.Expire(c.Request.Context(), key, window).Err(); err != nil {
				log.Warnf("failed to set rate limit window for %s: %v", tenantID, err)
			}
		}

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please slow down",
			})
			return
		}
		c.Next()
	}
}
