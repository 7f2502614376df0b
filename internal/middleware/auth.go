// Package middleware provides the shared gin middleware for the automation
// API: request id, API-key tenant auth, and Prometheus instrumentation.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/httputil"
)

// TenantSlugKey is the gin context key handlers read the authenticated
// tenant from.
const TenantSlugKey = "tenant_slug"

// authTimingFloor is the minimum response time for auth failures to prevent
// timing oracle attacks that could distinguish valid from invalid API keys.
const authTimingFloor = 50 * time.Millisecond

// TenantLookup is the interface for looking up a tenant by API key.
type TenantLookup interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AuthMiddleware returns gin middleware that authenticates requests via
// Bearer API key and resolves the tenant slug into the request context.
func AuthMiddleware(lookup TenantLookup, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			httputil.RespondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		tenantSlug, err := lookup.GetTenantByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logAuthFailure(log, c, apiKey)
			httputil.RespondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		c.Set(TenantSlugKey, tenantSlug)
		c.Next()
	}
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, apiKey string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString("request_id"),
		"key_prefix": truncateKey(apiKey),
	}).Warn("authentication failed: invalid api key")
}
