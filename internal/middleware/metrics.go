// Package middleware provides the Gin HTTP middleware the console router
// registers before any handler.
//
// Ordering matters and is enforced in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Security → CORS → RateLimit → Auth → Handler
//
// Security headers run before auth so they appear on error responses too, and
// rate limiting runs before auth to stop brute-force attempts before any
// token work.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbit-console/rabbit-console/internal/telemetry"
)

// Metrics records request count and duration for every request. The path
// label uses the matched route template (e.g. /api/v1/clusters/:id/queues)
// rather than the raw URL; requests that match no route use "<no-route>" so
// scanners cannot inflate label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
