package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/civicdata/lexcache/pkg/metrics"
)

// secretHeader carries the shared secret on indexing trigger requests.
const secretHeader = "X-Index-Secret"

// requireSecret rejects requests whose secret header does not match. The
// check happens before any handler runs, so an unauthorized request has
// no side effects. An empty configured secret locks the group entirely.
func requireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(secretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// observe records per-route request counts and latency.
func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.APIRequestsTotal.WithLabelValues(route, status).Inc()
		timer.ObserveDuration(metrics.APIRequestDuration.WithLabelValues(route))
	}
}
