package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware tags each request with an ID, logs it and records
// Prometheus metrics keyed by the matched route.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger.WithField("request_id", requestID).
			Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(latency.Seconds())
	}
}
