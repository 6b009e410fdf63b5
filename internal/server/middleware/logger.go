package middleware

import (
	"time"

	"github.com/Wei-Shaw/tokengate/internal/pkg/ctxkey"
	"github.com/Wei-Shaw/tokengate/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger writes one structured access log line per completed request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// High-frequency probe paths stay out of the access log.
		if path == "/health" {
			return
		}

		endTime := time.Now()
		latency := endTime.Sub(startTime)

		fields := []zap.Field{
			zap.String("component", "http.access"),
			zap.Int("status_code", c.Writer.Status()),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("protocol", c.Request.Proto),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		}
		if tenantKey, ok := c.Request.Context().Value(ctxkey.TenantKey).(string); ok && tenantKey != "" {
			fields = append(fields, zap.String("tenant_key", tenantKey))
		}

		l := logger.FromContext(c.Request.Context()).With(fields...)
		l.Info("http request completed", zap.Time("completed_at", endTime))

		if len(c.Errors) > 0 {
			l.Warn("http request contains gin errors", zap.String("errors", c.Errors.String()))
		}
	}
}
