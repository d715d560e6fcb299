package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware tags every request with a unique ID for log
// correlation
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()

		// Store in context for downstream use
		c.Set("request_id", requestID)

		// Add to response headers for client correlation
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

// SecurityHeadersMiddleware applies common security headers to every
// response
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// LoggingMiddleware logs all requests with structured attributes
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Wrap the response writer to capture response size
		rw := newResponseWriter(c.Writer)
		c.Writer = rw

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", float64(latency.Milliseconds()),
			"client_ip", c.ClientIP(),
			"response_size", rw.Size(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if email, exists := c.Get("email"); exists {
			attrs = append(attrs, "email", email)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.Error("Request failed - server error", attrs...)
		case status >= 400:
			slog.Warn("Request failed - client error", attrs...)
		default:
			slog.Info("Request completed", attrs...)
		}
	}
}
