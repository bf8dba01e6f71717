package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hotvault/hotvault-backend/pkg/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	loggerKey       = "logger"
)

// quietPaths are probed constantly by load balancers; their completions are
// logged at debug unless they fail.
var quietPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// LoggingMiddleware tags each request with an ID, stores a request-scoped
// logger in the context and logs the outcome once the handler chain returns.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		reqLog := logger.WithContext(logger.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
		})
		c.Set(loggerKey, reqLog)

		c.Next()

		status := c.Writer.Status()
		fields := logger.Fields{
			"status_code": status,
			"latency_ms":  time.Since(start).Milliseconds(),
			"body_size":   c.Writer.Size(),
		}
		// route template, e.g. /api/carts/:id/items
		if route := c.FullPath(); route != "" {
			fields["route"] = route
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLog.Error("Request failed", nil, fields)
		case status >= http.StatusBadRequest:
			reqLog.Warn("Request rejected", fields)
		case quietPaths[c.Request.URL.Path]:
			reqLog.Debug("Request completed", fields)
		default:
			reqLog.Info("Request completed", fields)
		}
	}
}

// GetRequestID returns the ID assigned by LoggingMiddleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GetLoggerFromContext returns the request-scoped logger, or the global one
// outside LoggingMiddleware.
func GetLoggerFromContext(c *gin.Context) *logger.Logger {
	if l, ok := c.Value(loggerKey).(*logger.Logger); ok {
		return l
	}
	return logger.Get()
}
