package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/errordata"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

// RequestLogger logs one line per completed request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("Middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString("requestID"),
			"remote_addr", c.ClientIP(),
		}
		if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.Err() != nil {
			kv = append(kv, "error", ed.Err())
		}
		switch {
		case c.Writer.Status() >= 500:
			reqLog.Error("request completed", kv...)
		case c.Writer.Status() >= 400:
			reqLog.Warn("request completed", kv...)
		default:
			reqLog.Info("request completed", kv...)
		}
	}
}
