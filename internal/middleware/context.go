package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dengue-gen/denguegen-backend/internal/errordata"
)

const RequestIDHeader = "X-Request-ID"

// AttachRequestContext gives every request an id and an error carrier.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := errordata.WithErrorData(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
