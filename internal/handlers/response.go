package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/errordata"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
	"github.com/dengue-gen/denguegen-backend/internal/services"
)

// respondError maps service errors onto HTTP statuses. Validation errors carry
// their user-facing message.
func respondError(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, "Internal server error"
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		status, body = http.StatusBadRequest, vErr.Message
	case errors.Is(err, services.ErrConfirmationRequired):
		status, body = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrChatNotFound):
		status, body = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrSessionNotReady), errors.Is(err, services.ErrSessionClosed):
		status, body = http.StatusServiceUnavailable, err.Error()
	}
	if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
		ed.Record(err, status)
	}
	c.JSON(status, gin.H{"error": body})
}

// sessionFor resolves the chat session of the authenticated caller.
func sessionFor(c *gin.Context, sm *services.SessionManager) (*services.Session, bool) {
	ctx := c.Request.Context()
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	sess, err := sm.Get(ctx, rd.User())
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}

func queryBool(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "true", "1", "yes":
		return true
	}
	return false
}
