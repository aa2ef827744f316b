package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/middleware"
	"github.com/dengue-gen/denguegen-backend/internal/services"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

const chatRedirect = "/chat"

type AuthHandler struct {
	log            *logger.Logger
	authService    services.AuthService
	sessionManager *services.SessionManager
	secureCookie   bool
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, sm *services.SessionManager, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		log:            log.With("handler", "AuthHandler"),
		authService:    authService,
		sessionManager: sm,
		secureCookie:   secureCookie,
	}
}

type authRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Post dispatches on the action field: login, register or logout.
func (ah *AuthHandler) Post(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch req.Action {
	case "login":
		ah.login(c, req)
	case "register":
		ah.register(c, req)
	case "logout":
		ah.logout(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}

func (ah *AuthHandler) login(c *gin.Context, req authRequest) {
	result, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ah.authError(c, err)
		return
	}
	ah.setSessionCookie(c, result.SessionToken)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user":         result.User,
		"sessionToken": result.SessionToken,
		"redirectTo":   chatRedirect,
	})
}

func (ah *AuthHandler) register(c *gin.Context, req authRequest) {
	result, err := ah.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		ah.authError(c, err)
		return
	}
	ah.setSessionCookie(c, result.SessionToken)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user":         result.User,
		"sessionToken": result.SessionToken,
		"redirectTo":   chatRedirect,
	})
}

// logout clears the cookie and tears down the in-memory chat session so its
// pending timers stop.
func (ah *AuthHandler) logout(c *gin.Context) {
	if token := middleware.ExtractToken(c); token != "" {
		if sess, err := ah.authService.Session(c.Request.Context(), token); err == nil {
			ah.sessionManager.Drop(sess.User.ID)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(types.SessionCookieName, "", -1, "/", "", ah.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Get answers ?action=session with the profile of the cookie's token, or null.
func (ah *AuthHandler) Get(c *gin.Context) {
	if c.Query("action") != "session" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}
	token := middleware.ExtractToken(c)
	if token == "" {
		c.JSON(http.StatusOK, nil)
		return
	}
	sess, err := ah.authService.Session(c.Request.Context(), token)
	if err != nil {
		ah.log.Debug("session token rejected", "error", err)
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (ah *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(ah.authService.GetSessionTTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(types.SessionCookieName, token, maxAge, "/", "", ah.secureCookie, true)
}

func (ah *AuthHandler) authError(c *gin.Context, err error) {
	var inErr *services.AuthInputError
	switch {
	case errors.As(err, &inErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     inErr.Error(),
			"errorCode": services.ErrCodeInvalidInput,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"success":   false,
			"error":     err.Error(),
			"errorCode": services.ErrCodeInvalidCredentials,
		})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"error":     err.Error(),
			"errorCode": services.ErrCodeEmailTaken,
		})
	default:
		ah.log.Error("auth request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
