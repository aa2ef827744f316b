package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/services"
)

type AvatarHandler struct {
	log            *logger.Logger
	avatarService  services.AvatarService
	sessionManager *services.SessionManager
}

func NewAvatarHandler(log *logger.Logger, avatarService services.AvatarService, sm *services.SessionManager) *AvatarHandler {
	return &AvatarHandler{
		log:            log.With("handler", "AvatarHandler"),
		avatarService:  avatarService,
		sessionManager: sm,
	}
}

// ChatAvatar renders the PNG avatar of one of the caller's chats. ?size= is
// clamped to the supported range.
func (ah *AvatarHandler) ChatAvatar(c *gin.Context) {
	sess, ok := sessionFor(c, ah.sessionManager)
	if !ok {
		return
	}
	size := services.DefaultAvatarSize
	if raw := c.Query("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			size = min(max(n, services.MinAvatarSize), services.MaxAvatarSize)
		}
	}

	chats, err := sess.Chats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	chatID := c.Param("chatId")
	for _, chat := range chats {
		if chat.ID != chatID {
			continue
		}
		buf, err := ah.avatarService.GenerateChatAvatar(chat, size)
		if err != nil {
			ah.log.Error("failed to render chat avatar", "chatID", chatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.Header("Cache-Control", "private, max-age=300")
		c.Data(http.StatusOK, "image/png", buf.Bytes())
		return
	}
	respondError(c, services.ErrChatNotFound)
}
