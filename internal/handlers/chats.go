package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/services"
)

// ChatsHandler exposes the chat session of the caller: chats, messages,
// search and onboarding.
type ChatsHandler struct {
	log            *logger.Logger
	sessionManager *services.SessionManager
}

func NewChatsHandler(log *logger.Logger, sm *services.SessionManager) *ChatsHandler {
	return &ChatsHandler{log: log.With("handler", "ChatsHandler"), sessionManager: sm}
}

func (h *ChatsHandler) Session(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ListChats returns every chat, or those whose name or preview contains ?q=.
func (h *ChatsHandler) ListChats(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		chats, err := sess.FilterChats(ctx, q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": chats})
		return
	}
	chats, err := sess.Chats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatsHandler) CreateChat(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	chat, err := sess.CreateChat(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatsHandler) SelectChat(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	snap, err := sess.SelectChat(c.Request.Context(), c.Param("chatId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ChatsHandler) RenameChat(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chat, err := sess.RenameChat(c.Request.Context(), c.Param("chatId"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if chat == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// DeleteChat requires ?confirm=true. Without it nothing changes and 409 is returned.
func (h *ChatsHandler) DeleteChat(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	next, err := sess.DeleteChat(c.Request.Context(), c.Param("chatId"), queryBool(c, "confirm"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeChatId": next})
}

func (h *ChatsHandler) ListMessages(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	chatID := c.Param("chatId")
	msgs, err := sess.Messages(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "isTyping": sess.IsTyping(chatID)})
}

func (h *ChatsHandler) SendMessage(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := sess.SendMessage(c.Request.Context(), c.Param("chatId"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatsHandler) EditMessage(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := sess.EditMessage(c.Request.Context(), c.Param("chatId"), c.Param("messageId"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ChatsHandler) DeleteMessage(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	removed, err := sess.DeleteMessage(c.Request.Context(), c.Param("chatId"), c.Param("messageId"), queryBool(c, "confirm"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}
