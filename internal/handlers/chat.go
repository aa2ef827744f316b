package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/services"
)

// ChatHandler serves the mocked generation endpoint under /api/chat.
type ChatHandler struct {
	log         *logger.Logger
	mockService services.MockChatService
}

func NewChatHandler(log *logger.Logger, mockService services.MockChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), mockService: mockService}
}

func (ch *ChatHandler) Post(c *gin.Context) {
	var req struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
		UserID  string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ChatID == "" || req.Content == "" || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: chatId, content, userId"})
		return
	}
	user, ai, err := ch.mockService.Reply(c.Request.Context(), req.ChatID, req.Content, req.UserID)
	if err != nil {
		ch.log.Warn("mock reply aborted", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": user, "aiResponse": ai})
}

func (ch *ChatHandler) Get(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameter: chatId"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultHistoryLimit)))
	if err != nil {
		limit = services.DefaultHistoryLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}
	c.JSON(http.StatusOK, ch.mockService.History(c.Request.Context(), chatID, limit, offset))
}
