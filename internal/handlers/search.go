package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Search returns suggestions for ?q=. With ?chatId= it only reports whether
// that chat's messages match.
func (h *ChatsHandler) Search(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	query := c.Query("q")
	if chatID := c.Query("chatId"); chatID != "" {
		match, err := sess.ChatHasMatch(ctx, chatID, query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chatId": chatID, "match": match})
		return
	}
	suggestions, err := sess.Suggest(ctx, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func (h *ChatsHandler) RecordSearch(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	var req struct {
		Term string `json:"term"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	recent, err := sess.RecordSearch(c.Request.Context(), req.Term)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recent": recent})
}

func (h *ChatsHandler) ClearRecentSearches(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	if err := sess.ClearRecentSearches(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatsHandler) Onboarding(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	done, err := sess.OnboardingCompleted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": done})
}

func (h *ChatsHandler) CompleteOnboarding(c *gin.Context) {
	sess, ok := sessionFor(c, h.sessionManager)
	if !ok {
		return
	}
	if err := sess.CompleteOnboarding(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}
