package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/chat"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
)

// Chat is the messaging facade, wired in main.
var Chat *chat.Service

func respondError(c *gin.Context, err error) {
	if appErr, ok := errors.IsAppError(err); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// ListConversations GET /chat/conversations
func ListConversations(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	conversations, err := Chat.ListConversations(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// ResolveConversation POST /chat/conversations/resolve
// Body: {conversationId?} or {otherUserId?}; both absent resolves the
// caller's self-conversation.
func ResolveConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		ConversationID string `json:"conversationId"`
		OtherUserID    string `json:"otherUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conv, err := Chat.Resolve(userID, chat.ResolveTarget{
		ConversationID: req.ConversationID,
		OtherUserID:    req.OtherUserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// SendMessage POST /chat/messages
func SendMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req chat.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := Chat.Send(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// GetMessages GET /chat/conversations/:id/messages
// Query: page (page mode) or cursor/take/skip (cursor mode), plus an optional
// focusMessageId which overrides the requested position in either mode.
func GetMessages(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	req := chat.WindowRequest{
		Mode:           chat.PageMode,
		FocusMessageID: c.Query("focusMessageId"),
	}
	if cursor, hasCursor := c.GetQuery("cursor"); hasCursor || c.Query("take") != "" {
		req.Mode = chat.CursorMode
		req.Cursor = cursor
		req.Take, _ = strconv.Atoi(c.DefaultQuery("take", "0"))
		req.Skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	} else {
		req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	}

	window, err := Chat.FetchMessages(userID, conversationID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, window)
}

// MarkConversationRead POST /chat/conversations/:id/read
func MarkConversationRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	var req struct {
		MessageID string `json:"messageId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageId required"})
		return
	}

	if err := Chat.MarkRead(userID, conversationID, req.MessageID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetPresence POST /chat/presence
// Toggles the in-chat marker for one conversation, or all of the caller's
// conversations when conversationId is omitted.
func SetPresence(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		ConversationID string `json:"conversationId"`
		IsInChat       *bool  `json:"isInChat" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isInChat required"})
		return
	}

	if err := Chat.SetPresence(userID, req.ConversationID, *req.IsInChat); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MatchAnonymousChat POST /chat/anonymous/match
func MatchAnonymousChat(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	conv, err := Chat.FindOrCreateAnonymousChat(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if conv == nil {
		c.JSON(http.StatusOK, gin.H{
			"conversation": nil,
			"waiting":      true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// SetAnonymousLooking POST /chat/anonymous/looking
func SetAnonymousLooking(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		Looking *bool `json:"looking" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "looking required"})
		return
	}

	if *req.Looking {
		conv, err := Chat.FindOrCreateAnonymousChat(userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": conv, "waiting": conv == nil})
		return
	}

	if err := Chat.StopLookingForAnonymousChat(userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteConversation DELETE /chat/conversations/:id
func DeleteConversation(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	conversationID := c.Param("id")

	if err := Chat.DeleteConversation(userID, conversationID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
