package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/chat"
	"github.com/cupizz/cupizz-server-sub000/internal/models"
)

// setupChatRouter wires the chat handlers against an in-memory DB with the
// auth middleware replaced by a stub that trusts the X-Test-User header.
func setupChatRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.Message{},
		&models.MessageAttachment{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	Chat = chat.NewService(db, nil, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", c.GetHeader("X-Test-User"))
		c.Next()
	})
	api := r.Group("/api/chat")
	{
		api.GET("/conversations", ListConversations)
		api.POST("/conversations/resolve", ResolveConversation)
		api.GET("/conversations/:id/messages", GetMessages)
		api.POST("/conversations/:id/read", MarkConversationRead)
		api.DELETE("/conversations/:id", DeleteConversation)
		api.POST("/messages", SendMessage)
		api.POST("/presence", SetPresence)
		api.POST("/anonymous/match", MatchAnonymousChat)
	}
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		user := models.User{ID: id, NickName: id, Email: id + "@example.com"}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("failed to create user %s: %v", id, err)
		}
	}
}

func TestResolveConversationEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	w := doJSON(t, r, http.MethodPost, "/api/chat/conversations/resolve", "alice",
		gin.H{"otherUserId": "bob"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversation models.Conversation `json:"conversation"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Conversation.ID)
	assert.Len(t, resp.Conversation.Members, 2)

	// Resolving again returns the same conversation.
	w2 := doJSON(t, r, http.MethodPost, "/api/chat/conversations/resolve", "bob",
		gin.H{"otherUserId": "alice"})
	assert.Equal(t, http.StatusOK, w2.Code)
	var resp2 struct {
		Conversation models.Conversation `json:"conversation"`
	}
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Conversation.ID, resp2.Conversation.ID)
}

func TestResolveConversationUnknownUserIs404(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice")

	w := doJSON(t, r, http.MethodPost, "/api/chat/conversations/resolve", "alice",
		gin.H{"otherUserId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendAndFetchMessagesEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	w := doJSON(t, r, http.MethodPost, "/api/chat/messages", "alice",
		gin.H{"receiverId": "bob", "content": "hello bob"})
	assert.Equal(t, http.StatusOK, w.Code)

	var sent struct {
		Message models.Message `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.Message.ID)

	w2 := doJSON(t, r, http.MethodGet,
		"/api/chat/conversations/"+sent.Message.ConversationID+"/messages?page=1", "bob", nil)
	assert.Equal(t, http.StatusOK, w2.Code)

	var window chat.MessageWindow
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &window))
	assert.Len(t, window.Messages, 1)
	assert.True(t, window.IsLastPage)
	assert.Equal(t, "hello bob", *window.Messages[0].Content)
}

func TestSendMessageRequiresBody(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	w := doJSON(t, r, http.MethodPost, "/api/chat/messages", "alice",
		gin.H{"receiverId": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessagesCursorModeEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	var convID string
	for i := 0; i < 5; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/chat/messages", "alice",
			gin.H{"receiverId": "bob", "content": fmt.Sprintf("m%d", i)})
		assert.Equal(t, http.StatusOK, w.Code)
		var sent struct {
			Message models.Message `json:"message"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
		convID = sent.Message.ConversationID
	}

	w := doJSON(t, r, http.MethodGet,
		"/api/chat/conversations/"+convID+"/messages?take=3", "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var window chat.MessageWindow
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &window))
	assert.Len(t, window.Messages, 3)
	assert.False(t, window.IsLastPage)
}

func TestGetMessagesForbiddenForNonMember(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob", "carol")

	w := doJSON(t, r, http.MethodPost, "/api/chat/messages", "alice",
		gin.H{"receiverId": "bob", "content": "private"})
	assert.Equal(t, http.StatusOK, w.Code)
	var sent struct {
		Message models.Message `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))

	w2 := doJSON(t, r, http.MethodGet,
		"/api/chat/conversations/"+sent.Message.ConversationID+"/messages", "carol", nil)
	assert.Equal(t, http.StatusForbidden, w2.Code)
}

func TestMarkConversationReadEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	w := doJSON(t, r, http.MethodPost, "/api/chat/messages", "alice",
		gin.H{"receiverId": "bob", "content": "unread me"})
	assert.Equal(t, http.StatusOK, w.Code)
	var sent struct {
		Message models.Message `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))

	w2 := doJSON(t, r, http.MethodPost,
		"/api/chat/conversations/"+sent.Message.ConversationID+"/read", "bob",
		gin.H{"messageId": sent.Message.ID})
	assert.Equal(t, http.StatusOK, w2.Code)

	var member models.ConversationMember
	assert.NoError(t, db.Where("conversation_id = ? AND user_id = ?",
		sent.Message.ConversationID, "bob").First(&member).Error)
	assert.Equal(t, 0, member.UnreadMessageCount)
}

func TestMatchAnonymousChatEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	// Nobody waiting: alice enters the pool.
	w := doJSON(t, r, http.MethodPost, "/api/chat/anonymous/match", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var waiting struct {
		Waiting bool `json:"waiting"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &waiting))
	assert.True(t, waiting.Waiting)

	// bob matches with the waiting alice.
	w2 := doJSON(t, r, http.MethodPost, "/api/chat/anonymous/match", "bob", nil)
	assert.Equal(t, http.StatusOK, w2.Code)
	var matched struct {
		Conversation *models.Conversation `json:"conversation"`
	}
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &matched))
	assert.NotNil(t, matched.Conversation)
	assert.True(t, matched.Conversation.IsAnonymousChat)
}

func TestDeleteConversationEndpoint(t *testing.T) {
	r, db := setupChatRouter(t)
	seedUsers(t, db, "alice", "bob")

	w := doJSON(t, r, http.MethodPost, "/api/chat/conversations/resolve", "alice",
		gin.H{"otherUserId": "bob"})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Conversation models.Conversation `json:"conversation"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w2 := doJSON(t, r, http.MethodDelete,
		"/api/chat/conversations/"+resp.Conversation.ID, "alice", nil)
	assert.Equal(t, http.StatusOK, w2.Code)

	var count int64
	db.Model(&models.Conversation{}).Where("id = ?", resp.Conversation.ID).Count(&count)
	assert.Zero(t, count)
}
