package chat

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
)

func TestSendRequiresContentOrAttachment(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")

	_, err := svc.Send("alice", SendInput{ReceiverID: "bob"})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestSendRequiresTarget(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")

	_, err := svc.Send("alice", SendInput{Content: "hello"})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestSendRejectsNonMember(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 1)
	createUser(t, svc.db, "carol")

	_, err := svc.Send("carol", SendInput{ConversationID: conv.ID, Content: "hi"})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestSendRejectsMissingAttachment(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	_, err := svc.Send("alice", SendInput{ReceiverID: "bob", AttachmentIDs: []string{"missing"}})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestSendWithAttachments(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	file := models.File{Type: models.FileTypeImage, URL: "https://cdn.example.com/a.jpg", UploaderID: "alice"}
	assert.NoError(t, svc.db.Create(&file).Error)

	msg, err := svc.Send("alice", SendInput{ReceiverID: "bob", AttachmentIDs: []string{file.ID}})
	assert.NoError(t, err)
	assert.Nil(t, msg.Content)
	assert.Len(t, msg.Attachments, 1)
	assert.Equal(t, file.ID, msg.Attachments[0].FileID)
}

func TestSendBumpsAndUnhidesConversation(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	conv, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "bob"})
	assert.NoError(t, err)
	assert.NoError(t, svc.db.Model(conv).Update("is_hidden", true).Error)

	time.Sleep(2 * time.Millisecond)
	msg, err := svc.Send("alice", SendInput{ConversationID: conv.ID, Content: "hello"})
	assert.NoError(t, err)

	var reloaded models.Conversation
	assert.NoError(t, svc.db.First(&reloaded, "id = ?", conv.ID).Error)
	assert.False(t, reloaded.IsHidden)
	assert.False(t, reloaded.UpdatedAt.Before(msg.CreatedAt))
}

func TestSendPublishesEvents(t *testing.T) {
	svc, bus := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	msg, err := svc.Send("alice", SendInput{ReceiverID: "bob", Content: "hello"})
	assert.NoError(t, err)

	topics := bus.topics()
	assert.Contains(t, topics, TopicNewMessage)
	assert.Contains(t, topics, TopicConversationChanged)

	for _, e := range bus.events {
		if e.Topic == TopicNewMessage {
			payload, ok := e.Payload.(MessageEvent)
			assert.True(t, ok)
			assert.Equal(t, msg.ID, payload.Message.ID)
			assert.ElementsMatch(t, []string{"alice", "bob"}, payload.Recipients())
		}
	}
}

func TestAlternatingSendsShareOneConversation(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	// Five messages back and forth, always addressed by receiver id.
	senders := []string{"alice", "bob", "alice", "bob", "alice"}
	for i, sender := range senders {
		receiver := "bob"
		if sender == "bob" {
			receiver = "alice"
		}
		_, err := svc.Send(sender, SendInput{ReceiverID: receiver, Content: "turn"})
		assert.NoError(t, err, "send %d", i)
		time.Sleep(2 * time.Millisecond)
	}

	var convCount int64
	svc.db.Model(&models.Conversation{}).Count(&convCount)
	assert.Equal(t, int64(1), convCount)

	conv, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "bob"})
	assert.NoError(t, err)

	var msgCount int64
	svc.db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&msgCount)
	assert.Equal(t, int64(5), msgCount)

	// alice sent last, so her count is clean; bob has exactly the alice
	// messages sent after his own last send.
	assert.Equal(t, 0, memberState(t, svc, conv.ID, "alice").UnreadMessageCount)
	assert.Equal(t, 1, memberState(t, svc, conv.ID, "bob").UnreadMessageCount)
}

func TestDeleteConversationRemovesEverything(t *testing.T) {
	svc, bus := newTestService(t)
	conv, _ := seedConversation(t, svc, 3)

	assert.NoError(t, svc.DeleteConversation("alice", conv.ID))

	var convCount, msgCount, memberCount int64
	svc.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).Count(&convCount)
	svc.db.Unscoped().Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&msgCount)
	svc.db.Model(&models.ConversationMember{}).Where("conversation_id = ?", conv.ID).Count(&memberCount)
	assert.Zero(t, convCount)
	assert.Zero(t, msgCount)
	assert.Zero(t, memberCount)

	assert.Contains(t, bus.topics(), TopicConversationChanged)
}

func TestDeleteThenResolveCreatesFreshConversation(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 2)

	assert.NoError(t, svc.DeleteConversation("alice", conv.ID))

	fresh, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "bob"})
	assert.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)

	var msgCount int64
	svc.db.Model(&models.Message{}).Where("conversation_id = ?", fresh.ID).Count(&msgCount)
	assert.Zero(t, msgCount)
}

func TestDeleteConversationRequiresMemberOrAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 1)
	createUser(t, svc.db, "carol")

	err := svc.DeleteConversation("carol", conv.ID)
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.Code)

	admin := createUser(t, svc.db, "root")
	assert.NoError(t, svc.db.Model(&admin).Update("role", models.RoleAdmin).Error)
	assert.NoError(t, svc.DeleteConversation("root", conv.ID))
}

func TestSetPresenceForOneConversation(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 1)

	assert.NoError(t, svc.SetPresence("alice", conv.ID, true))
	assert.True(t, memberState(t, svc, conv.ID, "alice").IsCurrentlyInChat)

	assert.NoError(t, svc.SetPresence("alice", conv.ID, false))
	assert.False(t, memberState(t, svc, conv.ID, "alice").IsCurrentlyInChat)
}

func TestSetPresenceUnknownMembershipIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")

	err := svc.SetPresence("alice", "missing", true)
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestSetPresenceWithoutTargetTogglesAllMemberships(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")
	createUser(t, svc.db, "carol")

	c1, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "bob"})
	assert.NoError(t, err)
	c2, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "carol"})
	assert.NoError(t, err)

	assert.NoError(t, svc.SetPresence("alice", "", true))
	assert.True(t, memberState(t, svc, c1.ID, "alice").IsCurrentlyInChat)
	assert.True(t, memberState(t, svc, c2.ID, "alice").IsCurrentlyInChat)

	// Other members are untouched.
	assert.False(t, memberState(t, svc, c1.ID, "bob").IsCurrentlyInChat)

	assert.NoError(t, svc.SetPresence("alice", "", false))
	assert.False(t, memberState(t, svc, c1.ID, "alice").IsCurrentlyInChat)
	assert.False(t, memberState(t, svc, c2.ID, "alice").IsCurrentlyInChat)
}

func TestListConversationsOrderedByActivity(t *testing.T) {
	svc, _ := newTestService(t)
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")
	createUser(t, svc.db, "carol")

	_, err := svc.Send("alice", SendInput{ReceiverID: "bob", Content: "first"})
	assert.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.Send("alice", SendInput{ReceiverID: "carol", Content: "second"})
	assert.NoError(t, err)

	inbox, err := svc.ListConversations("alice")
	assert.NoError(t, err)
	assert.Len(t, inbox, 2)

	// Most recent activity first.
	assert.ElementsMatch(t, []string{"alice", "carol"}, inbox[0].Conversation.MemberIDs())
	assert.ElementsMatch(t, []string{"alice", "bob"}, inbox[1].Conversation.MemberIDs())

	assert.NotNil(t, inbox[0].Me)
	assert.Equal(t, "alice", inbox[0].Me.UserID)
	assert.NotNil(t, inbox[0].LastMessage)
	assert.Equal(t, "second", *inbox[0].LastMessage.Content)

	// bob sees only his own conversation.
	bobInbox, err := svc.ListConversations("bob")
	assert.NoError(t, err)
	assert.Len(t, bobInbox, 1)
}

func TestListConversationsExcludesHidden(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 1)

	assert.NoError(t, svc.db.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).Update("is_hidden", true).Error)

	inbox, err := svc.ListConversations("alice")
	assert.NoError(t, err)
	assert.Empty(t, inbox)

	// Sending brings it back.
	_, err = svc.Send("alice", SendInput{ConversationID: conv.ID, Content: "hello again"})
	assert.NoError(t, err)
	inbox, err = svc.ListConversations("alice")
	assert.NoError(t, err)
	assert.Len(t, inbox, 1)
}
