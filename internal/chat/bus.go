package chat

import "github.com/cupizz/cupizz-server-sub000/internal/models"

// Event topics fanned out to live subscribers. Delivery is best-effort;
// missed events are not persisted.
const (
	TopicNewMessage          = "new_message"
	TopicConversationChanged = "conversation_changed"
	TopicAnonymousChatFound  = "anonymous_chat_found"
)

// Bus fans out already-computed results to currently-subscribed listeners.
// Implementations must never block the caller on delivery.
type Bus interface {
	Publish(topic string, payload interface{})
}

// Notifier dispatches push notifications. Failures are logged by callers and
// never propagated to the user-facing operation.
type Notifier interface {
	Notify(recipientUserIDs []string, title, body string, data map[string]interface{}) error
}

// Addressed is implemented by event payloads that know their recipients, so
// transports can route to per-user channels.
type Addressed interface {
	Recipients() []string
}

type MessageEvent struct {
	UserIDs []string        `json:"-"`
	Message *models.Message `json:"message"`
}

func (e MessageEvent) Recipients() []string { return e.UserIDs }

type ConversationEvent struct {
	UserIDs      []string             `json:"-"`
	Conversation *models.Conversation `json:"conversation"`
	Deleted      bool                 `json:"deleted,omitempty"`
}

func (e ConversationEvent) Recipients() []string { return e.UserIDs }

type MemberEvent struct {
	UserIDs []string                   `json:"-"`
	Member  *models.ConversationMember `json:"member"`
}

func (e MemberEvent) Recipients() []string { return e.UserIDs }

// NopBus drops everything. Used when no realtime transport is mounted.
type NopBus struct{}

func (NopBus) Publish(string, interface{}) {}

// NopNotifier drops push notifications.
type NopNotifier struct{}

func (NopNotifier) Notify([]string, string, string, map[string]interface{}) error { return nil }
