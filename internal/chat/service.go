package chat

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
)

const (
	// DefaultPageSize is the fixed block size for page-mode pagination.
	DefaultPageSize = 20
	// DefaultTake bounds cursor-mode windows when the client sends none.
	DefaultTake = 20

	defaultLockWait  = 5 * time.Second
	defaultPollEvery = 20 * time.Millisecond
)

// Service is the messaging facade. It owns conversation resolution, anonymous
// matchmaking, pagination, unread tracking and the send path, and delegates
// realtime fan-out and push delivery to its collaborators.
type Service struct {
	db       *gorm.DB
	bus      Bus
	notifier Notifier

	pageSize  int
	lockWait  time.Duration
	pollEvery time.Duration

	// Process-wide creation lock: any two conversation creations serialize.
	// Coarse on purpose; creation is rare next to read/send traffic. A
	// multi-process deployment needs a store-backed lock instead.
	creationLock chan struct{}

	// In-flight anonymous pairings keyed by the normalized unordered pair.
	inflightMu    sync.Mutex
	inflightPairs map[string]chan struct{}
}

func NewService(db *gorm.DB, bus Bus, notifier Notifier) *Service {
	if bus == nil {
		bus = NopBus{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		db:            db,
		bus:           bus,
		notifier:      notifier,
		pageSize:      DefaultPageSize,
		lockWait:      defaultLockWait,
		pollEvery:     defaultPollEvery,
		creationLock:  make(chan struct{}, 1),
		inflightPairs: make(map[string]chan struct{}),
	}
}

// SendInput is the send request. Exactly one of ConversationID/ReceiverID
// addresses the conversation; at least one of Content/AttachmentIDs must be
// non-empty.
type SendInput struct {
	ConversationID string   `json:"conversationId"`
	ReceiverID     string   `json:"receiverId"`
	Content        string   `json:"content"`
	AttachmentIDs  []string `json:"attachmentIds"`
}

// Send persists a message on the resolved conversation, maintains unread
// state for every member, bumps the inbox ordering key and fans the result
// out. Push and bus failures never fail the send.
func (s *Service) Send(callerID string, in SendInput) (*models.Message, error) {
	if in.Content == "" && len(in.AttachmentIDs) == 0 {
		return nil, errors.BadRequest("Message requires text or at least one attachment")
	}
	if in.ConversationID == "" && in.ReceiverID == "" {
		return nil, errors.BadRequest("Either conversationId or receiverId is required")
	}

	conv, err := s.Resolve(callerID, ResolveTarget{
		ConversationID: in.ConversationID,
		OtherUserID:    in.ReceiverID,
	})
	if err != nil {
		return nil, err
	}

	member := findMember(conv.Members, callerID)
	if member == nil {
		return nil, errors.Forbidden("You cannot send messages to this conversation")
	}

	var files []models.File
	if len(in.AttachmentIDs) > 0 {
		if err := s.db.Where("id IN ?", in.AttachmentIDs).Find(&files).Error; err != nil {
			return nil, errors.Internal("Failed to load attachments")
		}
		if len(files) != len(in.AttachmentIDs) {
			return nil, errors.NotFound("One or more attachments do not exist")
		}
	}

	msg := models.Message{
		ConversationID:  conv.ID,
		SenderID:        callerID,
		IsAnonymousChat: conv.IsAnonymousChat,
		CreatedAt:       time.Now(),
	}
	if in.Content != "" {
		content := in.Content
		msg.Content = &content
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		for _, f := range files {
			att := models.MessageAttachment{MessageID: msg.ID, FileID: f.ID, CreatedAt: msg.CreatedAt}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}

		// The sender has trivially read their own message.
		if err := tx.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", conv.ID, callerID).
			Updates(map[string]interface{}{
				"last_read_message_id": msg.ID,
				"unread_message_count": 0,
			}).Error; err != nil {
			return err
		}

		if err := s.refreshAfterSend(tx, conv, &msg); err != nil {
			return err
		}

		// Bump inbox ordering and surface the conversation again.
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"updated_at": msg.CreatedAt,
				"is_hidden":  false,
			}).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("conversation_id", conv.ID).Msg("Failed to persist message")
		return nil, errors.Internal("Failed to send message")
	}

	// Reload with relations for the event payload and the HTTP response.
	if err := s.db.Preload("Attachments.File").Preload("Sender").
		First(&msg, "id = ?", msg.ID).Error; err != nil {
		logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to reload message relations")
	}

	memberIDs := conv.MemberIDs()
	s.bus.Publish(TopicNewMessage, MessageEvent{UserIDs: memberIDs, Message: &msg})

	var updated models.Conversation
	if err := s.db.Preload("Members").First(&updated, "id = ?", conv.ID).Error; err == nil {
		s.bus.Publish(TopicConversationChanged, ConversationEvent{UserIDs: memberIDs, Conversation: &updated})
	}

	s.dispatchPush(conv, &msg)

	return &msg, nil
}

// dispatchPush notifies every member except the sender, fire-and-forget.
func (s *Service) dispatchPush(conv *models.Conversation, msg *models.Message) {
	recipients := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		if m.UserID != msg.SenderID {
			recipients = append(recipients, m.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	title := "New message"
	if conv.IsAnonymousChat {
		title = "New anonymous message"
	}
	body := "Sent you an attachment"
	if msg.Content != nil {
		body = *msg.Content
	}

	go func() {
		if err := s.notifier.Notify(recipients, title, body, map[string]interface{}{
			"conversationId": conv.ID,
			"messageId":      msg.ID,
		}); err != nil {
			logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Push dispatch failed")
		}
	}()
}

// FetchMessages returns one ordered window of a conversation and implicitly
// marks it read up to the newest message the caller now sees.
func (s *Service) FetchMessages(callerID, conversationID string, req WindowRequest) (*MessageWindow, error) {
	var conv models.Conversation
	if err := s.db.Preload("Members").First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, errors.NotFound("Conversation not found")
	}
	if findMember(conv.Members, callerID) == nil {
		return nil, errors.Forbidden("You are not a member of this conversation")
	}

	window, focus, err := s.messageWindow(&conv, req)
	if err != nil {
		return nil, err
	}

	// Fetching a conversation marks it read up to the focus message, or up to
	// the conversation's newest message when no focus was requested.
	marker := focus
	if marker == nil {
		var newest models.Message
		if err := s.db.Where("conversation_id = ?", conversationID).
			Order("created_at DESC, id DESC").First(&newest).Error; err == nil {
			marker = &newest
		}
	}
	if marker != nil {
		if err := s.MarkRead(callerID, conversationID, marker.ID); err != nil {
			logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Implicit mark-read failed")
		}
	}

	return window, nil
}

// SetPresence toggles the in-chat marker for one conversation, or for all of
// the caller's memberships currently in the opposite state when no target is
// given.
func (s *Service) SetPresence(callerID, conversationID string, inChat bool) error {
	if conversationID != "" {
		res := s.db.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, callerID).
			Update("is_currently_in_chat", inChat)
		if res.Error != nil {
			return errors.Internal("Failed to update presence")
		}
		if res.RowsAffected == 0 {
			return errors.NotFound("Conversation membership not found")
		}
		return nil
	}

	if err := s.db.Model(&models.ConversationMember{}).
		Where("user_id = ? AND is_currently_in_chat = ?", callerID, !inChat).
		Update("is_currently_in_chat", inChat).Error; err != nil {
		return errors.Internal("Failed to update presence")
	}
	return nil
}

// DeleteConversation removes messages, then members, then the conversation
// row. The order satisfies the foreign-key dependencies.
func (s *Service) DeleteConversation(callerID, conversationID string) error {
	var conv models.Conversation
	if err := s.db.Preload("Members").First(&conv, "id = ?", conversationID).Error; err != nil {
		return errors.NotFound("Conversation not found")
	}

	if findMember(conv.Members, callerID) == nil {
		var caller models.User
		if err := s.db.Select("id", "role").First(&caller, "id = ?", callerID).Error; err != nil || caller.Role != models.RoleAdmin {
			return errors.Forbidden("Only members or admins can delete a conversation")
		}
	}

	memberIDs := conv.MemberIDs()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("message_id IN (?)", tx.Model(&models.Message{}).Select("id").Where("conversation_id = ?", conversationID)).
			Delete(&models.MessageAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.ConversationMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, "id = ?", conversationID).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to delete conversation")
		return errors.Internal("Failed to delete conversation")
	}

	s.bus.Publish(TopicConversationChanged, ConversationEvent{UserIDs: memberIDs, Conversation: &conv, Deleted: true})
	return nil
}

// ConversationSummary is one inbox entry.
type ConversationSummary struct {
	Conversation models.Conversation        `json:"conversation"`
	Me           *models.ConversationMember `json:"me"`
	LastMessage  *models.Message            `json:"lastMessage"`
}

// ListConversations returns the caller's inbox ordered by most recent
// activity, hidden conversations excluded.
func (s *Service) ListConversations(callerID string) ([]ConversationSummary, error) {
	var convs []models.Conversation
	err := s.db.
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", callerID).
		Where("conversations.is_hidden = ?", false).
		Preload("Members").Preload("Members.User").
		Order("conversations.updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Internal("Failed to fetch conversations")
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		summary := ConversationSummary{Conversation: convs[i]}
		for j := range convs[i].Members {
			if convs[i].Members[j].UserID == callerID {
				summary.Me = &convs[i].Members[j]
			}
		}
		var last models.Message
		if err := s.db.Where("conversation_id = ?", convs[i].ID).
			Order("created_at DESC, id DESC").First(&last).Error; err == nil {
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func findMember(members []models.ConversationMember, userID string) *models.ConversationMember {
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}
