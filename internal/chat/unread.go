package chat

import (
	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
)

// MarkRead advances the member's read marker to the given message and
// recomputes the cached unread count. The read position never moves backward:
// marking an older or already-read message is a no-op.
func (s *Service) MarkRead(userID, conversationID, messageID string) error {
	var member models.ConversationMember
	if err := s.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&member).Error; err != nil {
		return errors.NotFound("Conversation membership not found")
	}

	var target models.Message
	if err := s.db.Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&target).Error; err != nil {
		return errors.NotFound("Message not found in this conversation")
	}

	if member.LastReadMessageID != nil {
		if *member.LastReadMessageID == target.ID {
			return nil
		}
		// The marker is a weak reference; a missing row just means we advance.
		var current models.Message
		if err := s.db.Where("id = ?", *member.LastReadMessageID).First(&current).Error; err == nil {
			if current.CreatedAt.After(target.CreatedAt) ||
				(current.CreatedAt.Equal(target.CreatedAt) && current.ID > target.ID) {
				return nil
			}
		}
	}

	unread, err := s.countUnreadAfter(s.db, conversationID, userID, &target)
	if err != nil {
		return err
	}

	if err := s.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"last_read_message_id": target.ID,
			"unread_message_count": unread,
		}).Error; err != nil {
		return errors.Internal("Failed to update read state")
	}

	member.LastReadMessageID = &target.ID
	member.UnreadMessageCount = int(unread)
	// Other sessions of the same user clear their badge through this event.
	s.bus.Publish(TopicConversationChanged, MemberEvent{
		UserIDs: []string{userID},
		Member:  &member,
	})
	return nil
}

// refreshAfterSend recomputes every member's unread count against their own
// read marker. Runs inside the send transaction, once per send. The sender's
// row has already been reset by the caller.
func (s *Service) refreshAfterSend(tx *gorm.DB, conv *models.Conversation, msg *models.Message) error {
	var members []models.ConversationMember
	if err := tx.Where("conversation_id = ?", conv.ID).Find(&members).Error; err != nil {
		return err
	}

	for _, m := range members {
		if m.UserID == msg.SenderID {
			continue
		}

		var lastRead *models.Message
		if m.LastReadMessageID != nil {
			var lr models.Message
			if err := tx.Where("id = ?", *m.LastReadMessageID).First(&lr).Error; err == nil {
				lastRead = &lr
			}
		}

		unread, err := s.countUnreadAfter(tx, conv.ID, m.UserID, lastRead)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.ConversationMember{}).
			Where("conversation_id = ? AND user_id = ?", conv.ID, m.UserID).
			Update("unread_message_count", unread).Error; err != nil {
			return err
		}
	}
	return nil
}

// countUnreadAfter counts other-sender messages created strictly after the
// marker; all of them when the marker is nil.
func (s *Service) countUnreadAfter(tx *gorm.DB, conversationID, userID string, after *models.Message) (int64, error) {
	query := tx.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", userID)
	if after != nil {
		query = query.Where("created_at > ?", after.CreatedAt)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.Internal("Failed to count unread messages")
	}
	return count, nil
}
