package chat

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
)

// ResolveTarget addresses a conversation either directly by id or indirectly
// by the other party of a 1:1 chat. Both empty means the caller's
// self-conversation.
type ResolveTarget struct {
	ConversationID string
	OtherUserID    string
}

// Resolve returns the unique non-anonymous conversation for the implied
// member set, creating it when absent. At most one creation proceeds at a
// time system-wide; concurrent callers wait on the creation lock instead of
// racing into a duplicate insert.
func (s *Service) Resolve(callerID string, target ResolveTarget) (*models.Conversation, error) {
	if target.ConversationID != "" && target.OtherUserID != "" {
		return nil, errors.BadRequest("Provide either conversationId or otherUserId, not both")
	}

	if target.ConversationID != "" {
		var conv models.Conversation
		if err := s.db.Preload("Members").First(&conv, "id = ?", target.ConversationID).Error; err != nil {
			return nil, errors.NotFound("Conversation not found")
		}
		return &conv, nil
	}

	memberIDs := memberSet(callerID, target.OtherUserID)

	if target.OtherUserID != "" && target.OtherUserID != callerID {
		var count int64
		if err := s.db.Model(&models.User{}).Where("id = ?", target.OtherUserID).Count(&count).Error; err != nil {
			return nil, errors.Internal("Failed to look up user")
		}
		if count == 0 {
			return nil, errors.NotFound("Account " + target.OtherUserID + " does not exist")
		}
	}

	if conv, err := s.findConversationByMembers(memberIDs); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}

	// Miss: serialize the read-check-create sequence behind the global lock.
	release, err := s.acquireCreationLock()
	if err != nil {
		return nil, err
	}
	defer release()

	// Another caller may have created it while we waited.
	if conv, err := s.findConversationByMembers(memberIDs); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}

	return s.createConversation(memberIDs, false)
}

// acquireCreationLock takes the process-wide creation token, polling up to
// lockWait. The unbounded wait of the original design is a latent hang, so a
// timeout surfaces as a conflict instead.
func (s *Service) acquireCreationLock() (func(), error) {
	select {
	case s.creationLock <- struct{}{}:
		return func() { <-s.creationLock }, nil
	case <-time.After(s.lockWait):
		logger.Warn().Dur("waited", s.lockWait).Msg("Conversation creation lock wait timed out")
		return nil, errors.Conflict("Another conversation is being created, please retry")
	}
}

// createConversation inserts the conversation and its founding members, all
// as admins, in one transaction.
func (s *Service) createConversation(memberIDs []string, anonymous bool) (*models.Conversation, error) {
	conv := models.Conversation{
		IsAnonymousChat: anonymous,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, uid := range memberIDs {
			member := models.ConversationMember{
				ConversationID: conv.ID,
				UserID:         uid,
				IsAdmin:        true,
				CreatedAt:      conv.CreatedAt,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			conv.Members = append(conv.Members, member)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Strs("member_ids", memberIDs).Msg("Failed to create conversation")
		return nil, errors.Internal("Failed to create conversation")
	}
	return &conv, nil
}

// findConversationByMembers searches non-anonymous conversations whose member
// set equals memberIDs exactly: same size, same ids.
func (s *Service) findConversationByMembers(memberIDs []string) (*models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", memberIDs[0]).
		Where("conversations.is_anonymous_chat = ?", false).
		Preload("Members").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Internal("Failed to search conversations")
	}

	for i := range convs {
		if sameMemberSet(convs[i].MemberIDs(), memberIDs) {
			return &convs[i], nil
		}
	}
	return nil, nil
}

// memberSet computes the deduplicated member id set for a 1:1 target. A
// missing or equal other id collapses to the caller's self-conversation.
func memberSet(callerID, otherUserID string) []string {
	if otherUserID == "" || otherUserID == callerID {
		return []string{callerID}
	}
	return []string{callerID, otherUserID}
}

func sameMemberSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
