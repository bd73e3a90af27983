package chat

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
)

// FindOrCreateAnonymousChat pairs the caller with another user who declared
// intent to find an anonymous partner. Returns nil when nobody is available;
// the caller is then left in the waiting pool.
//
// Guarantees: a user is never in two active anonymous conversations, and no
// duplicate conversation is created for the same unordered pair.
func (s *Service) FindOrCreateAnonymousChat(callerID string) (*models.Conversation, error) {
	// Idempotent fast path: already paired.
	if conv, err := s.activeAnonymousConversation(callerID); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}

	candidateID, err := s.findAnonymousCandidate(callerID)
	if err != nil {
		return nil, err
	}
	if candidateID == "" {
		return nil, s.enterWaitingPool(callerID)
	}

	key := pairKey(callerID, candidateID)

	if done := s.inflightPair(key); done != nil {
		// The same pair is being created right now. Wait for it to finish,
		// then re-query instead of creating a second one.
		select {
		case <-done:
		case <-time.After(s.lockWait):
			return nil, errors.Conflict("Anonymous pairing is taking too long, please retry")
		}
		return s.activeAnonymousConversation(callerID)
	}
	// The registry entry must be cleared on every exit path; a leak blocks
	// this pair permanently.
	defer s.clearInflightPair(key)

	release, err := s.acquireCreationLock()
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-check under the lock: either side may have been paired meanwhile.
	if conv, err := s.activeAnonymousConversation(callerID); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}
	if conv, err := s.activeAnonymousConversation(candidateID); err != nil {
		return nil, err
	} else if conv != nil {
		return nil, errors.Conflict("Selected partner was just paired, please retry")
	}

	conv, err := s.createAnonymousPair(callerID, candidateID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(TopicAnonymousChatFound, ConversationEvent{
		UserIDs:      []string{callerID, candidateID},
		Conversation: conv,
	})

	go func() {
		if err := s.notifier.Notify([]string{callerID, candidateID},
			"Anonymous chat", "You have been matched with an anonymous partner",
			map[string]interface{}{"conversationId": conv.ID}); err != nil {
			logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Anonymous match push failed")
		}
	}()

	return conv, nil
}

// activeAnonymousConversation returns the user's current anonymous
// conversation, if any. At most one exists by invariant.
func (s *Service) activeAnonymousConversation(userID string) (*models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", userID).
		Where("conversations.is_anonymous_chat = ?", true).
		Preload("Members").
		Limit(1).
		Find(&convs).Error
	if err != nil {
		return nil, errors.Internal("Failed to look up anonymous conversation")
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return &convs[0], nil
}

// findAnonymousCandidate picks any user who is looking for an anonymous chat
// and is not already in one. Eligibility derives directly from the
// one-anonymous-conversation-per-user invariant; no ranking.
func (s *Service) findAnonymousCandidate(callerID string) (string, error) {
	var candidates []models.User
	err := s.db.Model(&models.User{}).
		Select("id").
		Where("looking_for_anonymous_chat = ?", true).
		Where("id <> ?", callerID).
		Where("is_blocked = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM conversation_members cm JOIN conversations c ON c.id = cm.conversation_id WHERE cm.user_id = users.id AND c.is_anonymous_chat = ?)", true).
		Limit(1).
		Find(&candidates).Error
	if err != nil {
		return "", errors.Internal("Failed to search for anonymous candidates")
	}
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0].ID, nil
}

// enterWaitingPool flags the caller as looking and tells the other waiting
// users that someone new is around, best-effort.
func (s *Service) enterWaitingPool(callerID string) error {
	if err := s.db.Model(&models.User{}).
		Where("id = ?", callerID).
		Update("looking_for_anonymous_chat", true).Error; err != nil {
		return errors.Internal("Failed to join the anonymous waiting pool")
	}

	go func() {
		var waiting []models.User
		if err := s.db.Select("id").
			Where("looking_for_anonymous_chat = ? AND id <> ?", true, callerID).
			Find(&waiting).Error; err != nil || len(waiting) == 0 {
			return
		}
		ids := make([]string, 0, len(waiting))
		for _, u := range waiting {
			ids = append(ids, u.ID)
		}
		if err := s.notifier.Notify(ids, "Anonymous chat",
			"Someone is waiting for an anonymous chat", nil); err != nil {
			logger.Warn().Err(err).Msg("Waiting-pool push failed")
		}
	}()

	return nil
}

// createAnonymousPair creates the conversation and clears both looking flags
// in the same transaction.
func (s *Service) createAnonymousPair(callerID, candidateID string) (*models.Conversation, error) {
	conv := models.Conversation{IsAnonymousChat: true}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, uid := range []string{callerID, candidateID} {
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
		return tx.Model(&models.User{}).
			Where("id IN ?", []string{callerID, candidateID}).
			Update("looking_for_anonymous_chat", false).Error
	})
	if err != nil {
		logger.Error().Err(err).Str("caller_id", callerID).Str("candidate_id", candidateID).
			Msg("Failed to create anonymous conversation")
		return nil, errors.Internal("Failed to create anonymous conversation")
	}
	return &conv, nil
}

// StopLookingForAnonymousChat clears the caller's waiting flag.
func (s *Service) StopLookingForAnonymousChat(callerID string) error {
	if err := s.db.Model(&models.User{}).
		Where("id = ?", callerID).
		Update("looking_for_anonymous_chat", false).Error; err != nil {
		return errors.Internal("Failed to leave the anonymous waiting pool")
	}
	return nil
}

// inflightPair returns the done channel when key is already being created,
// or registers key and returns nil.
func (s *Service) inflightPair(key string) <-chan struct{} {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if ch, ok := s.inflightPairs[key]; ok {
		return ch
	}
	s.inflightPairs[key] = make(chan struct{})
	return nil
}

func (s *Service) clearInflightPair(key string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if ch, ok := s.inflightPairs[key]; ok {
		delete(s.inflightPairs, key)
		close(ch)
	}
}

// pairKey normalizes an unordered user pair.
func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
