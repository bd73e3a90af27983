package chat

import (
	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
)

// AddressMode selects how a message window is addressed. Both modes share the
// same ordering, last-page and focus-resolution logic.
type AddressMode string

const (
	PageMode   AddressMode = "PAGE"
	CursorMode AddressMode = "CURSOR"
)

// WindowRequest addresses one ordered window of messages, newest first.
type WindowRequest struct {
	Mode AddressMode

	// Page mode
	Page int // 1-based

	// Cursor mode
	Cursor string // message id; window starts strictly after it
	Take   int
	Skip   int

	// Optional focus: the returned window must contain this message.
	FocusMessageID string
}

// MessageWindow is one resolved block of messages ordered by createdAt
// descending, id as tie-break.
type MessageWindow struct {
	Messages   []models.Message `json:"messages"`
	Page       int              `json:"page,omitempty"`
	Cursor     string           `json:"cursor,omitempty"`
	IsLastPage bool             `json:"isLastPage"`
}

// messageWindow serves both addressing modes. It returns the focus message,
// when requested, so the caller can advance the read marker to it.
func (s *Service) messageWindow(conv *models.Conversation, req WindowRequest) (*MessageWindow, *models.Message, error) {
	var focus *models.Message
	if req.FocusMessageID != "" {
		var msg models.Message
		if err := s.db.Where("id = ? AND conversation_id = ?", req.FocusMessageID, conv.ID).
			First(&msg).Error; err != nil {
			return nil, nil, errors.NotFound("Focus message not found in this conversation")
		}
		focus = &msg
	}

	switch req.Mode {
	case CursorMode:
		window, err := s.cursorWindow(conv.ID, req, focus)
		return window, focus, err
	default:
		window, err := s.pageWindow(conv.ID, req, focus)
		return window, focus, err
	}
}

// pageWindow returns the page-th most-recent block. A focus message overrides
// the requested page: the client must land on the page containing it.
func (s *Service) pageWindow(conversationID string, req WindowRequest, focus *models.Message) (*MessageWindow, error) {
	pageSize := s.pageSize
	page := req.Page
	if page < 1 {
		page = 1
	}

	if focus != nil {
		newer, err := s.countNewerThan(conversationID, focus)
		if err != nil {
			return nil, err
		}
		// ceil((newer + 1) / pageSize): the focus is the (newer+1)-th message
		// counting from the newest.
		page = int(newer)/pageSize + 1
	}

	// One extra row tells us whether an older page exists.
	var rows []models.Message
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize + 1).
		Preload("Attachments.File").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Internal("Failed to fetch messages")
	}

	isLast := len(rows) <= pageSize
	if !isLast {
		rows = rows[:pageSize]
	}

	return &MessageWindow{
		Messages:   rows,
		Page:       page,
		IsLastPage: isLast,
	}, nil
}

// cursorWindow returns up to take messages strictly older than the cursor
// message. A focus message resolves a synthetic cursor roughly take/2
// messages newer than the focus, so the focus lands mid-window.
func (s *Service) cursorWindow(conversationID string, req WindowRequest, focus *models.Message) (*MessageWindow, error) {
	take := req.Take
	if take <= 0 {
		take = DefaultTake
	}
	skip := req.Skip
	if skip < 0 {
		skip = 0
	}

	cursorID := req.Cursor
	if focus != nil {
		half := (take + 1) / 2
		var newer []models.Message
		err := s.db.Where("conversation_id = ?", conversationID).
			Where("(created_at > ?) OR (created_at = ? AND id > ?)", focus.CreatedAt, focus.CreatedAt, focus.ID).
			Order("created_at ASC, id ASC").
			Limit(half).
			Find(&newer).Error
		if err != nil {
			return nil, errors.Internal("Failed to resolve cursor")
		}
		if len(newer) > 0 {
			cursorID = newer[len(newer)-1].ID
		} else {
			// Focus is the newest message; start from the top.
			cursorID = ""
		}
	}

	query := s.db.Where("conversation_id = ?", conversationID)
	if cursorID != "" {
		var cursor models.Message
		if err := s.db.Where("id = ? AND conversation_id = ?", cursorID, conversationID).
			First(&cursor).Error; err != nil {
			return nil, errors.NotFound("Cursor message not found in this conversation")
		}
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Message
	err := query.
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(take).
		Preload("Attachments.File").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Internal("Failed to fetch messages")
	}

	return &MessageWindow{
		Messages:   rows,
		Cursor:     cursorID,
		IsLastPage: len(rows) < take,
	}, nil
}

// countNewerThan counts messages strictly newer than msg in its conversation,
// id as tie-break for equal timestamps.
func (s *Service) countNewerThan(conversationID string, msg *models.Message) (int64, error) {
	var newer int64
	err := s.db.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("(created_at > ?) OR (created_at = ? AND id > ?)", msg.CreatedAt, msg.CreatedAt, msg.ID).
		Count(&newer).Error
	if err != nil {
		return 0, errors.Internal("Failed to count messages")
	}
	return newer, nil
}
