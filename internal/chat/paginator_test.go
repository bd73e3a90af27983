package chat

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/errors"
)

// seedConversation creates a two-member conversation with count messages at
// strictly increasing timestamps. Returned messages are ordered oldest first.
func seedConversation(t *testing.T, svc *Service, count int) (*models.Conversation, []models.Message) {
	t.Helper()
	createUser(t, svc.db, "alice")
	createUser(t, svc.db, "bob")

	conv, err := svc.Resolve("alice", ResolveTarget{OtherUserID: "bob"})
	if err != nil {
		t.Fatalf("failed to resolve conversation: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]models.Message, 0, count)
	for i := 0; i < count; i++ {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		msg := seedMessage(t, svc.db, conv.ID, sender,
			fmt.Sprintf("message %d", i+1), base.Add(time.Duration(i)*time.Second))
		msgs = append(msgs, msg)
	}
	return conv, msgs
}

func TestPageModeOrdersNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 5
	conv, msgs := seedConversation(t, svc, 7)

	window, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 1})
	assert.NoError(t, err)
	assert.Len(t, window.Messages, 5)
	assert.Equal(t, 1, window.Page)
	assert.False(t, window.IsLastPage)
	// Newest message first.
	assert.Equal(t, msgs[6].ID, window.Messages[0].ID)
	assert.Equal(t, msgs[2].ID, window.Messages[4].ID)
}

func TestPageModeLastPage(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 5
	conv, _ := seedConversation(t, svc, 12)

	page2, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 2})
	assert.NoError(t, err)
	assert.Len(t, page2.Messages, 5)
	assert.False(t, page2.IsLastPage)

	page3, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 3})
	assert.NoError(t, err)
	assert.Len(t, page3.Messages, 2)
	assert.True(t, page3.IsLastPage)
}

func TestPageModeExactMultipleIsLastOnFinalPage(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 5
	conv, _ := seedConversation(t, svc, 10)

	page2, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 2})
	assert.NoError(t, err)
	assert.Len(t, page2.Messages, 5)
	assert.True(t, page2.IsLastPage)

	// Reading past the end is an empty last page, not an error.
	page3, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 3})
	assert.NoError(t, err)
	assert.Empty(t, page3.Messages)
	assert.True(t, page3.IsLastPage)
}

func TestPageModeFocusOverridesRequestedPage(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 5
	conv, msgs := seedConversation(t, svc, 12)

	// msgs[2] is the 10th newest: 9 newer messages, so it lives on page 2.
	window, focus, err := svc.messageWindow(conv, WindowRequest{
		Mode:           PageMode,
		Page:           1,
		FocusMessageID: msgs[2].ID,
	})
	assert.NoError(t, err)
	assert.NotNil(t, focus)
	assert.Equal(t, 2, window.Page)

	found := false
	for _, m := range window.Messages {
		if m.ID == msgs[2].ID {
			found = true
		}
	}
	assert.True(t, found, "focus message must be inside the returned page")
}

func TestPageModeFocusOnNewestStaysOnFirstPage(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 5
	conv, msgs := seedConversation(t, svc, 12)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode:           PageMode,
		FocusMessageID: msgs[11].ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, window.Page)
	assert.Equal(t, msgs[11].ID, window.Messages[0].ID)
}

func TestFocusOutsideConversationIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 3)

	other, err := svc.createConversation([]string{"alice"}, false)
	assert.NoError(t, err)
	stray := seedMessage(t, svc.db, other.ID, "alice", "elsewhere", time.Now())

	_, _, err = svc.messageWindow(conv, WindowRequest{Mode: PageMode, FocusMessageID: stray.ID})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestCursorModeReturnsStrictlyOlderMessages(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 10)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode:   CursorMode,
		Cursor: msgs[7].ID,
		Take:   4,
	})
	assert.NoError(t, err)
	assert.Len(t, window.Messages, 4)
	assert.False(t, window.IsLastPage)
	// Strictly older than the cursor, newest first.
	assert.Equal(t, msgs[6].ID, window.Messages[0].ID)
	assert.Equal(t, msgs[3].ID, window.Messages[3].ID)
}

func TestCursorModeLastWindow(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 10)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode:   CursorMode,
		Cursor: msgs[3].ID,
		Take:   5,
	})
	assert.NoError(t, err)
	assert.Len(t, window.Messages, 3)
	assert.True(t, window.IsLastPage)
}

func TestCursorModeWithoutCursorStartsAtNewest(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 6)

	window, _, err := svc.messageWindow(conv, WindowRequest{Mode: CursorMode, Take: 4})
	assert.NoError(t, err)
	assert.Len(t, window.Messages, 4)
	assert.Equal(t, msgs[5].ID, window.Messages[0].ID)
}

func TestCursorModeSkipOffsetsWindow(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 10)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode: CursorMode,
		Take: 3,
		Skip: 2,
	})
	assert.NoError(t, err)
	assert.Len(t, window.Messages, 3)
	assert.Equal(t, msgs[7].ID, window.Messages[0].ID)
}

func TestCursorModeUnknownCursorIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	conv, _ := seedConversation(t, svc, 3)

	_, _, err := svc.messageWindow(conv, WindowRequest{Mode: CursorMode, Cursor: "missing"})
	appErr, ok := errors.IsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestCursorModeFocusLandsMidWindow(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 20)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode:           CursorMode,
		Take:           6,
		FocusMessageID: msgs[10].ID,
	})
	assert.NoError(t, err)
	// The synthetic cursor sits 3 messages above the focus.
	assert.Equal(t, msgs[13].ID, window.Cursor)
	assert.Len(t, window.Messages, 6)
	assert.Equal(t, msgs[12].ID, window.Messages[0].ID)
	assert.Equal(t, msgs[10].ID, window.Messages[2].ID)
	assert.Equal(t, msgs[7].ID, window.Messages[5].ID)
}

func TestCursorModeFocusOnNewestStartsAtTop(t *testing.T) {
	svc, _ := newTestService(t)
	conv, msgs := seedConversation(t, svc, 8)

	window, _, err := svc.messageWindow(conv, WindowRequest{
		Mode:           CursorMode,
		Take:           4,
		FocusMessageID: msgs[7].ID,
	})
	assert.NoError(t, err)
	assert.Empty(t, window.Cursor)
	assert.Equal(t, msgs[7].ID, window.Messages[0].ID)
}

func TestCursorAndPageModeAgreeOnLastPage(t *testing.T) {
	svc, _ := newTestService(t)
	svc.pageSize = 4
	conv, _ := seedConversation(t, svc, 4)

	byPage, _, err := svc.messageWindow(conv, WindowRequest{Mode: PageMode, Page: 1})
	assert.NoError(t, err)
	byCursor, _, err := svc.messageWindow(conv, WindowRequest{Mode: CursorMode, Take: 5})
	assert.NoError(t, err)

	assert.True(t, byPage.IsLastPage)
	assert.True(t, byCursor.IsLastPage)
	assert.Len(t, byCursor.Messages, len(byPage.Messages))
	for i := range byPage.Messages {
		assert.Equal(t, byPage.Messages[i].ID, byCursor.Messages[i].ID)
	}
}
