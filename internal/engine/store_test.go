package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chat-widget/internal/domain"
)

func TestThreadStoreOrdering(t *testing.T) {
	s := NewThreadStore()
	s.Replace([]*domain.Thread{{ID: "b"}, {ID: "c"}})
	s.Prepend(&domain.Thread{ID: "a"})

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "a", s.First().ID)

	s.Remove("b")
	list = s.List()
	require.Len(t, list, 2)
	assert.Equal(t, []string{"a", "c"}, []string{list[0].ID, list[1].ID})

	// Removing an unknown id is a no-op.
	s.Remove("zz")
	assert.Equal(t, 2, s.Len())
}

func TestThreadStoreAppendUpdatesPreviewAndUnread(t *testing.T) {
	s := NewThreadStore()
	s.Replace([]*domain.Thread{{ID: "t1"}})

	inbound := &domain.Message{Text: "hello", Direction: domain.DirectionInbound}
	thread := s.Append("t1", inbound, false)
	require.NotNil(t, thread)
	assert.Equal(t, "hello", thread.LastMessagePreview)
	assert.Equal(t, 1, thread.UnreadCount)

	// Focused appends never bump the counter.
	s.Append("t1", &domain.Message{Text: "again", Direction: domain.DirectionInbound}, true)
	assert.Equal(t, 1, thread.UnreadCount)

	// Outbound appends never bump the counter.
	s.Append("t1", &domain.Message{Text: "mine", Direction: domain.DirectionOutbound}, false)
	assert.Equal(t, 1, thread.UnreadCount)

	s.ClearUnread("t1")
	assert.Equal(t, 0, thread.UnreadCount)

	assert.Nil(t, s.Append("missing", inbound, false))
}

func TestThreadStoreAttachmentPreview(t *testing.T) {
	s := NewThreadStore()
	s.Replace([]*domain.Thread{{ID: "t1"}})

	msg := &domain.Message{
		Direction:   domain.DirectionInbound,
		Attachments: []domain.Attachment{{ContentType: "image/png", URL: "u"}},
	}
	thread := s.Append("t1", msg, true)
	assert.Equal(t, "Attachment", thread.LastMessagePreview)
}

func TestThreadStoreInstallHistory(t *testing.T) {
	s := NewThreadStore()
	s.Replace([]*domain.Thread{{ID: "t1"}})

	msgs := []*domain.Message{
		{Text: "hidden", Hidden: true},
		{Text: "visible tail"},
	}
	s.InstallHistory("t1", msgs)

	thread := s.Get("t1")
	require.NotNil(t, thread)
	assert.Len(t, thread.Messages, 2)
	assert.Equal(t, "visible tail", thread.LastMessagePreview)
}
