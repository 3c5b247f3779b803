package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/chat-widget/internal/domain"
)

func TestDedupKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		msg  domain.Message
		want string
	}{
		{"tid wins", domain.Message{CorrelationID: "t1", ID: "i1", ClientMessageID: "c1", Text: "x"}, "tid:t1"},
		{"id next", domain.Message{ID: "i1", ClientMessageID: "c1", Text: "x"}, "id:i1"},
		{"client id next", domain.Message{ClientMessageID: "c1", Text: "x"}, "cmid:c1"},
		{"text fallback normalized", domain.Message{Text: "  Hello "}, "text:hello"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupKey(&tc.msg))
		})
	}
}

func TestLedgerSeenOrMark(t *testing.T) {
	l := NewLedger()

	assert.False(t, l.SeenOrMark("th-1", "tid:a"))
	assert.True(t, l.SeenOrMark("th-1", "tid:a"))
	assert.True(t, l.Seen("th-1", "tid:a"))
	assert.Equal(t, 1, l.Len("th-1"))

	l.Mark("th-1", "tid:b")
	assert.Equal(t, 2, l.Len("th-1"))

	l.ResetThread("th-1")
	assert.Equal(t, 0, l.Len("th-1"))
	assert.False(t, l.Seen("th-1", "tid:a"))
}

func TestLedgerScopedPerThread(t *testing.T) {
	l := NewLedger()

	l.Mark("th-a", "tid:x")
	l.Mark("th-b", "tid:x")

	// Same identifier, different threads: independent marks.
	assert.True(t, l.Seen("th-a", "tid:x"))
	assert.True(t, l.Seen("th-b", "tid:x"))

	// Reloading one thread must not erase another thread's marks.
	l.ResetThread("th-b")
	assert.True(t, l.Seen("th-a", "tid:x"))
	assert.False(t, l.Seen("th-b", "tid:x"))
}
