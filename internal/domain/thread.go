package domain

import "time"

// ThreadStatus tracks the vendor-side conversation state.
type ThreadStatus string

const (
	ThreadStatusActive ThreadStatus = "Active"
	ThreadStatusClosed ThreadStatus = "Closed"
)

// Thread is one end-user conversation. Messages is chronological ascending
// and append-only for the lifetime of a session; reconciliation only flips
// derived flags on entries.
type Thread struct {
	ID                 string
	Title              string
	Status             ThreadStatus
	CreatedAt          time.Time
	LastMessagePreview string
	UnreadCount        int
	Messages           []*Message
}

// LastVisible returns the newest message not suppressed by reconciliation.
func (t *Thread) LastVisible() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if !t.Messages[i].Hidden {
			return t.Messages[i]
		}
	}
	return nil
}
