package engine

import (
	"github.com/spec-kit/chat-widget/internal/domain"
)

const previewAttachment = "Attachment"

// ThreadStore is the in-memory collection of conversation threads for one
// widget session. The session goroutine is the single mutator; the view
// layer only ever receives projections.
type ThreadStore struct {
	order []string
	byID  map[string]*domain.Thread
}

// NewThreadStore creates an empty store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{byID: make(map[string]*domain.Thread)}
}

// Replace installs a freshly fetched thread list, newest first.
func (s *ThreadStore) Replace(threads []*domain.Thread) {
	s.order = s.order[:0]
	s.byID = make(map[string]*domain.Thread, len(threads))
	for _, t := range threads {
		s.order = append(s.order, t.ID)
		s.byID[t.ID] = t
	}
}

// Prepend adds a newly created thread at the top of the list.
func (s *ThreadStore) Prepend(t *domain.Thread) {
	if _, ok := s.byID[t.ID]; ok {
		return
	}
	s.order = append([]string{t.ID}, s.order...)
	s.byID[t.ID] = t
}

// Remove drops a thread from the store.
func (s *ThreadStore) Remove(threadID string) {
	if _, ok := s.byID[threadID]; !ok {
		return
	}
	delete(s.byID, threadID)
	for i, id := range s.order {
		if id == threadID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the thread or nil.
func (s *ThreadStore) Get(threadID string) *domain.Thread {
	return s.byID[threadID]
}

// First returns the top-most thread or nil.
func (s *ThreadStore) First() *domain.Thread {
	if len(s.order) == 0 {
		return nil
	}
	return s.byID[s.order[0]]
}

// List returns threads in display order.
func (s *ThreadStore) List() []*domain.Thread {
	out := make([]*domain.Thread, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the thread count.
func (s *ThreadStore) Len() int {
	return len(s.order)
}

// InstallHistory replaces a thread's transcript with a reconciled history
// load. The in-session append-only invariant applies between loads; a full
// load is the one operation that rebuilds the list (and the ledger with it).
func (s *ThreadStore) InstallHistory(threadID string, messages []*domain.Message) {
	t := s.byID[threadID]
	if t == nil {
		return
	}
	t.Messages = messages
	if last := t.LastVisible(); last != nil {
		t.LastMessagePreview = preview(last)
	}
}

// Append adds one live message to its thread and updates the preview. The
// unread counter moves only for inbound messages on unfocused threads.
func (s *ThreadStore) Append(threadID string, msg *domain.Message, focused bool) *domain.Thread {
	t := s.byID[threadID]
	if t == nil {
		return nil
	}
	t.Messages = append(t.Messages, msg)
	t.LastMessagePreview = preview(msg)
	if !focused && !msg.Outbound() {
		t.UnreadCount++
	}
	return t
}

// ClearUnread resets the unread counter when a thread is opened.
func (s *ThreadStore) ClearUnread(threadID string) {
	if t := s.byID[threadID]; t != nil {
		t.UnreadCount = 0
	}
}

func preview(msg *domain.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	if msg.HasMedia() || msg.QuickReplies != nil {
		return previewAttachment
	}
	return ""
}
