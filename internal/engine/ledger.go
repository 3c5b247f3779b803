package engine

import "github.com/spec-kit/chat-widget/internal/domain"

// Ledger tracks the message identifiers already processed in this session,
// scoped per thread. Entries are only removed wholesale and only for one
// thread, when a full history load replaces that thread's transcript; marks
// for every other thread survive the reload. Not safe for concurrent use;
// all access happens on the session goroutine.
type Ledger struct {
	threads map[string]map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{threads: make(map[string]map[string]struct{})}
}

// DedupKey derives the ledger key for a message: server correlation id or
// id when present, else the client-generated id, else a normalized-text
// fallback. The text fallback is a knowingly weaker guarantee kept only for
// legacy events that carry no identifier at all.
func DedupKey(msg *domain.Message) string {
	switch {
	case msg.CorrelationID != "":
		return "tid:" + msg.CorrelationID
	case msg.ID != "":
		return "id:" + msg.ID
	case msg.ClientMessageID != "":
		return "cmid:" + msg.ClientMessageID
	default:
		return "text:" + normalizeText(msg.Text)
	}
}

// Seen reports whether the key was already marked for the thread.
func (l *Ledger) Seen(threadID, key string) bool {
	_, ok := l.threads[threadID][key]
	return ok
}

// Mark records the key for the thread.
func (l *Ledger) Mark(threadID, key string) {
	seen, ok := l.threads[threadID]
	if !ok {
		seen = make(map[string]struct{})
		l.threads[threadID] = seen
	}
	seen[key] = struct{}{}
}

// SeenOrMark marks the key for the thread and reports whether it had been
// marked before. Check and mark are one step so no other event can
// interleave between them.
func (l *Ledger) SeenOrMark(threadID, key string) bool {
	if l.Seen(threadID, key) {
		return true
	}
	l.Mark(threadID, key)
	return false
}

// ResetThread clears one thread's entries ahead of its full history load.
func (l *Ledger) ResetThread(threadID string) {
	delete(l.threads, threadID)
}

// Len returns the number of identifiers tracked for the thread.
func (l *Ledger) Len(threadID string) int {
	return len(l.threads[threadID])
}
