package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/pkg/util"
)

// ThreadSummary is the list-view projection of a thread.
type ThreadSummary struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Status    domain.ThreadStatus `json:"status"`
	Preview   string              `json:"preview"`
	Unread    int                 `json:"unread"`
	CreatedAt string              `json:"created_at,omitempty"`
}

// TranscriptView is the conversation-view projection returned when a
// thread is opened. Messages are visible entries only, in chronological
// order, copied out of the store so the view never shares engine state.
type TranscriptView struct {
	ThreadID     string              `json:"thread_id"`
	Title        string              `json:"title"`
	Status       domain.ThreadStatus `json:"status"`
	Messages     []domain.Message    `json:"messages"`
	InputEnabled bool                `json:"input_enabled"`
	AgentName    string              `json:"agent_name,omitempty"`
}

// Threads returns the current thread list projection.
func (s *Session) Threads() ([]ThreadSummary, error) {
	var out []ThreadSummary
	err := s.run(func() { out = s.threadSummariesLocked() })
	return out, err
}

func (s *Session) threadSummariesLocked() []ThreadSummary {
	threads := s.store.List()
	out := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summary := ThreadSummary{
			ID:      t.ID,
			Title:   t.Title,
			Status:  t.Status,
			Preview: t.LastMessagePreview,
			Unread:  t.UnreadCount,
		}
		if !t.CreatedAt.IsZero() {
			summary.CreatedAt = t.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, summary)
	}
	return out
}

// OpenThread focuses a thread and loads its history. The open is guarded by
// an epoch: if the user opens another thread while the fetch is in flight,
// the stale result is discarded instead of overwriting the newer view.
// Live events arriving mid-load are queued and replayed afterwards.
func (s *Session) OpenThread(ctx context.Context, threadID string) (*TranscriptView, error) {
	var epoch uint64
	var exists bool
	if err := s.run(func() {
		if s.store.Get(threadID) == nil {
			return
		}
		exists = true
		s.openEpoch++
		epoch = s.openEpoch
		s.activeThreadID = threadID
		s.focused = true
		s.loadingEpoch = epoch
		s.store.ClearUnread(threadID)
	}); err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.NewNotFound("thread", map[string]any{"thread_id": threadID})
	}

	raws, fetchErr := s.api.FetchHistory(ctx, threadID)

	var view *TranscriptView
	var installErr error
	if err := s.run(func() {
		if epoch != s.openEpoch {
			// A newer open superseded this load.
			s.metrics.RecordEngine(observability.CounterHistoryDiscarded)
			s.logger.Debug("discarded stale history load", zap.String("thread_id", threadID))
			installErr = util.NewStateConflict("history load superseded", nil)
			return
		}
		defer s.finishLoadLocked()

		if fetchErr != nil {
			installErr = util.NewUpstreamError("history fetch", fetchErr)
			return
		}

		// A full load resets this thread's ledger entries and re-marks them
		// during normalization, so live deliveries keep deduplicating
		// correctly. Marks for other threads are untouched.
		s.ledger.ResetThread(threadID)
		messages := make([]*domain.Message, 0, len(raws))
		for _, raw := range raws {
			norm := Normalize(raw)
			if norm.Message == nil {
				continue
			}
			if s.ledger.SeenOrMark(threadID, DedupKey(norm.Message)) {
				s.metrics.RecordEngine(observability.CounterEventsDeduped)
				continue
			}
			messages = append(messages, norm.Message)
		}
		Reconcile(messages, s.auto.HiddenStartFilter())
		s.store.InstallHistory(threadID, messages)
		s.metrics.RecordEngine(observability.CounterHistoryLoads)

		view = s.transcriptLocked(threadID)
	}); err != nil {
		return nil, err
	}
	if installErr != nil {
		return nil, installErr
	}
	return view, nil
}

// finishLoadLocked replays live events queued during the load and clears
// the loading marker. Runs on the session goroutine.
func (s *Session) finishLoadLocked() {
	s.loadingEpoch = 0
	queued := s.pendingLive
	s.pendingLive = nil
	for _, raw := range queued {
		s.routeLive(raw)
	}
	s.refreshInput()
}

// transcriptLocked builds the conversation projection. Runs on the session
// goroutine.
func (s *Session) transcriptLocked(threadID string) *TranscriptView {
	t := s.store.Get(threadID)
	if t == nil {
		return nil
	}
	view := &TranscriptView{
		ThreadID:  t.ID,
		Title:     t.Title,
		Status:    t.Status,
		Messages:  make([]domain.Message, 0, len(t.Messages)),
		AgentName: s.agentName,
	}
	for _, msg := range t.Messages {
		if msg.Hidden {
			continue
		}
		view.Messages = append(view.Messages, *msg)
	}
	s.inputEnabled = inputEnabledFor(t)
	view.InputEnabled = s.inputEnabled
	return view
}

// CloseThreadView unfocuses the conversation view, returning the widget to
// the thread list.
func (s *Session) CloseThreadView() error {
	return s.run(func() {
		s.focused = false
		s.activeThreadID = ""
		s.typingActive = false
	})
}
