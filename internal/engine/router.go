package engine

import (
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/internal/rtms"
)

// RouteOutcome describes what the router did with an event.
type RouteOutcome int

const (
	// RouteSkipped means the event carried nothing displayable.
	RouteSkipped RouteOutcome = iota
	// RouteSystem means a typing/banner event went to the side channel.
	RouteSystem
	// RouteSuppressedHiddenStart means the armed hidden-start echo matched.
	RouteSuppressedHiddenStart
	// RouteSuppressedEcho means a text-only echo of an optimistic send.
	RouteSuppressedEcho
	// RouteDuplicate means the ledger had already seen the identifier.
	RouteDuplicate
	// RouteUnknownThread means no thread could be resolved for the event.
	RouteUnknownThread
	// RouteAppended means the message entered the Thread Store.
	RouteAppended
)

// RouteInput is one event plus the session state the routing rules need.
type RouteInput struct {
	Raw            *rtms.RawEvent
	ActiveThreadID string
	Focused        bool
}

// RouteResult reports the outcome and its side effects for the caller to
// project: an appended message, a system event, typing clearance, or a
// thread-close notification.
type RouteResult struct {
	Outcome      RouteOutcome
	Message      *domain.Message
	Thread       *domain.Thread
	System       *domain.SystemEvent
	ThreadID     string
	ThreadClosed bool
	ClearTyping  bool
}

// Router applies the live-event rules: system side-channeling, hidden-start
// and optimistic-echo suppression, deduplication, then the Thread Store
// append. One instance per session, driven only from the session goroutine.
type Router struct {
	store   *ThreadStore
	ledger  *Ledger
	auto    *AutoStart
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRouter wires a router over the session's store, ledger and auto-start
// controller.
func NewRouter(store *ThreadStore, ledger *Ledger, auto *AutoStart, metrics *observability.Metrics, logger *zap.Logger) *Router {
	return &Router{store: store, ledger: ledger, auto: auto, metrics: metrics, logger: logger}
}

// Route processes one push-channel event. History items never come through
// here; a full load normalizes and reconciles them in one batch before
// installing the transcript.
func (r *Router) Route(in RouteInput) RouteResult {
	norm := Normalize(in.Raw)
	result := RouteResult{ThreadID: norm.ThreadID, ThreadClosed: norm.ThreadClosed}

	if norm.System != nil {
		result.Outcome = RouteSystem
		result.System = norm.System
		return result
	}
	if norm.Message == nil {
		if !norm.ThreadClosed {
			r.metrics.RecordEngine(observability.CounterEventsMalformed)
			r.logger.Debug("event carried nothing displayable")
		}
		result.Outcome = RouteSkipped
		return result
	}

	msg := norm.Message
	// A real inbound message supersedes any running typing indicator.
	if !msg.Outbound() {
		result.ClearTyping = true
	}

	threadID := msg.ThreadID
	if threadID == "" {
		threadID = in.ActiveThreadID
	}
	result.ThreadID = threadID
	key := DedupKey(msg)

	if r.auto.ObserveEcho(msg.Text) {
		r.ledger.Mark(threadID, key)
		r.metrics.RecordEngine(observability.CounterEventsSuppressed)
		r.logger.Debug("suppressed hidden start echo", zap.String("tid", msg.CorrelationID))
		result.Outcome = RouteSuppressedHiddenStart
		return result
	}

	// Text-only outbound deliveries duplicate the optimistic bubble already
	// rendered on send. Outbound messages carrying media have no optimistic
	// counterpart and must pass through to be rendered once.
	if msg.Outbound() && !msg.HasMedia() && msg.QuickReplies == nil {
		r.metrics.RecordEngine(observability.CounterEventsSuppressed)
		result.Outcome = RouteSuppressedEcho
		return result
	}

	if r.ledger.Seen(threadID, key) {
		r.metrics.RecordEngine(observability.CounterEventsDeduped)
		result.Outcome = RouteDuplicate
		return result
	}

	thread := r.store.Append(threadID, msg, in.Focused && threadID == in.ActiveThreadID)
	if thread == nil {
		// Not marked seen: the thread may simply not be known yet, and a
		// vendor redelivery after the thread list lands must still append.
		r.logger.Warn("event for unknown thread", zap.String("thread_id", threadID))
		result.Outcome = RouteUnknownThread
		return result
	}

	r.ledger.Mark(threadID, key)
	r.metrics.RecordEngine(observability.CounterEventsRouted)
	result.Outcome = RouteAppended
	result.Message = msg
	result.Thread = thread
	return result
}
