package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/calling"
	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/events"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/internal/realtime"
	"github.com/spec-kit/chat-widget/internal/rtms"
)

// ErrSessionClosed is returned when an operation reaches a torn-down session.
var ErrSessionClosed = errors.New("widget session closed")

// StateStore persists the auto-start markers for one widget session so a
// page reload does not re-trigger a completed flow.
type StateStore interface {
	AutoStartCompleted(ctx context.Context) (bool, error)
	MarkAutoStartCompleted(ctx context.Context) error
	SetPendingStart(ctx context.Context, text string) error
	ClearPendingStart(ctx context.Context) error
}

// Session is the engine for one connected widget. All mutable state is
// owned by a single goroutine; public methods post closures onto the calls
// channel and wait, so no lock covers the thread store, ledger or router.
// Network calls always run off the loop.
type Session struct {
	id       string
	identity domain.Identity

	api     rtms.API
	channel realtime.Channel
	dialer  calling.Dialer
	state   StateStore

	store  *ThreadStore
	ledger *Ledger
	auto   *AutoStart
	router *Router

	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	calls     chan func()
	closed    chan struct{}
	closeOnce sync.Once

	activeThreadID string
	focused        bool
	openEpoch      uint64
	loadingEpoch   uint64
	pendingLive    []*rtms.RawEvent
	typingActive   bool
	inputEnabled   bool
	agentName      string
}

// SessionDependencies bundles collaborators for a widget session.
type SessionDependencies struct {
	ID         string
	Identity   domain.Identity
	API        rtms.API
	Channel    realtime.Channel
	Dialer     calling.Dialer
	State      StateStore
	AutoStart  *AutoStart
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSession constructs a session and starts its goroutine.
func NewSession(deps SessionDependencies) *Session {
	store := NewThreadStore()
	ledger := NewLedger()
	auto := deps.AutoStart
	if auto == nil {
		auto = NewAutoStart("", false, PolicyFirstVisit, 15*time.Second)
	}
	if deps.Dialer == nil {
		deps.Dialer = &calling.NopDialer{Logger: deps.Logger}
	}

	s := &Session{
		id:           deps.ID,
		identity:     deps.Identity,
		api:          deps.API,
		channel:      deps.Channel,
		dialer:       deps.Dialer,
		state:        deps.State,
		store:        store,
		ledger:       ledger,
		auto:         auto,
		router:       NewRouter(store, ledger, auto, deps.Metrics, deps.Logger),
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With(zap.String("session_id", deps.ID)),
		calls:        make(chan func()),
		closed:       make(chan struct{}),
		inputEnabled: true,
	}
	go s.loop()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Identity returns the browser identity bound to this session.
func (s *Session) Identity() domain.Identity { return s.identity }

func (s *Session) loop() {
	for {
		select {
		case f := <-s.calls:
			f()
		case <-s.closed:
			return
		}
	}
}

// run executes f on the session goroutine and waits for it.
func (s *Session) run(f func()) error {
	done := make(chan struct{})
	select {
	case s.calls <- func() { f(); close(done) }:
	case <-s.closed:
		return ErrSessionClosed
	}
	select {
	case <-done:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

// post executes f on the session goroutine without waiting, dropping it if
// the session is closed. Used by push-channel callbacks.
func (s *Session) post(f func()) {
	select {
	case s.calls <- f:
	case <-s.closed:
	}
}

// Start registers the guest identity, connects the push channel and loads
// the thread list, then runs the auto-start flow when the policy asks for
// it. Called once per session.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.api.Register(ctx); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	s.channel.OnMessage(func(raw *rtms.RawEvent) {
		s.post(func() { s.handleLive(raw) })
	})
	s.channel.OnStatus(func(connected bool, err error) {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		s.publish(events.EventChannelStatus, "", events.ChannelStatusPayload{Connected: connected, Detail: detail})
	})
	if err := s.channel.Connect(s.api.Credentials()); err != nil {
		// The widget stays usable over REST when the push channel is down.
		s.logger.Warn("push channel unavailable", zap.Error(err))
		s.publish(events.EventChannelStatus, "", events.ChannelStatusPayload{Connected: false, Detail: err.Error()})
	} else if err := s.channel.Subscribe(); err != nil {
		s.logger.Warn("push subscription failed", zap.Error(err))
	}

	rawThreads, err := s.api.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	threads := make([]*domain.Thread, 0, len(rawThreads))
	for i := range rawThreads {
		threads = append(threads, threadFromRaw(&rawThreads[i]))
	}
	if err := s.run(func() { s.store.Replace(threads) }); err != nil {
		return err
	}

	completed := false
	if s.state != nil {
		if done, err := s.state.AutoStartCompleted(ctx); err == nil {
			completed = done
		}
	}

	shouldStart := false
	if err := s.run(func() { shouldStart = s.auto.ShouldStart(s.store.Len(), completed) }); err != nil {
		return err
	}
	if shouldStart {
		if err := s.runAutoStart(ctx); err != nil {
			s.logger.Error("auto-start failed", zap.Error(err))
			_ = s.run(func() { s.auto.Fail() })
		}
	}
	return nil
}

// runAutoStart creates a thread, opens it and sends the configured start
// message. Hidden sends render nothing and arm echo suppression.
func (s *Session) runAutoStart(ctx context.Context) error {
	began := false
	if err := s.run(func() { began = s.auto.Begin() }); err != nil {
		return err
	}
	if !began {
		return nil
	}
	if s.state != nil {
		_ = s.state.SetPendingStart(ctx, s.auto.Text())
	}

	thread, err := s.createThread(ctx)
	if err != nil {
		return err
	}
	if err := s.run(func() { s.auto.Sending() }); err != nil {
		return err
	}
	if _, err := s.OpenThread(ctx, thread.ID); err != nil {
		return err
	}

	_, err = s.sendText(ctx, thread.ID, s.auto.Text(), s.auto.Hidden())
	if err != nil {
		return err
	}
	if err := s.run(func() { s.auto.Sent() }); err != nil {
		return err
	}
	s.metrics.RecordEngine(observability.CounterAutoStarts)
	if s.state != nil {
		_ = s.state.MarkAutoStartCompleted(ctx)
		_ = s.state.ClearPendingStart(ctx)
	}
	s.logger.Info("auto-start completed",
		zap.String("thread_id", thread.ID), zap.Bool("hidden", s.auto.Hidden()))
	return nil
}

// handleLive processes one push-channel event on the session goroutine.
// Events arriving during a history load are queued and replayed after the
// reconciled transcript is installed, so ordering is preserved.
func (s *Session) handleLive(raw *rtms.RawEvent) {
	if s.loadingEpoch != 0 {
		s.pendingLive = append(s.pendingLive, raw)
		return
	}
	s.routeLive(raw)
}

func (s *Session) routeLive(raw *rtms.RawEvent) {
	result := s.router.Route(RouteInput{
		Raw:            raw,
		ActiveThreadID: s.activeThreadID,
		Focused:        s.focused,
	})
	s.project(result)
}

// project turns a routing result into view events.
func (s *Session) project(result RouteResult) {
	if result.ClearTyping && s.typingActive {
		s.typingActive = false
		s.publish(events.EventTyping, result.ThreadID, events.TypingPayload{Active: false})
	}

	if result.ThreadClosed {
		if t := s.store.Get(result.ThreadID); t != nil {
			t.Status = domain.ThreadStatusClosed
		}
		s.publish(events.EventThreadClosed, result.ThreadID, nil)
		s.publishThreadList()
	}

	switch result.Outcome {
	case RouteSystem:
		s.projectSystem(result.System)
	case RouteAppended:
		if result.ThreadID == s.activeThreadID && s.focused {
			s.publish(events.EventMessageRendered, result.ThreadID, events.MessageRenderedPayload{
				Message:     *result.Message,
				Incremental: true,
			})
		}
		s.publishThreadList()
		s.refreshInput()
	}
}

func (s *Session) projectSystem(sys *domain.SystemEvent) {
	if sys == nil {
		return
	}
	threadID := sys.ThreadID
	if threadID == "" {
		threadID = s.activeThreadID
	}
	switch sys.Kind {
	case domain.SystemTypingOn:
		if !s.typingActive {
			s.typingActive = true
			s.publish(events.EventTyping, threadID, events.TypingPayload{Active: true})
		}
	case domain.SystemTypingOff:
		if s.typingActive {
			s.typingActive = false
			s.publish(events.EventTyping, threadID, events.TypingPayload{Active: false})
		}
	case domain.SystemAgentAssigned:
		s.agentName = sys.AgentName
		s.publish(events.EventSystemBanner, threadID, events.SystemBannerPayload{
			Text: fmt.Sprintf("%s has joined the conversation", sys.AgentName),
		})
	}
}

// refreshInput recomputes input availability for the active thread and
// publishes only on change.
func (s *Session) refreshInput() {
	enabled := inputEnabledFor(s.store.Get(s.activeThreadID))
	if enabled == s.inputEnabled {
		return
	}
	s.inputEnabled = enabled
	s.publish(events.EventInputVisibilityChanged, s.activeThreadID, events.InputVisibilityPayload{Enabled: enabled})
}

// inputEnabledFor implements the blocking rule: the composer locks while
// the newest visible message is an unanswered inbound prompt. A quick-reply
// set carrying a call action never locks the composer.
func inputEnabledFor(t *domain.Thread) bool {
	if t == nil {
		return true
	}
	last := t.LastVisible()
	if last == nil || last.Outbound() || last.Answered {
		return true
	}
	if last.Form != nil {
		return false
	}
	if last.QuickReplies != nil && len(last.QuickReplies.Options) > 0 && !calling.HasCallAction(last) {
		return false
	}
	return true
}

func (s *Session) publish(eventType events.EventType, threadID string, payload interface{}) {
	_ = s.dispatcher.Publish(context.Background(), events.Event{
		SessionID: s.id,
		ThreadID:  threadID,
		Type:      eventType,
		Payload:   payload,
	})
}

func (s *Session) publishThreadList() {
	s.publish(events.EventThreadListChanged, "", s.threadSummariesLocked())
}

// Close tears the session down: push channel first, then the goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.channel.Disconnect()
		close(s.closed)
		s.logger.Info("session closed")
	})
}

func threadFromRaw(raw *rtms.RawThread) *domain.Thread {
	status := domain.ThreadStatusActive
	if raw.Status == string(domain.ThreadStatusClosed) {
		status = domain.ThreadStatusClosed
	}
	t := &domain.Thread{
		ID:     raw.ID,
		Title:  raw.Title,
		Status: status,
	}
	if raw.CreatedOn != "" {
		if ts, err := time.Parse(time.RFC3339, raw.CreatedOn); err == nil {
			t.CreatedAt = ts
		}
	}
	return t
}
