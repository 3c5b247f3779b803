package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/calling"
	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/engine"
	"github.com/spec-kit/chat-widget/internal/events"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/internal/realtime"
	"github.com/spec-kit/chat-widget/internal/rtms"
	"github.com/spec-kit/chat-widget/internal/worker"
	"github.com/spec-kit/chat-widget/pkg/util"
)

// BootstrapInput carries the per-widget parameters a host page submits.
type BootstrapInput struct {
	BrowserKey   string
	AppID        string
	ClientSecret string
	SiteURL      string
	APIBaseURL   string
	RealtimeHost string
	Language     string

	StartMessage       string
	StartMessageHidden bool
	StartPolicy        string
}

// Bootstrap is the result of starting a widget session.
type Bootstrap struct {
	Session *engine.Session
	Feed    *events.Feed
	Threads []engine.ThreadSummary
}

// Manager owns the live widget sessions of this gateway instance.
type Manager struct {
	cfg     *config.Config
	store   Store
	dialer  calling.Dialer
	mirror  *worker.EventMirror
	metrics *observability.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session *engine.Session
	feed    *events.Feed
}

// ManagerDependencies bundles collaborators for the session manager.
type ManagerDependencies struct {
	Config  *config.Config
	Store   Store
	Dialer  calling.Dialer
	Mirror  *worker.EventMirror
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewManager constructs a session manager.
func NewManager(deps ManagerDependencies) *Manager {
	return &Manager{
		cfg:      deps.Config,
		store:    deps.Store,
		dialer:   deps.Dialer,
		mirror:   deps.Mirror,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		sessions: make(map[string]*entry),
	}
}

// Bootstrap creates and starts a widget session: identity lookup or
// creation, vendor registration, push channel, thread list and the
// auto-start flow. The returned session id becomes the subject of the
// widget token.
func (m *Manager) Bootstrap(ctx context.Context, in BootstrapInput) (*Bootstrap, error) {
	if strings.TrimSpace(in.AppID) == "" || strings.TrimSpace(in.ClientSecret) == "" {
		return nil, util.NewValidationError("app id and client secret required", nil)
	}
	if strings.TrimSpace(in.BrowserKey) == "" {
		return nil, util.NewValidationError("browser key required", nil)
	}

	settings := rtms.Settings{
		AppID:        in.AppID,
		ClientSecret: in.ClientSecret,
		APIBaseURL:   in.APIBaseURL,
		RealtimeHost: in.RealtimeHost,
		Language:     in.Language,
	}
	if err := settings.DeriveEndpoints(in.SiteURL); err != nil {
		return nil, util.NewValidationError(err.Error(), nil)
	}

	widgetKey := in.AppID + "/" + in.BrowserKey
	identity, found, err := m.store.LoadIdentity(ctx, widgetKey)
	if err != nil {
		m.logger.Warn("identity lookup failed, generating fresh", zap.Error(err))
	}
	if !found {
		identity = domain.NewIdentity()
		if err := m.store.SaveIdentity(ctx, widgetKey, identity); err != nil {
			m.logger.Warn("identity persist failed", zap.Error(err))
		}
	}

	startText := in.StartMessage
	startHidden := in.StartMessageHidden
	// A pending marker means a previous page load died mid-flow; resume
	// with the recorded text even if the host no longer sends one.
	if pending, err := m.store.TakePendingStart(ctx, widgetKey); err == nil && pending != "" && startText == "" {
		startText = pending
	}
	policy := engine.ParsePolicy(in.StartPolicy)
	if in.StartPolicy == "" {
		policy = engine.ParsePolicy(m.cfg.AutoStart.DefaultPolicy)
	}

	sessionID := uuid.NewString()
	logger := m.logger.With(zap.String("app_id", in.AppID))
	api := rtms.NewClient(settings, identity, m.cfg.Vendor, logger)
	channel := realtime.NewMQTTChannel(m.cfg.Realtime, logger)

	dispatcher := events.NewInMemoryDispatcher()
	feed := events.NewFeed()
	dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		feed.Push(event)
		return nil
	})
	m.mirror.Attach(dispatcher, sessionID)

	sess := engine.NewSession(engine.SessionDependencies{
		ID:         sessionID,
		Identity:   identity,
		API:        api,
		Channel:    channel,
		Dialer:     m.dialer,
		State:      &boundState{store: m.store, widgetKey: widgetKey},
		AutoStart:  engine.NewAutoStart(startText, startHidden, policy, m.cfg.AutoStart.EchoTimeout()),
		Dispatcher: dispatcher,
		Metrics:    m.metrics,
		Logger:     logger,
	})

	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return nil, util.NewUpstreamError("bootstrap", err)
	}

	threads, err := sess.Threads()
	if err != nil {
		sess.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = &entry{session: sess, feed: feed}
	m.mu.Unlock()

	m.logger.Info("widget session started",
		zap.String("session_id", sessionID), zap.Int("threads", len(threads)))
	return &Bootstrap{Session: sess, Feed: feed, Threads: threads}, nil
}

// Get returns a live session or a NOT_FOUND error.
func (m *Manager) Get(sessionID string) (*engine.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		return e.session, nil
	}
	return nil, util.NewNotFound("session", map[string]any{"session_id": sessionID})
}

// Feed returns a session's event feed or a NOT_FOUND error.
func (m *Manager) Feed(sessionID string) (*events.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		return e.feed, nil
	}
	return nil, util.NewNotFound("session", map[string]any{"session_id": sessionID})
}

// Close tears down one session.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		e.session.Close()
	}
}

// Shutdown tears down every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
}

// boundState adapts the widget-key-scoped store onto the per-session
// surface the engine expects.
type boundState struct {
	store     Store
	widgetKey string
}

func (b *boundState) AutoStartCompleted(ctx context.Context) (bool, error) {
	return b.store.AutoStartCompleted(ctx, b.widgetKey)
}

func (b *boundState) MarkAutoStartCompleted(ctx context.Context) error {
	return b.store.MarkAutoStartCompleted(ctx, b.widgetKey)
}

func (b *boundState) SetPendingStart(ctx context.Context, text string) error {
	return b.store.SetPendingStart(ctx, b.widgetKey, text)
}

func (b *boundState) ClearPendingStart(ctx context.Context) error {
	_, err := b.store.TakePendingStart(ctx, b.widgetKey)
	return err
}
