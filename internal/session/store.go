package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/persistence"
)

const (
	identityTTL  = 0 // identities persist across sessions
	ephemeralTTL = 30 * time.Minute
)

// Store persists the only two things the widget keeps beyond process
// memory: the per-browser identity, and the session-scoped auto-start
// markers that stop a reload from re-triggering or re-arming auto-start.
type Store interface {
	LoadIdentity(ctx context.Context, widgetKey string) (domain.Identity, bool, error)
	SaveIdentity(ctx context.Context, widgetKey string, identity domain.Identity) error
	AutoStartCompleted(ctx context.Context, widgetKey string) (bool, error)
	MarkAutoStartCompleted(ctx context.Context, widgetKey string) error
	SetPendingStart(ctx context.Context, widgetKey, text string) error
	TakePendingStart(ctx context.Context, widgetKey string) (string, error)
}

// NewStore returns a Redis-backed store when Redis is configured, and an
// in-memory store otherwise (single-instance deployments and tests).
func NewStore(r *persistence.Redis) Store {
	if r == nil || r.Client == nil {
		return NewMemoryStore()
	}
	return &redisStore{client: r.Client}
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) LoadIdentity(ctx context.Context, widgetKey string) (domain.Identity, bool, error) {
	values, err := s.client.HGetAll(ctx, identityKey(widgetKey)).Result()
	if err != nil {
		return domain.Identity{}, false, err
	}
	identity := domain.Identity{UserID: values["user_id"], DeviceID: values["device_id"]}
	return identity, identity.Complete(), nil
}

func (s *redisStore) SaveIdentity(ctx context.Context, widgetKey string, identity domain.Identity) error {
	return s.client.HSet(ctx, identityKey(widgetKey),
		"user_id", identity.UserID,
		"device_id", identity.DeviceID,
	).Err()
}

func (s *redisStore) AutoStartCompleted(ctx context.Context, widgetKey string) (bool, error) {
	n, err := s.client.Exists(ctx, autoStartKey(widgetKey)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) MarkAutoStartCompleted(ctx context.Context, widgetKey string) error {
	return s.client.Set(ctx, autoStartKey(widgetKey), "1", ephemeralTTL).Err()
}

func (s *redisStore) SetPendingStart(ctx context.Context, widgetKey, text string) error {
	return s.client.Set(ctx, pendingKey(widgetKey), text, ephemeralTTL).Err()
}

func (s *redisStore) TakePendingStart(ctx context.Context, widgetKey string) (string, error) {
	text, err := s.client.GetDel(ctx, pendingKey(widgetKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return text, err
}

func identityKey(widgetKey string) string {
	return fmt.Sprintf("widget:identity:%s", widgetKey)
}

func autoStartKey(widgetKey string) string {
	return fmt.Sprintf("widget:autostart:%s", widgetKey)
}

func pendingKey(widgetKey string) string {
	return fmt.Sprintf("widget:pending-start:%s", widgetKey)
}

// MemoryStore keeps session state in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
	completed  map[string]bool
	pending    map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]domain.Identity),
		completed:  make(map[string]bool),
		pending:    make(map[string]string),
	}
}

func (s *MemoryStore) LoadIdentity(_ context.Context, widgetKey string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[widgetKey]
	return identity, ok && identity.Complete(), nil
}

func (s *MemoryStore) SaveIdentity(_ context.Context, widgetKey string, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[widgetKey] = identity
	return nil
}

func (s *MemoryStore) AutoStartCompleted(_ context.Context, widgetKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[widgetKey], nil
}

func (s *MemoryStore) MarkAutoStartCompleted(_ context.Context, widgetKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[widgetKey] = true
	return nil
}

func (s *MemoryStore) SetPendingStart(_ context.Context, widgetKey, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[widgetKey] = text
	return nil
}

func (s *MemoryStore) TakePendingStart(_ context.Context, widgetKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.pending[widgetKey]
	delete(s.pending, widgetKey)
	return text, nil
}
