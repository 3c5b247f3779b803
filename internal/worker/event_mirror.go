package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/events"
	"github.com/spec-kit/chat-widget/internal/persistence"
)

// EventMirror publishes every view event onto a per-session Redis channel
// so dashboards or a second gateway instance can observe live sessions.
// Without Redis the mirror is inert and the in-process feed is the only
// consumer.
type EventMirror struct {
	redis  *persistence.Redis
	logger *zap.Logger
}

// StartEventMirror builds the mirror worker.
func StartEventMirror(r *persistence.Redis, logger *zap.Logger) *EventMirror {
	return &EventMirror{redis: r, logger: logger}
}

// Attach subscribes the mirror to one session's dispatcher.
func (m *EventMirror) Attach(dispatcher events.Dispatcher, sessionID string) {
	if m == nil || m.redis == nil || m.redis.Client == nil {
		return
	}
	channel := fmt.Sprintf("widget:events:%s", sessionID)
	dispatcher.SubscribeAll(func(ctx context.Context, event events.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := m.redis.Client.Publish(ctx, channel, payload).Err(); err != nil {
			m.logger.Debug("event mirror publish failed", zap.Error(err))
		}
		return nil
	})
}
