package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/pkg/util"
)

func newTestManager() *Manager {
	return NewManager(ManagerDependencies{
		Config:  &config.Config{},
		Store:   NewMemoryStore(),
		Metrics: observability.NewMetrics(),
		Logger:  zap.NewNop(),
	})
}

func TestBootstrapValidation(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	tests := []struct {
		name string
		in   BootstrapInput
	}{
		{"missing app credentials", BootstrapInput{BrowserKey: "bk"}},
		{"missing browser key", BootstrapInput{AppID: "app", ClientSecret: "sec"}},
		{"missing site url", BootstrapInput{AppID: "app", ClientSecret: "sec", BrowserKey: "bk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Bootstrap(ctx, tt.in)
			assert.Equal(t, "VALIDATION_FAILED", util.ToDomainError(err).Code)
		})
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m := newTestManager()

	_, err := m.Get("nope")
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)

	_, err = m.Feed("nope")
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)

	// Closing an unknown session is a no-op.
	m.Close("nope")
}
