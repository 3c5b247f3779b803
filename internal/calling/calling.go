package calling

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/domain"
)

// CallActionDescription is the vendor marker identifying a quick-reply
// option as a VoIP call action.
const CallActionDescription = "make a call using webex calling"

// CallState enumerates call handle transitions.
type CallState string

const (
	CallStateRinging      CallState = "ringing"
	CallStateConnected    CallState = "connected"
	CallStateDisconnected CallState = "disconnected"
	CallStateError        CallState = "error"
)

// CallEvent is one state transition of an active call.
type CallEvent struct {
	State CallState
	Err   error
}

// CallHandle represents one dialed call.
type CallHandle interface {
	Events() <-chan CallEvent
	HangUp() error
}

// Dialer is the calling-SDK contract. Call actions surfaced in quick
// replies carry their own destination and access token.
type Dialer interface {
	Register(ctx context.Context, token string) error
	Dial(ctx context.Context, destination, token string) (CallHandle, error)
}

// IsCallOption reports whether a quick-reply option is a call action:
// the payload carries a destination plus an access token.
func IsCallOption(opt domain.QuickReplyOption) bool {
	p := opt.Payload
	return p != nil && p.Description == CallActionDescription && p.Destination != "" && p.AccessToken != ""
}

// HasCallAction reports whether any option of the message's quick-reply set
// is a call action. Such messages are standing offers: reconciliation never
// marks them answered or hides them as abandoned.
func HasCallAction(msg *domain.Message) bool {
	if msg.QuickReplies == nil {
		return false
	}
	for _, opt := range msg.QuickReplies.Options {
		if IsCallOption(opt) {
			return true
		}
	}
	return false
}

// NopDialer satisfies Dialer without a media stack; every dial reports an
// immediate disconnect. Used until a real SDK binding is injected.
type NopDialer struct {
	Logger *zap.Logger
}

// Register logs and accepts the token.
func (d *NopDialer) Register(_ context.Context, token string) error {
	if d.Logger != nil {
		d.Logger.Info("call registration accepted", zap.Int("token_len", len(token)))
	}
	return nil
}

// Dial logs the destination and returns a handle that disconnects at once.
func (d *NopDialer) Dial(_ context.Context, destination, _ string) (CallHandle, error) {
	if d.Logger != nil {
		d.Logger.Info("dial requested", zap.String("destination", destination))
	}
	events := make(chan CallEvent, 2)
	events <- CallEvent{State: CallStateRinging}
	events <- CallEvent{State: CallStateDisconnected}
	close(events)
	return nopHandle{events: events}, nil
}

type nopHandle struct {
	events chan CallEvent
}

func (h nopHandle) Events() <-chan CallEvent { return h.events }
func (h nopHandle) HangUp() error            { return nil }
