package events

import "time"

// EventType enumerates render instructions emitted to the view projection.
type EventType string

const (
	EventMessageRendered        EventType = "message_rendered"
	EventInputVisibilityChanged EventType = "input_visibility_changed"
	EventThreadListChanged      EventType = "thread_list_changed"
	EventTyping                 EventType = "typing"
	EventSystemBanner           EventType = "system_banner"
	EventThreadClosed           EventType = "thread_closed"
	EventSendFailed             EventType = "send_failed"
	EventChannelStatus          EventType = "channel_status"
)

// Event is one notification from the engine to the view.
type Event struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	ThreadID  string      `json:"thread_id,omitempty"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MessageRenderedPayload carries one bubble to append. Incremental renders
// append a single bubble; a history load is delivered as a full transcript
// through the open-thread response instead.
type MessageRenderedPayload struct {
	Message     interface{} `json:"message"`
	Incremental bool        `json:"incremental"`
}

// InputVisibilityPayload reports whether the input box accepts text.
type InputVisibilityPayload struct {
	Enabled bool `json:"enabled"`
}

// TypingPayload toggles the typing indicator.
type TypingPayload struct {
	Active bool `json:"active"`
}

// SystemBannerPayload carries a transient system notice.
type SystemBannerPayload struct {
	Text string `json:"text"`
}

// SendFailedPayload reports a failed optimistic send for retry affordance.
type SendFailedPayload struct {
	ClientMessageID string `json:"client_message_id"`
	Reason          string `json:"reason"`
}

// ChannelStatusPayload reports push-channel connectivity as a non-blocking
// inline notice.
type ChannelStatusPayload struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}
