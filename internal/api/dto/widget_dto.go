package dto

import "github.com/spec-kit/chat-widget/internal/engine"

// BootstrapRequest starts a widget session for a host page.
type BootstrapRequest struct {
	BrowserKey   string `json:"browser_key"`
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
	SiteURL      string `json:"site_url,omitempty"`
	APIBaseURL   string `json:"api_base_url,omitempty"`
	RealtimeHost string `json:"realtime_host,omitempty"`
	Language     string `json:"language,omitempty"`

	StartMessage       string `json:"start_message,omitempty"`
	StartMessageHidden bool   `json:"start_message_hidden,omitempty"`
	StartPolicy        string `json:"start_policy,omitempty"`
}

// BootstrapResponse returns the session token and the initial thread list.
type BootstrapResponse struct {
	SessionID string                 `json:"session_id"`
	Token     string                 `json:"token"`
	ExpiresAt string                 `json:"expires_at"`
	Threads   []engine.ThreadSummary `json:"threads"`
}

// SendMessageRequest posts one outbound text message.
type SendMessageRequest struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
}

// SendAttachmentRequest posts uploaded media, optionally captioned.
type SendAttachmentRequest struct {
	ThreadID    string              `json:"thread_id"`
	Caption     string              `json:"caption,omitempty"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// AttachmentPayload references one uploaded asset.
type AttachmentPayload struct {
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// RetryRequest re-sends a failed optimistic message.
type RetryRequest struct {
	ThreadID        string `json:"thread_id"`
	ClientMessageID string `json:"client_message_id"`
}

// QuickReplyRequest answers a quick-reply prompt.
type QuickReplyRequest struct {
	ThreadID   string `json:"thread_id"`
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// FormSubmitRequest answers a form prompt.
type FormSubmitRequest struct {
	ThreadID   string            `json:"thread_id"`
	TemplateID string            `json:"template_id"`
	Values     map[string]string `json:"values"`
}

// MessageResponse wraps a single message projection.
type MessageResponse struct {
	ClientMessageID string `json:"client_message_id,omitempty"`
	Delivered       bool   `json:"delivered"`
}

// UploadResponse returns the stored asset reference.
type UploadResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}
