package domain

import "time"

// Direction indicates message flow from the end-user's perspective.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Attachment references a plain media item carried by a message.
type Attachment struct {
	ContentType string
	URL         string
}

// FormField is one input of an interactive form template.
type FormField struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Required bool
}

// Form is an interactive form template carried by a message.
type Form struct {
	TemplateID string
	Title      string
	Fields     []FormField
}

// OptionPayload is the vendor payload attached to a quick-reply option.
// Call actions carry a destination plus an access token.
type OptionPayload struct {
	Description string
	Destination string
	AccessToken string
}

// QuickReplyOption is one selectable option of a quick-reply set.
type QuickReplyOption struct {
	Identifier string
	Title      string
	Type       string
	URL        string
	Payload    *OptionPayload
}

// QuickReplySet is an interactive set of quick-reply options.
type QuickReplySet struct {
	Reference string
	Options   []QuickReplyOption
}

// InteractiveData identifies the option a quick-reply answer selected.
type InteractiveData struct {
	Type       string
	Identifier string
	Title      string
	Reference  string
	URL        string
}

// Message is one canonical chat event after normalization. Interactive
// content (Form, QuickReplies) takes rendering precedence over Text when
// both are present.
type Message struct {
	ID              string
	ClientMessageID string
	CorrelationID   string
	RelatedID       string
	ThreadID        string

	Text         string
	Attachments  []Attachment
	Form         *Form
	QuickReplies *QuickReplySet
	Interactive  *InteractiveData

	Direction Direction
	CreatedAt time.Time

	// Derived flags, set only by reconciliation or the send path.
	Answered         bool
	SelectedOptionID string
	Hidden           bool
	Optimistic       bool
	Failed           bool
}

// Outbound reports whether the message was sent by the end-user.
func (m *Message) Outbound() bool {
	return m.Direction == DirectionOutbound
}

// Interactivity reports whether the message carries a form or quick replies.
func (m *Message) Interactivity() bool {
	return m.Form != nil || (m.QuickReplies != nil && len(m.QuickReplies.Options) > 0)
}

// HasMedia reports whether any media accompanies the message.
func (m *Message) HasMedia() bool {
	return len(m.Attachments) > 0 || m.Form != nil
}
