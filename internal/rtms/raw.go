package rtms

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Sentinel values and payload-type markers used by the vendor wire format.
const (
	PayloadTypeSentByUser  = "sentByUser"
	PayloadTypeSentToUser  = "sentToUser"
	PayloadTypeTypingStart = "typingStart"
	PayloadTypeCloseThread = "closeThread"

	SentinelTyping        = "$$$$$TYPING$$$$$"
	SentinelAgentAssigned = "$$$$$AGENTASSIGNED$$$$$"

	EventTypeParticipantJoined = "participant_joined"

	TemplateTypeForm = "form"
)

// RawEvent is a vendor event exactly as delivered, either as a history item
// or a push-channel payload. The two differ in whether message/media/tid sit
// at the top level or under the Event wrapper; nothing outside the
// normalizer should read these fields.
type RawEvent struct {
	ID              string               `json:"id,omitempty"`
	TID             string               `json:"tid,omitempty"`
	ClientMessageID string               `json:"clientMessageId,omitempty"`
	Message         string               `json:"message,omitempty"`
	Media           []RawMedia           `json:"media,omitempty"`
	QuickReplies    *RawQuickReplies     `json:"quickReplies,omitempty"`
	Outgoing        bool                 `json:"outgoing,omitempty"`
	PayloadType     string               `json:"payload_type,omitempty"`
	Direction       string               `json:"direction,omitempty"`
	Type            string               `json:"type,omitempty"`
	RelatedTID      string               `json:"relatedTid,omitempty"`
	InteractiveData *RawInteractiveData  `json:"interactiveData,omitempty"`
	Thread          *RawThread           `json:"thread,omitempty"`
	Event           *RawEventBody        `json:"event,omitempty"`
	Extras          *RawExtras           `json:"extras,omitempty"`
	Participant     *RawParticipant      `json:"participant,omitempty"`
	CreatedOn       json.RawMessage      `json:"created_on,omitempty"`
	Created         json.RawMessage      `json:"created,omitempty"`
	TS              json.RawMessage      `json:"ts,omitempty"`
}

// RawEventBody is the nested wrapper used by push-channel payloads.
type RawEventBody struct {
	TID          string           `json:"tid,omitempty"`
	Type         string           `json:"type,omitempty"`
	Message      *RawEventMessage `json:"message,omitempty"`
	Media        []RawMedia       `json:"media,omitempty"`
	QuickReplies *RawQuickReplies `json:"quickReplies,omitempty"`
	Participant  *RawParticipant  `json:"participant,omitempty"`
}

// RawEventMessage carries the nested text of a push payload.
type RawEventMessage struct {
	Text string `json:"text,omitempty"`
}

// RawMedia is one media descriptor; interactive templates carry a
// templateType/templateId pair and a payload.
type RawMedia struct {
	ContentType  string              `json:"contentType,omitempty"`
	URL          string              `json:"url,omitempty"`
	TemplateType string              `json:"templateType,omitempty"`
	TemplateID   string              `json:"templateId,omitempty"`
	Payload      *RawTemplatePayload `json:"payload,omitempty"`
}

// RawTemplatePayload is the body of a form template or a form answer.
type RawTemplatePayload struct {
	Title  string         `json:"title,omitempty"`
	Fields []RawFormField `json:"fields,omitempty"`
}

// RawFormField is one field of a form template or answer.
type RawFormField struct {
	Name     string `json:"name,omitempty"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// RawQuickReplies is a quick-reply option set.
type RawQuickReplies struct {
	Reference string      `json:"reference,omitempty"`
	Options   []RawOption `json:"options,omitempty"`
}

// RawOption is one quick-reply option.
type RawOption struct {
	Identifier string            `json:"identifier,omitempty"`
	Title      string            `json:"title,omitempty"`
	Type       string            `json:"type,omitempty"`
	URL        string            `json:"url,omitempty"`
	Payload    *RawOptionPayload `json:"payload,omitempty"`
}

// RawOptionPayload is the payload behind a quick-reply option; call actions
// carry destination + accessToken.
type RawOptionPayload struct {
	Description string `json:"description,omitempty"`
	Destination string `json:"destination,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// RawInteractiveData is sent with a quick-reply answer and echoed back by
// the vendor on delivery.
type RawInteractiveData struct {
	Type       string            `json:"type,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	Title      string            `json:"title,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	URL        string            `json:"url,omitempty"`
	Payload    *RawOptionPayload `json:"payload,omitempty"`
}

// RawThread is the thread descriptor embedded in events and list responses.
type RawThread struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedOn string `json:"created_on,omitempty"`
}

// RawExtras carries vendor side-band tags (typing state, agent name).
type RawExtras struct {
	CustomTags map[string]string `json:"customtags,omitempty"`
}

// RawParticipant identifies a joined participant on legacy events.
type RawParticipant struct {
	Name string `json:"name,omitempty"`
}

// CreatedAt resolves the event timestamp, trying created_on, created and ts
// in order. Vendors emit either ISO-8601 strings or epoch milliseconds.
func (e *RawEvent) CreatedAt() time.Time {
	for _, raw := range []json.RawMessage{e.CreatedOn, e.Created, e.TS} {
		if ts, ok := parseTimestamp(raw); ok {
			return ts
		}
	}
	return time.Time{}
}

func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(millis), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
