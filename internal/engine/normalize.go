package engine

import (
	"strings"

	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/rtms"
)

// Normalized is the outcome of normalizing one raw vendor event. Message is
// nil when the event carries nothing displayable; System is set for typing
// and banner events, which never enter the Thread Store. ThreadClosed may
// accompany either.
type Normalized struct {
	Message      *domain.Message
	System       *domain.SystemEvent
	ThreadID     string
	ThreadClosed bool
}

// Empty reports whether the event produced nothing actionable.
func (n Normalized) Empty() bool {
	return n.Message == nil && n.System == nil && !n.ThreadClosed
}

// Normalize maps a raw history item or push-channel payload into the
// canonical message record. History items carry fields at the top level;
// push payloads nest message/media/tid under an event wrapper — first
// present wins. Pure function, no side effects; malformed input yields an
// empty result rather than an error.
func Normalize(raw *rtms.RawEvent) Normalized {
	out := Normalized{ThreadID: rawThreadID(raw)}

	if raw.PayloadType == rtms.PayloadTypeCloseThread ||
		(raw.Thread != nil && raw.Thread.Status == string(domain.ThreadStatusClosed)) {
		out.ThreadClosed = true
	}

	if sys := systemEvent(raw, out.ThreadID); sys != nil {
		out.System = sys
		return out
	}

	text := raw.Message
	if text == "" && raw.Event != nil && raw.Event.Message != nil {
		text = raw.Event.Message.Text
	}
	media := raw.Media
	if len(media) == 0 && raw.Event != nil {
		media = raw.Event.Media
	}
	tid := raw.TID
	if tid == "" && raw.Event != nil {
		tid = raw.Event.TID
	}
	quickReplies := raw.QuickReplies
	if quickReplies == nil && raw.Event != nil {
		quickReplies = raw.Event.QuickReplies
	}

	if text == "" && len(media) == 0 && quickReplies == nil {
		return out
	}

	msg := &domain.Message{
		ID:              raw.ID,
		ClientMessageID: raw.ClientMessageID,
		CorrelationID:   tid,
		RelatedID:       raw.RelatedTID,
		ThreadID:        out.ThreadID,
		Text:            text,
		Direction:       direction(raw),
		CreatedAt:       raw.CreatedAt(),
	}

	for _, m := range media {
		if m.TemplateType == rtms.TemplateTypeForm {
			if msg.Form == nil {
				msg.Form = normalizeForm(m)
			}
			continue
		}
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ContentType: m.ContentType,
			URL:         m.URL,
		})
	}
	if quickReplies != nil {
		msg.QuickReplies = normalizeQuickReplies(quickReplies)
	}
	if raw.InteractiveData != nil {
		msg.Interactive = &domain.InteractiveData{
			Type:       raw.InteractiveData.Type,
			Identifier: raw.InteractiveData.Identifier,
			Title:      raw.InteractiveData.Title,
			Reference:  raw.InteractiveData.Reference,
			URL:        raw.InteractiveData.URL,
		}
	}

	out.Message = msg
	return out
}

// direction resolves message flow. The history API marks user-sent items
// with direction "incoming" (user to platform), which is outbound from the
// widget's point of view.
func direction(raw *rtms.RawEvent) domain.Direction {
	if raw.Outgoing || raw.PayloadType == rtms.PayloadTypeSentByUser || raw.Direction == "incoming" {
		return domain.DirectionOutbound
	}
	return domain.DirectionInbound
}

func systemEvent(raw *rtms.RawEvent, threadID string) *domain.SystemEvent {
	if raw.Message == rtms.SentinelAgentAssigned {
		return &domain.SystemEvent{
			Kind:      domain.SystemAgentAssigned,
			ThreadID:  threadID,
			AgentName: customTag(raw, "agent", "Agent"),
		}
	}

	if raw.Message == rtms.SentinelTyping || raw.PayloadType == rtms.PayloadTypeTypingStart {
		kind := domain.SystemTypingOn
		if customTag(raw, "typing", "typing_on") == "typing_off" {
			kind = domain.SystemTypingOff
		}
		return &domain.SystemEvent{Kind: kind, ThreadID: threadID}
	}

	eventType := raw.Type
	if eventType == "" && raw.Event != nil {
		eventType = raw.Event.Type
	}
	if eventType == rtms.EventTypeParticipantJoined {
		name := "Agent"
		if raw.Participant != nil && raw.Participant.Name != "" {
			name = raw.Participant.Name
		} else if raw.Event != nil && raw.Event.Participant != nil && raw.Event.Participant.Name != "" {
			name = raw.Event.Participant.Name
		}
		return &domain.SystemEvent{Kind: domain.SystemAgentAssigned, ThreadID: threadID, AgentName: name}
	}

	return nil
}

func normalizeForm(m rtms.RawMedia) *domain.Form {
	form := &domain.Form{TemplateID: m.TemplateID}
	if m.Payload != nil {
		form.Title = m.Payload.Title
		for _, f := range m.Payload.Fields {
			form.Fields = append(form.Fields, domain.FormField{
				Name:     f.Name,
				Label:    f.Label,
				Type:     f.Type,
				Value:    f.Value,
				Required: f.Required,
			})
		}
	}
	return form
}

func normalizeQuickReplies(qr *rtms.RawQuickReplies) *domain.QuickReplySet {
	set := &domain.QuickReplySet{Reference: qr.Reference}
	for _, opt := range qr.Options {
		mapped := domain.QuickReplyOption{
			Identifier: opt.Identifier,
			Title:      opt.Title,
			Type:       opt.Type,
			URL:        opt.URL,
		}
		if opt.Payload != nil {
			mapped.Payload = &domain.OptionPayload{
				Description: opt.Payload.Description,
				Destination: opt.Payload.Destination,
				AccessToken: opt.Payload.AccessToken,
			}
		}
		set.Options = append(set.Options, mapped)
	}
	return set
}

func rawThreadID(raw *rtms.RawEvent) string {
	if raw.Thread != nil {
		return raw.Thread.ID
	}
	return ""
}

func customTag(raw *rtms.RawEvent, key, fallback string) string {
	if raw.Extras != nil && raw.Extras.CustomTags != nil {
		if v, ok := raw.Extras.CustomTags[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}

// normalizeText is the shared comparison form for content-based matching
// (dedup fallback, hidden-start and echo suppression).
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
