package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/rtms"
)

func TestNormalizeHistoryTextItem(t *testing.T) {
	raw := &rtms.RawEvent{
		TID:       "t-1",
		Message:   "hello",
		Direction: "incoming",
		Thread:    &rtms.RawThread{ID: "th-1"},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Message)
	assert.Equal(t, "hello", got.Message.Text)
	assert.Equal(t, "t-1", got.Message.CorrelationID)
	assert.Equal(t, "th-1", got.Message.ThreadID)
	// History marks user-sent items direction "incoming".
	assert.Equal(t, domain.DirectionOutbound, got.Message.Direction)
}

func TestNormalizePushWrapper(t *testing.T) {
	raw := &rtms.RawEvent{
		PayloadType: rtms.PayloadTypeSentToUser,
		Thread:      &rtms.RawThread{ID: "th-1"},
		Event: &rtms.RawEventBody{
			TID:     "t-2",
			Message: &rtms.RawEventMessage{Text: "from agent"},
		},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Message)
	assert.Equal(t, "from agent", got.Message.Text)
	assert.Equal(t, "t-2", got.Message.CorrelationID)
	assert.Equal(t, domain.DirectionInbound, got.Message.Direction)
}

func TestNormalizeTopLevelWinsOverWrapper(t *testing.T) {
	raw := &rtms.RawEvent{
		TID:     "top",
		Message: "top text",
		Event: &rtms.RawEventBody{
			TID:     "nested",
			Message: &rtms.RawEventMessage{Text: "nested text"},
		},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Message)
	assert.Equal(t, "top text", got.Message.Text)
	assert.Equal(t, "top", got.Message.CorrelationID)
}

func TestNormalizeSystemEvents(t *testing.T) {
	tests := []struct {
		name  string
		raw   *rtms.RawEvent
		kind  domain.SystemEventKind
		agent string
	}{
		{
			name: "typing sentinel on",
			raw: &rtms.RawEvent{
				Message: rtms.SentinelTyping,
				Extras:  &rtms.RawExtras{CustomTags: map[string]string{"typing": "typing_on"}},
			},
			kind: domain.SystemTypingOn,
		},
		{
			name: "typing sentinel off",
			raw: &rtms.RawEvent{
				Message: rtms.SentinelTyping,
				Extras:  &rtms.RawExtras{CustomTags: map[string]string{"typing": "typing_off"}},
			},
			kind: domain.SystemTypingOff,
		},
		{
			name: "typing start payload type",
			raw:  &rtms.RawEvent{PayloadType: rtms.PayloadTypeTypingStart},
			kind: domain.SystemTypingOn,
		},
		{
			name: "agent assigned sentinel",
			raw: &rtms.RawEvent{
				Message: rtms.SentinelAgentAssigned,
				Extras:  &rtms.RawExtras{CustomTags: map[string]string{"agent": "Dana"}},
			},
			kind:  domain.SystemAgentAssigned,
			agent: "Dana",
		},
		{
			name: "participant joined",
			raw: &rtms.RawEvent{
				Type:        rtms.EventTypeParticipantJoined,
				Participant: &rtms.RawParticipant{Name: "Sam"},
			},
			kind:  domain.SystemAgentAssigned,
			agent: "Sam",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw)
			require.NotNil(t, got.System)
			assert.Nil(t, got.Message)
			assert.Equal(t, tc.kind, got.System.Kind)
			if tc.agent != "" {
				assert.Equal(t, tc.agent, got.System.AgentName)
			}
		})
	}
}

func TestNormalizeThreadClose(t *testing.T) {
	got := Normalize(&rtms.RawEvent{
		PayloadType: rtms.PayloadTypeCloseThread,
		Thread:      &rtms.RawThread{ID: "th-1"},
	})
	assert.True(t, got.ThreadClosed)
	assert.Nil(t, got.Message)

	got = Normalize(&rtms.RawEvent{
		Message: "last word",
		Thread:  &rtms.RawThread{ID: "th-1", Status: "Closed"},
	})
	assert.True(t, got.ThreadClosed)
	require.NotNil(t, got.Message)
}

func TestNormalizeFormTemplate(t *testing.T) {
	raw := &rtms.RawEvent{
		TID: "t-3",
		Media: []rtms.RawMedia{{
			TemplateType: rtms.TemplateTypeForm,
			TemplateID:   "contact",
			Payload: &rtms.RawTemplatePayload{
				Title: "Contact us",
				Fields: []rtms.RawFormField{
					{Name: "email", Label: "Email", Type: "text", Required: true},
				},
			},
		}},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Message)
	require.NotNil(t, got.Message.Form)
	assert.Equal(t, "contact", got.Message.Form.TemplateID)
	assert.Equal(t, "Contact us", got.Message.Form.Title)
	require.Len(t, got.Message.Form.Fields, 1)
	assert.Equal(t, "email", got.Message.Form.Fields[0].Name)
	assert.Empty(t, got.Message.Attachments)
	assert.True(t, got.Message.HasMedia())
}

func TestNormalizeQuickReplies(t *testing.T) {
	raw := &rtms.RawEvent{
		TID: "t-4",
		QuickReplies: &rtms.RawQuickReplies{
			Reference: "ref-1",
			Options: []rtms.RawOption{
				{Identifier: "opt-a", Title: "Yes"},
				{Identifier: "opt-b", Title: "Call me", Payload: &rtms.RawOptionPayload{
					Description: "make a call using webex calling",
					Destination: "sip:help@example.com",
					AccessToken: "tok",
				}},
			},
		},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Message)
	require.NotNil(t, got.Message.QuickReplies)
	assert.Equal(t, "ref-1", got.Message.QuickReplies.Reference)
	require.Len(t, got.Message.QuickReplies.Options, 2)
	require.NotNil(t, got.Message.QuickReplies.Options[1].Payload)
	assert.Equal(t, "sip:help@example.com", got.Message.QuickReplies.Options[1].Payload.Destination)
	assert.True(t, got.Message.Interactivity())
}

func TestNormalizeEmptyEvent(t *testing.T) {
	got := Normalize(&rtms.RawEvent{Thread: &rtms.RawThread{ID: "th-1"}})
	assert.True(t, got.Empty() || got.Message == nil)
	assert.Nil(t, got.Message)
	assert.Nil(t, got.System)
}
