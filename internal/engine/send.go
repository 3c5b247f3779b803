package engine

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/calling"
	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/events"
	"github.com/spec-kit/chat-widget/internal/observability"
	"github.com/spec-kit/chat-widget/internal/rtms"
	"github.com/spec-kit/chat-widget/pkg/util"
)

// SendMessage sends a plain text message. The bubble renders optimistically
// before the network call; a failure flips it to the failed state instead
// of removing it so the user can retry.
func (s *Session) SendMessage(ctx context.Context, threadID, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, util.NewValidationError("message text required", nil)
	}
	return s.sendText(ctx, threadID, text, false)
}

// sendText is the shared text-send path. skipUI suppresses the optimistic
// bubble; the hidden auto-start message uses it.
func (s *Session) sendText(ctx context.Context, threadID, text string, skipUI bool) (*domain.Message, error) {
	var msg *domain.Message
	var threadErr error
	if err := s.run(func() {
		if s.store.Get(threadID) == nil {
			threadErr = util.NewNotFound("thread", map[string]any{"thread_id": threadID})
			return
		}
		msg = &domain.Message{
			ClientMessageID: uuid.NewString(),
			ThreadID:        threadID,
			Text:            text,
			Direction:       domain.DirectionOutbound,
			CreatedAt:       time.Now(),
			Optimistic:      true,
			Hidden:          skipUI,
		}
		s.ledger.Mark(threadID, DedupKey(msg))
		s.store.Append(threadID, msg, true)
		if !skipUI {
			s.publish(events.EventMessageRendered, threadID, events.MessageRenderedPayload{
				Message:     *msg,
				Incremental: true,
			})
			s.publishThreadList()
		}
	}); err != nil {
		return nil, err
	}
	if threadErr != nil {
		return nil, threadErr
	}

	resp, err := s.api.SendMessage(ctx, threadID, text, nil, rtms.SendOptions{
		ClientMessageID: msg.ClientMessageID,
	})
	return msg, s.completeSend(threadID, msg, resp, err)
}

// SendAttachment sends a message carrying uploaded media, optionally with a
// caption. No optimistic bubble renders; the delivery echo carries the
// media and passes suppression.
func (s *Session) SendAttachment(ctx context.Context, threadID, caption string, attachments []domain.Attachment) error {
	if len(attachments) == 0 {
		return util.NewValidationError("attachment required", nil)
	}
	var threadErr error
	if err := s.run(func() {
		if s.store.Get(threadID) == nil {
			threadErr = util.NewNotFound("thread", map[string]any{"thread_id": threadID})
		}
	}); err != nil {
		return err
	}
	if threadErr != nil {
		return threadErr
	}

	media := make([]rtms.RawMedia, 0, len(attachments))
	for _, a := range attachments {
		media = append(media, rtms.RawMedia{ContentType: a.ContentType, URL: a.URL})
	}
	if _, err := s.api.SendMessage(ctx, threadID, caption, media, rtms.SendOptions{}); err != nil {
		s.metrics.RecordEngine(observability.CounterSendFailures)
		return util.NewUpstreamError("send", err)
	}
	s.metrics.RecordEngine(observability.CounterMessagesSent)
	return nil
}

// RetrySend re-sends a failed optimistic message identified by its client
// message id.
func (s *Session) RetrySend(ctx context.Context, threadID, clientMessageID string) error {
	var msg *domain.Message
	if err := s.run(func() {
		t := s.store.Get(threadID)
		if t == nil {
			return
		}
		for _, m := range t.Messages {
			if m.ClientMessageID == clientMessageID && m.Failed {
				msg = m
				return
			}
		}
	}); err != nil {
		return err
	}
	if msg == nil {
		return util.NewNotFound("failed message", map[string]any{"client_message_id": clientMessageID})
	}

	resp, err := s.api.SendMessage(ctx, threadID, msg.Text, nil, rtms.SendOptions{
		ClientMessageID: msg.ClientMessageID,
	})
	return s.completeSend(threadID, msg, resp, err)
}

// completeSend applies the network outcome to the optimistic entry.
func (s *Session) completeSend(threadID string, msg *domain.Message, resp *rtms.RawEvent, sendErr error) error {
	if sendErr != nil {
		s.metrics.RecordEngine(observability.CounterSendFailures)
		s.logger.Warn("send failed", zap.String("thread_id", threadID), zap.Error(sendErr))
		_ = s.run(func() {
			msg.Failed = true
			s.publish(events.EventSendFailed, threadID, events.SendFailedPayload{
				ClientMessageID: msg.ClientMessageID,
				Reason:          sendErr.Error(),
			})
		})
		return util.NewUpstreamError("send", sendErr)
	}
	s.metrics.RecordEngine(observability.CounterMessagesSent)
	return s.run(func() {
		msg.Failed = false
		msg.Optimistic = false
		if resp != nil && resp.TID != "" {
			msg.CorrelationID = resp.TID
			s.ledger.Mark(threadID, DedupKey(msg))
		}
	})
}

// SubmitQuickReply answers a quick-reply prompt. The question is located by
// its correlation id; a call-action option dials instead of answering and
// leaves the prompt standing.
func (s *Session) SubmitQuickReply(ctx context.Context, threadID, questionTID, optionIdentifier string) error {
	var question *domain.Message
	var option domain.QuickReplyOption
	var lookupErr error
	if err := s.run(func() {
		t := s.store.Get(threadID)
		if t == nil {
			lookupErr = util.NewNotFound("thread", map[string]any{"thread_id": threadID})
			return
		}
		for i := len(t.Messages) - 1; i >= 0; i-- {
			m := t.Messages[i]
			if m.CorrelationID == questionTID && m.QuickReplies != nil {
				question = m
				break
			}
		}
		if question == nil {
			lookupErr = util.NewNotFound("quick reply prompt", map[string]any{"tid": questionTID})
			return
		}
		found, ok := optionByIdentifier(question.QuickReplies, optionIdentifier)
		if !ok {
			lookupErr = util.NewValidationError("unknown option", map[string]any{"identifier": optionIdentifier})
			return
		}
		option = found
	}); err != nil {
		return err
	}
	if lookupErr != nil {
		return lookupErr
	}

	if calling.IsCallOption(option) {
		return s.dial(ctx, option)
	}

	if _, err := s.api.SendMessage(ctx, threadID, option.Title, nil, rtms.SendOptions{
		RelatedTID: questionTID,
		Interactive: &rtms.RawInteractiveData{
			Type:       option.Type,
			Identifier: option.Identifier,
			Title:      option.Title,
			Reference:  question.QuickReplies.Reference,
			URL:        option.URL,
		},
	}); err != nil {
		s.metrics.RecordEngine(observability.CounterSendFailures)
		return util.NewUpstreamError("quick reply send", err)
	}
	s.metrics.RecordEngine(observability.CounterMessagesSent)

	return s.run(func() {
		question.Answered = true
		question.SelectedOptionID = option.Identifier
		if s.activeThreadID == threadID && s.focused {
			s.publish(events.EventMessageRendered, threadID, events.MessageRenderedPayload{
				Message:     *question,
				Incremental: true,
			})
		}
		s.refreshInput()
	})
}

// SubmitForm answers the nearest unanswered form prompt carrying the
// template id. Submitted values merge into the prompt so the rendered form
// shows what was entered.
func (s *Session) SubmitForm(ctx context.Context, threadID, templateID string, values map[string]string) error {
	var question *domain.Message
	var lookupErr error
	if err := s.run(func() {
		t := s.store.Get(threadID)
		if t == nil {
			lookupErr = util.NewNotFound("thread", map[string]any{"thread_id": threadID})
			return
		}
		for i := len(t.Messages) - 1; i >= 0; i-- {
			m := t.Messages[i]
			if !m.Outbound() && m.Form != nil && !m.Answered && m.Form.TemplateID == templateID {
				question = m
				break
			}
		}
		if question == nil {
			lookupErr = util.NewNotFound("form prompt", map[string]any{"template_id": templateID})
		}
	}); err != nil {
		return err
	}
	if lookupErr != nil {
		return lookupErr
	}

	fields := make([]rtms.RawFormField, 0, len(values))
	for name, value := range values {
		fields = append(fields, rtms.RawFormField{Name: name, Value: value})
	}
	media := []rtms.RawMedia{{
		TemplateType: rtms.TemplateTypeForm,
		TemplateID:   templateID,
		Payload:      &rtms.RawTemplatePayload{Title: question.Form.Title, Fields: fields},
	}}
	if _, err := s.api.SendMessage(ctx, threadID, "", media, rtms.SendOptions{}); err != nil {
		s.metrics.RecordEngine(observability.CounterSendFailures)
		return util.NewUpstreamError("form send", err)
	}
	s.metrics.RecordEngine(observability.CounterMessagesSent)

	return s.run(func() {
		for fi := range question.Form.Fields {
			if v, ok := values[question.Form.Fields[fi].Name]; ok && v != "" {
				question.Form.Fields[fi].Value = v
			}
		}
		question.Answered = true
		if s.activeThreadID == threadID && s.focused {
			s.publish(events.EventMessageRendered, threadID, events.MessageRenderedPayload{
				Message:     *question,
				Incremental: true,
			})
		}
		s.refreshInput()
	})
}

// dial starts a call with the credentials embedded in the option payload.
func (s *Session) dial(ctx context.Context, option domain.QuickReplyOption) error {
	if err := s.dialer.Register(ctx, option.Payload.AccessToken); err != nil {
		return util.NewUpstreamError("call registration", err)
	}
	handle, err := s.dialer.Dial(ctx, option.Payload.Destination, option.Payload.AccessToken)
	if err != nil {
		return util.NewUpstreamError("dial", err)
	}
	go func() {
		for ev := range handle.Events() {
			s.logger.Info("call state", zap.String("state", string(ev.State)), zap.Error(ev.Err))
		}
	}()
	return nil
}

// CreateThread creates a conversation and places it on top of the list.
func (s *Session) CreateThread(ctx context.Context) (*ThreadSummary, error) {
	thread, err := s.createThread(ctx)
	if err != nil {
		return nil, err
	}
	summary := ThreadSummary{ID: thread.ID, Title: thread.Title, Status: thread.Status}
	return &summary, nil
}

func (s *Session) createThread(ctx context.Context) (*domain.Thread, error) {
	raw, err := s.api.CreateThread(ctx)
	if err != nil {
		return nil, util.NewUpstreamError("create thread", err)
	}
	thread := threadFromRaw(raw)
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = time.Now()
	}
	if err := s.run(func() {
		s.store.Prepend(thread)
		s.publishThreadList()
	}); err != nil {
		return nil, err
	}
	return thread, nil
}

// DeleteThread removes a thread optimistically; the vendor delete is best
// effort and a failure only logs, matching the disposable nature of guest
// conversations.
func (s *Session) DeleteThread(ctx context.Context, threadID string) error {
	var threadErr error
	if err := s.run(func() {
		if s.store.Get(threadID) == nil {
			threadErr = util.NewNotFound("thread", map[string]any{"thread_id": threadID})
			return
		}
		s.store.Remove(threadID)
		if s.activeThreadID == threadID {
			s.activeThreadID = ""
			s.focused = false
		}
		s.publishThreadList()
	}); err != nil {
		return err
	}
	if threadErr != nil {
		return threadErr
	}

	if err := s.api.DeleteThread(ctx, threadID); err != nil {
		s.logger.Warn("vendor thread delete failed", zap.String("thread_id", threadID), zap.Error(err))
	}
	return nil
}

// Upload stores a file with the vendor and returns the asset reference for
// a follow-up SendAttachment.
func (s *Session) Upload(ctx context.Context, fileName, contentType string, r io.Reader) (*rtms.Asset, error) {
	asset, err := s.api.UploadFile(ctx, fileName, contentType, r)
	if err != nil {
		return nil, util.NewUpstreamError("upload", err)
	}
	return asset, nil
}
