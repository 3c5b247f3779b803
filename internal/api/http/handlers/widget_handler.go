package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-widget/internal/api/dto"
	"github.com/spec-kit/chat-widget/internal/auth"
	"github.com/spec-kit/chat-widget/internal/domain"
	"github.com/spec-kit/chat-widget/internal/engine"
	"github.com/spec-kit/chat-widget/internal/events"
	"github.com/spec-kit/chat-widget/internal/session"
	"github.com/spec-kit/chat-widget/pkg/util"
)

const eventPollWait = 25 * time.Second

// WidgetHandler exposes the widget view surface: session bootstrap, thread
// navigation, sending, uploads and the event long poll.
type WidgetHandler struct {
	manager *session.Manager
	tokens  *auth.TokenManager
}

// NewWidgetHandler constructs handler.
func NewWidgetHandler(manager *session.Manager, tokens *auth.TokenManager) *WidgetHandler {
	return &WidgetHandler{manager: manager, tokens: tokens}
}

// Bootstrap POST /widget/sessions.
func (h *WidgetHandler) Bootstrap(c *fiber.Ctx) error {
	var req dto.BootstrapRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	boot, err := h.manager.Bootstrap(c.UserContext(), session.BootstrapInput{
		BrowserKey:         req.BrowserKey,
		AppID:              req.AppID,
		ClientSecret:       req.ClientSecret,
		SiteURL:            req.SiteURL,
		APIBaseURL:         req.APIBaseURL,
		RealtimeHost:       req.RealtimeHost,
		Language:           req.Language,
		StartMessage:       req.StartMessage,
		StartMessageHidden: req.StartMessageHidden,
		StartPolicy:        req.StartPolicy,
	})
	if err != nil {
		return err
	}

	token, expiresAt, err := h.tokens.GenerateToken(boot.Session.ID(), boot.Session.Identity().UserID)
	if err != nil {
		h.manager.Close(boot.Session.ID())
		return util.NewInternalError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.BootstrapResponse{
		SessionID: boot.Session.ID(),
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Threads:   boot.Threads,
	}})
}

// EndSession DELETE /widget/sessions.
func (h *WidgetHandler) EndSession(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	h.manager.Close(sess.ID())
	return c.SendStatus(fiber.StatusNoContent)
}

// ListThreads GET /widget/threads.
func (h *WidgetHandler) ListThreads(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	threads, err := sess.Threads()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": threads})
}

// CreateThread POST /widget/threads.
func (h *WidgetHandler) CreateThread(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	summary, err := sess.CreateThread(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": summary})
}

// OpenThread POST /widget/threads/:id/open.
func (h *WidgetHandler) OpenThread(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	view, err := sess.OpenThread(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// CloseThreadView POST /widget/threads/:id/close.
func (h *WidgetHandler) CloseThreadView(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.CloseThreadView(); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteThread DELETE /widget/threads/:id.
func (h *WidgetHandler) DeleteThread(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.DeleteThread(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendMessage POST /widget/messages.
func (h *WidgetHandler) SendMessage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ThreadID == "" || strings.TrimSpace(req.Text) == "" {
		return util.NewValidationError("thread_id and text required", nil)
	}
	msg, err := sess.SendMessage(c.UserContext(), req.ThreadID, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.MessageResponse{
		ClientMessageID: msg.ClientMessageID,
		Delivered:       true,
	}})
}

// SendAttachment POST /widget/attachments.
func (h *WidgetHandler) SendAttachment(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.SendAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ThreadID == "" || len(req.Attachments) == 0 {
		return util.NewValidationError("thread_id and attachments required", nil)
	}
	attachments := make([]domain.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, domain.Attachment{ContentType: a.ContentType, URL: a.URL})
	}
	if err := sess.SendAttachment(c.UserContext(), req.ThreadID, req.Caption, attachments); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.MessageResponse{Delivered: true}})
}

// RetrySend POST /widget/messages/retry.
func (h *WidgetHandler) RetrySend(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.RetryRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ThreadID == "" || req.ClientMessageID == "" {
		return util.NewValidationError("thread_id and client_message_id required", nil)
	}
	if err := sess.RetrySend(c.UserContext(), req.ThreadID, req.ClientMessageID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{ClientMessageID: req.ClientMessageID, Delivered: true}})
}

// SubmitQuickReply POST /widget/quick-replies.
func (h *WidgetHandler) SubmitQuickReply(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.QuickReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ThreadID == "" || req.QuestionID == "" || req.OptionID == "" {
		return util.NewValidationError("thread_id, question_id, option_id required", nil)
	}
	if err := sess.SubmitQuickReply(c.UserContext(), req.ThreadID, req.QuestionID, req.OptionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SubmitForm POST /widget/forms.
func (h *WidgetHandler) SubmitForm(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dto.FormSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.ThreadID == "" || req.TemplateID == "" {
		return util.NewValidationError("thread_id and template_id required", nil)
	}
	if err := sess.SubmitForm(c.UserContext(), req.ThreadID, req.TemplateID, req.Values); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Upload POST /widget/uploads.
func (h *WidgetHandler) Upload(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return util.NewValidationError("file required", nil)
	}
	file, err := header.Open()
	if err != nil {
		return util.NewValidationError("unreadable file", nil)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	asset, err := sess.Upload(c.UserContext(), header.Filename, contentType, file)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.UploadResponse{
		URL:      asset.URL,
		MimeType: asset.MimeType,
	}})
}

// Events GET /widget/events. Long poll: returns immediately when events are
// buffered, otherwise waits up to eventPollWait.
func (h *WidgetHandler) Events(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	feed, err := h.manager.Feed(principal.SessionID)
	if err != nil {
		return err
	}
	drained := feed.Drain(c.UserContext(), eventPollWait)
	if drained == nil {
		drained = []events.Event{}
	}
	return c.JSON(fiber.Map{"data": drained})
}

func (h *WidgetHandler) session(c *fiber.Ctx) (*engine.Session, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, util.NewUnauthorized("session required")
	}
	return h.manager.Get(principal.SessionID)
}
