package message

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/internal/types"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/pkg/whatsapp"
)

type Dispatcher interface {
	SendOne(ctx context.Context, sessionID string, recipient string, content session.Content) error
	SendBulk(ctx context.Context, job dispatch.Job) dispatch.Result
	CheckNumbers(ctx context.Context, sessionID string, recipients []string) (dispatch.Partition, error)
}

type Jobs interface {
	Start(job dispatch.Job) dispatch.JobState
	Get(id string) (dispatch.JobState, error)
}

type Sessions interface {
	StatusOf(id string) (session.StatusInfo, error)
}

type Handler struct {
	sessions      Sessions
	dispatcher    Dispatcher
	jobs          Jobs
	maxRecipients int
}

func NewHandler(sessions Sessions, dispatcher Dispatcher, jobs Jobs, maxRecipients int) *Handler {
	return &Handler{
		sessions:      sessions,
		dispatcher:    dispatcher,
		jobs:          jobs,
		maxRecipients: maxRecipients,
	}
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: failed parse body request", validation.ErrValidation)
	}
	return nil
}

func (h *Handler) sendOne(c *fiber.Ctx, sessionID string, number string, content session.Content) error {
	entry := log.Session(sessionID, "send").WithField("recipient", pkgWhatsApp.MaskJID(number))

	if err := h.dispatcher.SendOne(c.UserContext(), sessionID, number, content); err != nil {
		entry.WithError(err).Warn("Failed to send message")
		return err
	}

	entry.WithField("media", content.IsMedia()).Info("Message sent")
	return nil
}

// SendText
// @Summary     Send Text Message
// @Description Send a text message to one recipient
// @Tags        Message
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestSendText true "Text message"
// @Success     200
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Failure     429 {object} router.Response
// @Router      /api/messages/text [post]
func (h *Handler) SendText(c *fiber.Ctx) error {
	var req typWhatsApp.RequestSendText
	if err := parseBody(c, &req); err != nil {
		return router.ResponseError(c, err)
	}

	for _, err := range []error{
		validation.ValidateSessionID(req.SessionID),
		validation.ValidateRecipient(req.Number),
		validation.ValidateMessage("message", req.Message),
	} {
		if err != nil {
			return router.ResponseError(c, err)
		}
	}

	if err := h.sendOne(c, req.SessionID, req.Number, session.Content{Text: req.Message}); err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccess(c, "Text message sent successfully")
}

// SendImage
// @Summary     Send Image Message
// @Description Send an image fetched from a URL, with an optional caption, to one recipient
// @Tags        Message
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestSendImage true "Image message"
// @Success     200
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Failure     429 {object} router.Response
// @Router      /api/messages/image [post]
func (h *Handler) SendImage(c *fiber.Ctx) error {
	var req typWhatsApp.RequestSendImage
	if err := parseBody(c, &req); err != nil {
		return router.ResponseError(c, err)
	}

	checks := []error{
		validation.ValidateSessionID(req.SessionID),
		validation.ValidateRecipient(req.Number),
		validation.ValidateURL(req.ImageURL),
	}
	if strings.TrimSpace(req.Caption) != "" {
		checks = append(checks, validation.ValidateMessage("caption", req.Caption))
	}
	for _, err := range checks {
		if err != nil {
			return router.ResponseError(c, err)
		}
	}

	content := session.Content{MediaURL: req.ImageURL, Caption: req.Caption}
	if err := h.sendOne(c, req.SessionID, req.Number, content); err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccess(c, "Image message sent successfully")
}

func (h *Handler) bulkContent(req typWhatsApp.RequestSendBulk) (session.Content, error) {
	if strings.TrimSpace(req.ImageURL) != "" {
		if err := validation.ValidateURL(req.ImageURL); err != nil {
			return session.Content{}, err
		}
		caption := req.Caption
		if strings.TrimSpace(caption) == "" {
			caption = req.Message
		}
		if strings.TrimSpace(caption) != "" {
			if err := validation.ValidateMessage("caption", caption); err != nil {
				return session.Content{}, err
			}
		}
		return session.Content{MediaURL: req.ImageURL, Caption: caption}, nil
	}

	if strings.TrimSpace(req.Message) == "" {
		return session.Content{}, fmt.Errorf("%w: message or image_url is required", validation.ErrValidation)
	}
	if err := validation.ValidateMessage("message", req.Message); err != nil {
		return session.Content{}, err
	}
	return session.Content{Text: req.Message}, nil
}

// SendBulk
// @Summary     Send Bulk Messages
// @Description Send one message to many recipients in paced batches. With async the job runs in the background.
// @Tags        Message
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestSendBulk true "Bulk message"
// @Success     200 {object} dispatch.Result
// @Success     202 {object} typWhatsApp.ResponseBulkAccepted
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Router      /api/messages/bulk [post]
func (h *Handler) SendBulk(c *fiber.Ctx) error {
	var req typWhatsApp.RequestSendBulk
	if err := parseBody(c, &req); err != nil {
		return router.ResponseError(c, err)
	}

	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		return router.ResponseError(c, err)
	}
	if err := validation.ValidateRecipients(req.Numbers, h.maxRecipients); err != nil {
		return router.ResponseError(c, err)
	}
	content, err := h.bulkContent(req)
	if err != nil {
		return router.ResponseError(c, err)
	}

	if _, err := h.sessions.StatusOf(req.SessionID); err != nil {
		return router.ResponseError(c, err)
	}

	job := dispatch.Job{
		SessionID:  req.SessionID,
		Recipients: req.Numbers,
		Content:    content,
	}

	if req.Async {
		state := h.jobs.Start(job)
		return router.ResponseAcceptedWithData(c, "Bulk message job accepted", typWhatsApp.ResponseBulkAccepted{
			JobID: state.ID,
			Total: state.Total,
		})
	}

	result := h.dispatcher.SendBulk(c.UserContext(), job)
	log.Session(req.SessionID, "bulk").
		WithField("success", len(result.Success)).
		WithField("failed", len(result.Failed)).
		WithField("invalid", len(result.Invalid)).
		Info("Bulk message job completed")
	return router.ResponseSuccessWithData(c, "Bulk message processing completed", result)
}

// BulkStatus
// @Summary     Get Bulk Job Status
// @Description Return the progress, and once completed the result, of an asynchronous bulk job
// @Tags        Message
// @Produce     json
// @Param       job_id path string true "Job ID"
// @Success     200 {object} dispatch.JobState
// @Failure     404 {object} router.Response
// @Router      /api/messages/bulk/{job_id} [get]
func (h *Handler) BulkStatus(c *fiber.Ctx) error {
	state, err := h.jobs.Get(c.Params("job_id"))
	if err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccessWithData(c, "", state)
}

// CheckNumbers
// @Summary     Check Numbers
// @Description Partition numbers into those registered on WhatsApp and the rest
// @Tags        Message
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestCheckNumbers true "Numbers"
// @Success     200 {object} dispatch.Partition
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Router      /api/messages/check-numbers [post]
func (h *Handler) CheckNumbers(c *fiber.Ctx) error {
	var req typWhatsApp.RequestCheckNumbers
	if err := parseBody(c, &req); err != nil {
		return router.ResponseError(c, err)
	}

	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		return router.ResponseError(c, err)
	}
	if err := validation.ValidateRecipients(req.Numbers, h.maxRecipients); err != nil {
		return router.ResponseError(c, err)
	}

	partition, err := h.dispatcher.CheckNumbers(c.UserContext(), req.SessionID, req.Numbers)
	if err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccessWithData(c, "", partition)
}
