package session

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	typWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/internal/types"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/auth"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
	pkgSession "github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/pkg/whatsapp"
)

// Lifecycle is the subset of the session controller served over HTTP.
type Lifecycle interface {
	Initialize(ctx context.Context) (pkgSession.InitResult, error)
	Reconnect(ctx context.Context, id string) (bool, error)
	Logout(ctx context.Context, id string) error
	Status(id string) (pkgSession.StatusInfo, error)
}

type Handler struct {
	lifecycle Lifecycle
	// initTimeout bounds how long initialize and reconnect wait for a QR code
	// or a connection.
	initTimeout time.Duration
}

func NewHandler(lifecycle Lifecycle, initTimeout time.Duration) *Handler {
	if initTimeout <= 0 {
		initTimeout = time.Minute
	}
	return &Handler{lifecycle: lifecycle, initTimeout: initTimeout}
}

func sessionToken(c *fiber.Ctx, id string) string {
	token, err := auth.GenerateSessionToken(id)
	if err != nil {
		if !errors.Is(err, auth.ErrTokensDisabled) {
			log.Print(c).WithError(err).Warn("Failed to sign session token")
		}
		return ""
	}
	return token
}

func qrImage(c *fiber.Ctx, code string) string {
	if code == "" {
		return ""
	}
	image, err := pkgWhatsApp.EncodeQR(code)
	if err != nil {
		log.Print(c).WithError(err).Warn("Failed to encode QR code")
		return ""
	}
	return image
}

// Initialize
// @Summary     Initialize WhatsApp Session
// @Description Create a session and return its first QR code, or its status when no pairing is needed
// @Tags        WhatsApp
// @Produce     json
// @Param       X-API-Key header string true "API key"
// @Success     200 {object} typWhatsApp.ResponseInitialize
// @Failure     502 {object} router.Response
// @Router      /api/whatsapp/initialize [post]
func (h *Handler) Initialize(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.initTimeout)
	defer cancel()

	result, err := h.lifecycle.Initialize(ctx)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to initialize WhatsApp client")
		return router.ResponseError(c, err)
	}

	return router.ResponseSuccessWithData(c, "Success initialize WhatsApp client", typWhatsApp.ResponseInitialize{
		SessionID: result.ID,
		Status:    result.Status,
		QR:        result.QR,
		QRImage:   qrImage(c, result.QR),
		Token:     sessionToken(c, result.ID),
	})
}

// Reconnect
// @Summary     Reconnect WhatsApp Session
// @Description Restore a paired session from its persisted credentials
// @Tags        WhatsApp
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} typWhatsApp.ResponseReconnect
// @Failure     409 {object} router.Response
// @Router      /api/whatsapp/reconnect/{session_id} [post]
func (h *Handler) Reconnect(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("session_id"))
	if err := validation.ValidateSessionID(id); err != nil {
		return router.ResponseError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.initTimeout)
	defer cancel()

	ok, err := h.lifecycle.Reconnect(ctx, id)
	if err != nil {
		log.Session(id, "reconnect").WithError(err).Error("Failed to reconnect WhatsApp client")
		return router.ResponseError(c, err)
	}

	resp := typWhatsApp.ResponseReconnect{SessionID: id, Success: ok}
	if ok {
		resp.Token = sessionToken(c, id)
	}
	return router.ResponseSuccessWithData(c, "", resp)
}

// Logout
// @Summary     Logout WhatsApp Session
// @Description Unlink the device and delete the session data
// @Tags        WhatsApp
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200
// @Failure     404 {object} router.Response
// @Router      /api/whatsapp/logout/{session_id} [post]
func (h *Handler) Logout(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("session_id"))
	if err := validation.ValidateSessionID(id); err != nil {
		return router.ResponseError(c, err)
	}

	if err := h.lifecycle.Logout(c.UserContext(), id); err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Success logout WhatsApp client", fiber.Map{"success": true})
}

// Status
// @Summary     Get WhatsApp Session Status
// @Description Return the session status, its pending QR code while pairing and its last activity
// @Tags        WhatsApp
// @Produce     json
// @Param       session_id path string true "Session ID"
// @Success     200 {object} typWhatsApp.ResponseStatus
// @Failure     404 {object} router.Response
// @Router      /api/whatsapp/status/{session_id} [get]
func (h *Handler) Status(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("session_id"))
	if err := validation.ValidateSessionID(id); err != nil {
		return router.ResponseError(c, err)
	}

	info, err := h.lifecycle.Status(id)
	if err != nil {
		return router.ResponseError(c, err)
	}
	return router.ResponseSuccessWithData(c, "", typWhatsApp.ResponseStatus{
		StatusInfo: info,
		QRImage:    qrImage(c, info.QR),
	})
}
