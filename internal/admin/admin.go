package admin

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/internal/types"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/pkg/whatsapp"
)

type Sessions interface {
	List() []session.Session
	CountByStatus() map[session.Status]int
}

type Cleanup interface {
	EmergencyCleanup(reason string) int
}

type Versions interface {
	Status() pkgWhatsApp.WAVersionRefreshStatus
	Refresh(ctx context.Context, force bool) (pkgWhatsApp.WAVersionRefreshStatus, bool, error)
}

type Handler struct {
	sessions Sessions
	cleanup  Cleanup
	versions Versions
}

func NewHandler(sessions Sessions, cleanup Cleanup, versions Versions) *Handler {
	return &Handler{sessions: sessions, cleanup: cleanup, versions: versions}
}

// ListSessions
// @Summary     List Sessions
// @Description List every live session with its status (Admin only)
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Success     200 {object} typWhatsApp.ResponseSessionList
// @Failure     401 {object} router.Response
// @Router      /api/admin/sessions [get]
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	sessions := h.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	infos := make([]session.StatusInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}

	return router.ResponseSuccessWithData(c, "", typWhatsApp.ResponseSessionList{
		Total:    len(infos),
		ByStatus: h.sessions.CountByStatus(),
		Sessions: infos,
	})
}

// CleanupSessions
// @Summary     Cleanup All Sessions
// @Description Destroy every session and delete its persisted data (Admin only)
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Success     200 {object} typWhatsApp.ResponseCleanup
// @Failure     401 {object} router.Response
// @Router      /api/admin/sessions/cleanup [post]
func (h *Handler) CleanupSessions(c *fiber.Ctx) error {
	cleaned := h.cleanup.EmergencyCleanup("admin request")
	log.Print(c).WithField("cleaned", cleaned).Warn("All sessions cleaned up by admin")
	return router.ResponseSuccessWithData(c, "All sessions cleaned up", typWhatsApp.ResponseCleanup{Cleaned: cleaned})
}

// GetWhatsAppWebVersion
// @Summary     Get WhatsApp Web Version
// @Description Show the WhatsApp Web version advertised by new clients (Admin only)
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Success     200 {object} pkgWhatsApp.WAVersionRefreshStatus
// @Router      /api/admin/whatsapp/version [get]
func (h *Handler) GetWhatsAppWebVersion(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "", h.versions.Status())
}

// RefreshWhatsAppWebVersion
// @Summary     Refresh WhatsApp Web Version
// @Description Fetch the latest WhatsApp Web version and apply it to new clients (Admin only)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       body body typWhatsApp.RequestVersionRefresh false "Refresh options"
// @Success     200 {object} pkgWhatsApp.WAVersionRefreshStatus
// @Failure     502 {object} router.Response
// @Router      /api/admin/whatsapp/version/refresh [post]
func (h *Handler) RefreshWhatsAppWebVersion(c *fiber.Ctx) error {
	var req typWhatsApp.RequestVersionRefresh
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return router.ResponseBadRequest(c, "Failed parse body request")
		}
	}
	if c.QueryBool("force") {
		req.Force = true
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	status, refreshed, err := h.versions.Refresh(ctx, req.Force)
	if err != nil {
		return router.ResponseBadGateway(c, "WA Web version refresh failed: "+err.Error())
	}

	message := "WA Web version refreshed"
	if !refreshed {
		message = "WA Web version refreshed recently, skipped"
	}
	return router.ResponseSuccessWithData(c, message, status)
}
