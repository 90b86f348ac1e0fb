package group

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/internal/types"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/validation"
)

type Handler struct {
	sessions dispatch.Sessions
}

func NewHandler(sessions dispatch.Sessions) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) findGroup(ctx context.Context, sessionID string, name string) (string, error) {
	client, status, err := h.sessions.Client(sessionID)
	if err != nil {
		return "", err
	}
	if status != session.StatusConnected {
		return "", fmt.Errorf("%w: status %s", session.ErrNotReady, status)
	}

	finder, ok := client.(session.GroupFinder)
	if !ok {
		return "", fiber.NewError(fiber.StatusNotImplemented, "group lookup is not supported by this client")
	}

	groupID, err := finder.FindGroupID(ctx, name)
	if err != nil {
		return "", err
	}
	_ = h.sessions.Touch(sessionID)
	return groupID, nil
}

// GetGroupID
// @Summary     Get Group ID
// @Description Find a joined group by its exact name and return its id
// @Tags        Group
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestGroupID true "Group lookup"
// @Success     200 {object} typWhatsApp.ResponseGroupID
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Router      /api/groups/get-group-id [post]
func (h *Handler) GetGroupID(c *fiber.Ctx) error {
	var req typWhatsApp.RequestGroupID
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		return router.ResponseError(c, err)
	}
	if err := validation.ValidateGroupName(req.GroupName); err != nil {
		return router.ResponseError(c, err)
	}

	groupID, err := h.findGroup(c.UserContext(), req.SessionID, req.GroupName)
	if err != nil {
		return router.ResponseError(c, err)
	}

	log.Session(req.SessionID, "group").WithField("group_name", req.GroupName).Info("Group id resolved")
	return router.ResponseSuccessWithData(c, "", typWhatsApp.ResponseGroupID{GroupID: groupID})
}
