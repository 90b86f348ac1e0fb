package router

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/validation"
)

var errorStatuses = []struct {
	err  error
	code int
}{
	{validation.ErrValidation, http.StatusBadRequest},
	{session.ErrInvalidRecipient, http.StatusBadRequest},
	{session.ErrMediaType, http.StatusBadRequest},
	{session.ErrMediaTooLarge, http.StatusRequestEntityTooLarge},
	{session.ErrMediaFetch, http.StatusBadGateway},
	{session.ErrInvalidID, http.StatusBadRequest},
	{session.ErrNotFound, http.StatusNotFound},
	{dispatch.ErrJobNotFound, http.StatusNotFound},
	{session.ErrGroupNotFound, http.StatusNotFound},
	{session.ErrExists, http.StatusConflict},
	{session.ErrPairingRequired, http.StatusConflict},
	{session.ErrNotReady, http.StatusConflict},
	{ratelimit.ErrLimited, http.StatusTooManyRequests},
	{ratelimit.ErrTimeout, http.StatusTooManyRequests},
	{session.ErrAuthFailure, http.StatusBadGateway},
	{session.ErrTransport, http.StatusBadGateway},
	{session.ErrClosed, http.StatusServiceUnavailable},
}

// ErrorStatus maps a domain error to its HTTP status code.
func ErrorStatus(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return http.StatusInternalServerError
}
