package session

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrExists          = errors.New("session already registered")
	ErrAuthFailure     = errors.New("session authentication failed")
	ErrTransport       = errors.New("session transport error")
	ErrPairingRequired = errors.New("session requires pairing")
	ErrNotReady        = errors.New("session is not connected")
	ErrClosed          = errors.New("session client closed")
	ErrInvalidID       = errors.New("invalid session id")
)

// Send and lookup failures reported by clients.
var (
	ErrInvalidRecipient = errors.New("invalid WhatsApp recipient")
	ErrGroupNotFound    = errors.New("whatsapp group not found")
	ErrMediaFetch       = errors.New("error while fetching media")
	ErrMediaTooLarge    = errors.New("media exceeds the size limit")
	ErrMediaType        = errors.New("media is not an image")
)
