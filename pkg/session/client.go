package session

import (
	"context"
)

type EventType string

const (
	EventQR           EventType = "qr"
	EventReady        EventType = "ready"
	EventDisconnected EventType = "disconnected"
	EventAuthFailure  EventType = "auth_failure"
	EventMessage      EventType = "message"
	EventFatal        EventType = "fatal"
)

// Disconnect reasons that mean the stored credentials were revoked.
const (
	ReasonUnpaired = "UNPAIRED"
	ReasonLogout   = "LOGOUT"
)

type Event struct {
	Type   EventType
	QR     string
	Reason string
	Err    error
}

func (e Event) describe() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return e.Reason + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Reason
	}
}

// Revoking reports whether a disconnect invalidated the persisted credentials.
func (e Event) Revoking() bool {
	return e.Type == EventDisconnected && (e.Reason == ReasonUnpaired || e.Reason == ReasonLogout)
}

// Content is the payload of one outbound message: text, or one media item
// fetched from MediaURL with an optional caption.
type Content struct {
	Text     string
	MediaURL string
	Caption  string
}

func (c Content) IsMedia() bool {
	return c.MediaURL != ""
}

// Client is the per-session capability of the chat network library.
// Events must be closed once Destroy returns.
type Client interface {
	Initialize(ctx context.Context) error
	Events() <-chan Event
	SendMessage(ctx context.Context, recipient string, content Content) error
	IsRegisteredUser(ctx context.Context, recipient string) (bool, error)
	Logout(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// GroupFinder is implemented by clients able to resolve joined groups by name.
type GroupFinder interface {
	FindGroupID(ctx context.Context, name string) (string, error)
}

// Factory builds a client whose persisted artifacts live in dir. With resume
// set the client must refuse to start a new pairing.
type Factory interface {
	NewClient(id string, dir string, resume bool) (Client, error)
}
