package session

// Notification names published for lifecycle changes.
const (
	NotifyQR           = "session.qr"
	NotifyConnected    = "session.connected"
	NotifyDisconnected = "session.disconnected"
	NotifyIdle         = "session.idle"
	NotifyLoggedOut    = "session.logged_out"
	NotifyCleaned      = "session.cleaned"
	NotifyFailed       = "session.failed"
)

// Notifier receives lifecycle notifications. Implementations must not block.
type Notifier interface {
	Notify(sessionID string, event string, data map[string]interface{})
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, string, map[string]interface{}) {}
