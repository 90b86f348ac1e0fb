package session

import (
	"time"
)

type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusConnected    Status = "CONNECTED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusIdle         Status = "IDLE"
	StatusError        Status = "ERROR"
)

// Session is a snapshot of one account binding. Values returned by the
// registry are copies; mutate through the registry only.
type Session struct {
	ID           string
	Status       Status
	LastActiveAt time.Time
	CreatedAt    time.Time
	QR           string
	Error        string

	client  Client
	resumed bool
	closing bool
}

// Client returns the live capability handle bound to the session.
func (s Session) Client() Client {
	return s.client
}

// Resumed reports whether the session was restored from persisted credentials.
func (s Session) Resumed() bool {
	return s.resumed
}

func (s Session) Info() StatusInfo {
	info := StatusInfo{
		ID:           s.ID,
		Status:       s.Status,
		LastActiveAt: s.LastActiveAt,
		Error:        s.Error,
	}
	if s.Status == StatusInitializing {
		info.QR = s.QR
	}
	return info
}

type StatusInfo struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	LastActiveAt time.Time `json:"last_active_at"`
	QR           string    `json:"qr,omitempty"`
	Error        string    `json:"error,omitempty"`
}
