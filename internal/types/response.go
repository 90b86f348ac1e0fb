package types

import (
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

type ResponseInitialize struct {
	SessionID string         `json:"session_id"`
	Status    session.Status `json:"status"`
	QR        string         `json:"qr,omitempty"`
	QRImage   string         `json:"qr_image,omitempty"`
	Token     string         `json:"token,omitempty"`
}

type ResponseReconnect struct {
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
}

type ResponseStatus struct {
	session.StatusInfo
	QRImage string `json:"qr_image,omitempty"`
}

type ResponseBulkAccepted struct {
	JobID string `json:"job_id"`
	Total int    `json:"total"`
}

type ResponseGroupID struct {
	GroupID string `json:"group_id"`
}

type ResponseSessionList struct {
	Total    int                    `json:"total"`
	ByStatus map[session.Status]int `json:"by_status"`
	Sessions []session.StatusInfo   `json:"sessions"`
}

type ResponseCleanup struct {
	Cleaned int `json:"cleaned"`
}
