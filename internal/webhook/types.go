package webhook

import (
	"time"
)

type EventType string

// Bulk job notifications. Session lifecycle names come from the session package.
const (
	EventBulkCompleted EventType = "bulk.completed"
)

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

type WebhookConfig struct {
	URL    string
	Secret string
	// Workers is the number of concurrent deliveries.
	Workers    int
	RetryLimit int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
	QueueSize    int
	Timeout      time.Duration
	// AllowInsecure permits plain HTTP and private network targets.
	AllowInsecure bool
}

type WebhookEvent struct {
	EventType EventType              `json:"event_type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
