package domain

import (
	"encoding/json"
	"time"
)

// Delivery attempt statuses
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// DeliveryAttempt is one POST of an event to a webhook.
type DeliveryAttempt struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	WebhookID      string    `json:"webhook_id"`
	EventType      string    `json:"event_type"`
	AttemptNumber  int       `json:"attempt_number"`
	Status         string    `json:"status"`
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ResponseBody   *string   `json:"response_body,omitempty"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeadLetter is an event a webhook never accepted.
type DeadLetter struct {
	ID             string          `json:"id"`
	MessageID      string          `json:"message_id"`
	WebhookID      string          `json:"webhook_id"`
	Payload        json.RawMessage `json:"payload"`
	TotalAttempts  int             `json:"total_attempts"`
	LastError      *string         `json:"last_error,omitempty"`
	LastHTTPStatus *int            `json:"last_http_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy     *string         `json:"resolved_by,omitempty"`
}
