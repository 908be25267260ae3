package models

import "encoding/json"

type Webhook struct {
	ID              string            `json:"id"`
	OrganizationID  string            `json:"organization_id"`
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Events          []string          `json:"events"` // JSON array in DB
	Secret          string            `json:"-"`
	SecretPrefix    string            `json:"secret_prefix"`
	Headers         map[string]string `json:"headers,omitempty"` // JSON object in DB
	Active          bool              `json:"active"`
	SuccessCount    int               `json:"success_count"`
	FailureCount    int               `json:"failure_count"`
	LastTriggeredAt *int64            `json:"last_triggered_at,omitempty"`
	LastSuccessAt   *int64            `json:"last_success_at,omitempty"`
	LastFailureAt   *int64            `json:"last_failure_at,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
	CreatedAt       int64             `json:"created_at"`
	UpdatedAt       int64             `json:"updated_at"`
}

// Delivery statuses. Transitions are monotonic: pending ends in
// delivered or failed; a failed delivery may be re-queued to retrying
// by a manual retry. in_flight marks a claimed retry so concurrent
// scheduler workers never double-dispatch.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryRetrying  = "retrying"
	DeliveryInFlight  = "in_flight"
	DeliveryFailed    = "failed"
)

type WebhookDelivery struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhook_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"` // immutable; retries reuse these exact bytes
	Status       string          `json:"status"`
	StatusCode   int             `json:"status_code,omitempty"`
	ResponseBody string          `json:"response_body,omitempty"`
	LatencyMs    int             `json:"latency_ms,omitempty"`
	Attempts     int             `json:"attempts"`
	NextRetryAt  *int64          `json:"next_retry_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}

// WebhookEvent is the outbound wire envelope. It is marshalled once at
// dispatch time; the resulting bytes are what gets signed and what
// every retry re-sends.
type WebhookEvent struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}
