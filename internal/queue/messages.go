package queue

import (
	"time"

	"github.com/google/uuid"
)

// IntentActionCall is the action carried by call intents.
const IntentActionCall = "android.intent.action.CALL"

// IntentMessage instructs the device-side launcher to start a call.
type IntentMessage struct {
	IntentID   uuid.UUID `json:"intent_id"`
	DeviceID   string    `json:"device_id"`
	Action     string    `json:"action"`
	URI        string    `json:"uri"`
	Number     string    `json:"number"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// OutcomeMessage reports how a bridge request was resolved.
type OutcomeMessage struct {
	TicketID    uuid.UUID `json:"ticket_id"`
	DeviceID    string    `json:"device_id"`
	Method      string    `json:"method"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Status      string    `json:"status"`
	Value       bool      `json:"value"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// ReceiptMessage reports what the telephony provider did with an intent.
type ReceiptMessage struct {
	IntentID   uuid.UUID `json:"intent_id"`
	DeviceID   string    `json:"device_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
