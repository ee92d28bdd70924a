package telephony

import (
	"context"
	"time"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
)

// Result captures what the provider did with an intent.
type Result struct {
	Status   domain.LaunchStatus
	Duration time.Duration
	Error    string
}

// Provider abstracts the system dialer that actually launches calls.
type Provider interface {
	// Supports is the domain check: can this device place calls at all.
	Supports(ctx context.Context, deviceID string) bool
	PlaceCall(ctx context.Context, msg queue.IntentMessage) (Result, error)
}
