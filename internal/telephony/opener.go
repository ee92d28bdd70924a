package telephony

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
)

// Opener opens tel: URLs through a Provider, completing through a callback the
// way a URL-opening system API does.
type Opener struct {
	provider Provider
	timeout  time.Duration
}

// NewOpener wraps provider. timeout bounds each Open.
func NewOpener(provider Provider, timeout time.Duration) *Opener {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Opener{provider: provider, timeout: timeout}
}

// CanOpen reports whether the device can handle the URL at all.
func (o *Opener) CanOpen(ctx context.Context, deviceID, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "tel" {
		return false
	}
	return o.provider.Supports(ctx, deviceID)
}

// Open launches the call in the background and reports success to completion.
func (o *Opener) Open(ctx context.Context, deviceID, rawURL string, completion func(bool)) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "tel" {
		completion(false)
		return
	}
	number := strings.TrimPrefix(u.Opaque, "//")
	msg := queue.IntentMessage{
		IntentID:   uuid.New(),
		DeviceID:   deviceID,
		Action:     queue.IntentActionCall,
		URI:        rawURL,
		Number:     number,
		EnqueuedAt: time.Now().UTC(),
	}

	go func() {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		res, err := o.provider.PlaceCall(octx, msg)
		completion(err == nil && res.Status == domain.LaunchStatusLaunched)
	}()
}
