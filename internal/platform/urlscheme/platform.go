// Package urlscheme is the URL-opener platform: tel: URLs need no grant, so
// authorization is the device's ability to open them, and placing a call opens the
// URL and waits for the opener's completion.
package urlscheme

import (
	"context"
	"fmt"
	"net/url"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/phone"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

// Name identifies the platform in config and traces.
const Name = config.PlatformURLScheme

const probeURL = "tel://"

// Opener opens URLs on a device and reports completion asynchronously.
type Opener interface {
	CanOpen(ctx context.Context, deviceID, rawURL string) bool
	Open(ctx context.Context, deviceID, rawURL string, completion func(bool))
}

// Platform implements dialer.Platform.
type Platform struct {
	opener Opener
}

// New composes the platform.
func New(opener Opener) *Platform {
	return &Platform{opener: opener}
}

func (p *Platform) Name() string { return Name }

// Normalize strips everything but digits, '+' and '*'.
func (p *Platform) Normalize(raw string) (string, error) {
	cleaned := phone.Clean(raw)
	if cleaned == "" {
		return "", fmt.Errorf("%w: invalid phone number", apperrors.ErrValidation)
	}
	if _, err := url.Parse("tel:" + cleaned); err != nil {
		return "", fmt.Errorf("%w: invalid phone number format", apperrors.ErrValidation)
	}
	return cleaned, nil
}

func (p *Platform) Authorized(ctx context.Context, host dialer.Host) bool {
	if host == nil {
		return false
	}
	return p.opener.CanOpen(ctx, host.DeviceID(), probeURL)
}

// RequestAuthorization never prompts: the answer is known immediately. There is
// no grant to wait for, so a device that cannot open tel: URLs is unsupported.
func (p *Platform) RequestAuthorization(ctx context.Context, host dialer.Host) (dialer.Prompt, error) {
	can := p.Authorized(ctx, host)
	return dialer.Prompt{Granted: can, Unsupported: !can}, nil
}

// Perform opens tel:<number> and blocks until the opener completes or ctx ends.
func (p *Platform) Perform(ctx context.Context, host dialer.Host, number string) error {
	target := "tel:" + number
	if !p.opener.CanOpen(ctx, host.DeviceID(), target) {
		return apperrors.ErrNotSupported
	}

	done := make(chan bool, 1)
	p.opener.Open(ctx, host.DeviceID(), target, func(ok bool) {
		done <- ok
	})

	select {
	case ok := <-done:
		if !ok {
			return fmt.Errorf("%w: failed to open phone app", apperrors.ErrActionFailed)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", apperrors.ErrActionFailed, ctx.Err())
	}
}

var _ dialer.Platform = (*Platform)(nil)
