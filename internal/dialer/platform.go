package dialer

import (
	"context"

	"github.com/acme/direct-calling/internal/domain"
)

// Host is the attached front-end context: the only party able to show a
// permission prompt to the user.
type Host interface {
	DeviceID() string
	Prompt(ctx context.Context, req PromptRequest) error
}

// PromptRequest is what a host is asked to show.
type PromptRequest struct {
	Permission  domain.Permission `json:"permission"`
	RequestCode int               `json:"requestCode"`
}

// Prompt reports how an authorization request was handled. A deferred prompt is
// answered later through Dispatcher.OnAuthorizationResult; otherwise Granted is final.
// Unsupported means the device cannot perform the action at all: a parked call
// fails with ErrNotSupported while a permission-only request reads false.
type Prompt struct {
	Deferred    bool
	Granted     bool
	Unsupported bool
}

// Platform is the capability set a dispatcher is composed with. One
// implementation exists per target platform.
type Platform interface {
	Name() string
	// Normalize validates a raw payload and returns the form handed to Perform.
	Normalize(raw string) (string, error)
	// Authorized is a side-effect free query; it must return false for a nil host.
	Authorized(ctx context.Context, host Host) bool
	RequestAuthorization(ctx context.Context, host Host) (Prompt, error)
	// Perform runs the privileged action and blocks until the platform reports back.
	Perform(ctx context.Context, host Host, number string) error
}
