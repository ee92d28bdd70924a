// Package bridge exposes a device dispatcher as the direct_calling method channel.
package bridge

import (
	"context"
	"fmt"

	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

// ChannelName is the method channel the front-end talks to.
const ChannelName = "direct_calling"

// ArgPhoneNumber is the makeCall argument key.
const ArgPhoneNumber = "phoneNumber"

// MethodCall is one invocation on the channel.
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Channel routes method calls to a device dispatcher.
type Channel struct {
	dispatcher *dialer.Dispatcher
	observer   func(*dialer.Ticket)
}

// NewChannel binds the channel to d. observer, when set, also sees tickets
// resolved before they reach the dispatcher.
func NewChannel(d *dialer.Dispatcher, observer func(*dialer.Ticket)) *Channel {
	return &Channel{dispatcher: d, observer: observer}
}

// Dispatcher returns the dispatcher behind the channel.
func (c *Channel) Dispatcher() *dialer.Dispatcher {
	return c.dispatcher
}

// Invoke runs call and returns its ticket. Unknown methods fail with
// ErrNotImplemented and never touch the dispatcher.
func (c *Channel) Invoke(ctx context.Context, call MethodCall) (*dialer.Ticket, error) {
	deviceID := c.dispatcher.DeviceID()
	switch call.Method {
	case domain.MethodMakeCall:
		number, ok := call.Arguments[ArgPhoneNumber].(string)
		if !ok {
			return c.resolved(deviceID, call.Method, false,
				fmt.Errorf("%w: phone number cannot be empty", apperrors.ErrValidation)), nil
		}
		return c.dispatcher.Submit(ctx, number), nil
	case domain.MethodCheckPermission:
		return c.resolved(deviceID, call.Method, c.dispatcher.CheckAuthorization(ctx), nil), nil
	case domain.MethodRequestPermission:
		return c.dispatcher.RequestAuthorization(ctx), nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotImplemented, call.Method)
	}
}

func (c *Channel) resolved(deviceID, method string, value bool, err error) *dialer.Ticket {
	t := dialer.Resolved(deviceID, method, value, err)
	if c.observer != nil {
		c.observer(t)
	}
	return t
}
