package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/phone"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

type host struct{ id string }

func (h host) DeviceID() string                                  { return h.id }
func (h host) Prompt(context.Context, dialer.PromptRequest) error { return nil }

type platform struct {
	mu         sync.Mutex
	authorized bool
	performErr error
	performed  []string
}

func (p *platform) Name() string { return "test" }

func (p *platform) Normalize(raw string) (string, error) { return phone.Validate(raw) }

func (p *platform) Authorized(_ context.Context, h dialer.Host) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return h != nil && p.authorized
}

func (p *platform) RequestAuthorization(context.Context, dialer.Host) (dialer.Prompt, error) {
	return dialer.Prompt{Deferred: true}, nil
}

func (p *platform) Perform(_ context.Context, _ dialer.Host, number string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.performed = append(p.performed, number)
	return p.performErr
}

func newChannel(p *platform, attached bool) (*Channel, *[]*dialer.Ticket) {
	var seen []*dialer.Ticket
	var mu sync.Mutex
	observe := func(t *dialer.Ticket) {
		mu.Lock()
		seen = append(seen, t)
		mu.Unlock()
	}
	d := dialer.New("dev-1", p, dialer.WithObserver(observe))
	if attached {
		d.Attach(host{id: "dev-1"})
	}
	return NewChannel(d, observe), &seen
}

func replyOf(t *testing.T, ticket *dialer.Ticket) Reply {
	t.Helper()
	r, ok := ReplyFor(ticket)
	require.True(t, ok, "ticket should be resolved")
	return r
}

func TestMakeCallAuthorized(t *testing.T) {
	p := &platform{authorized: true}
	ch, seen := newChannel(p, true)

	ticket, err := ch.Invoke(context.Background(), MethodCall{
		Method:    domain.MethodMakeCall,
		Arguments: map[string]any{ArgPhoneNumber: "12345"},
	})
	require.NoError(t, err)

	r := replyOf(t, ticket)
	assert.Equal(t, StatusSuccess, r.Status)
	require.NotNil(t, r.Result)
	assert.True(t, *r.Result)
	assert.Equal(t, []string{"12345"}, p.performed)
	assert.Len(t, *seen, 1)
}

func TestMakeCallMissingNumber(t *testing.T) {
	for name, args := range map[string]map[string]any{
		"absent":     nil,
		"not string": {ArgPhoneNumber: 12345},
	} {
		t.Run(name, func(t *testing.T) {
			p := &platform{authorized: true}
			ch, seen := newChannel(p, true)

			ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: args})
			require.NoError(t, err)

			r := replyOf(t, ticket)
			assert.Equal(t, StatusError, r.Status)
			assert.Equal(t, CodeInvalidNumber, r.Code)
			assert.Empty(t, p.performed)
			assert.Len(t, *seen, 1)
		})
	}
}

func TestMakeCallErrorCodes(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		ch, _ := newChannel(&platform{authorized: true}, true)
		ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: ""}})
		require.NoError(t, err)
		assert.Equal(t, CodeInvalidNumber, replyOf(t, ticket).Code)
	})

	t.Run("no activity", func(t *testing.T) {
		ch, _ := newChannel(&platform{authorized: true}, false)
		ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "12345"}})
		require.NoError(t, err)
		assert.Equal(t, CodeNoActivity, replyOf(t, ticket).Code)
	})

	t.Run("call failed", func(t *testing.T) {
		ch, _ := newChannel(&platform{authorized: true, performErr: errors.New("activity not found")}, true)
		ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "12345"}})
		require.NoError(t, err)
		r := replyOf(t, ticket)
		assert.Equal(t, CodeCallFailed, r.Code)
		assert.Contains(t, r.Message, "activity not found")
	})

	t.Run("not supported", func(t *testing.T) {
		ch, _ := newChannel(&platform{authorized: true, performErr: apperrors.ErrNotSupported}, true)
		ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "12345"}})
		require.NoError(t, err)
		assert.Equal(t, CodeNotSupported, replyOf(t, ticket).Code)
	})
}

func TestMakeCallDeferredUntilResult(t *testing.T) {
	p := &platform{}
	ch, _ := newChannel(p, true)

	ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "555-1212"}})
	require.NoError(t, err)

	_, ok := ReplyFor(ticket)
	assert.False(t, ok)

	assert.True(t, ch.Dispatcher().OnAuthorizationResult(context.Background(), true))
	r := replyOf(t, ticket)
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, []string{"5551212"}, p.performed)
}

func TestSupersededCallReply(t *testing.T) {
	ch, _ := newChannel(&platform{}, true)
	ctx := context.Background()

	first, err := ch.Invoke(ctx, MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "111"}})
	require.NoError(t, err)
	_, err = ch.Invoke(ctx, MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{ArgPhoneNumber: "222"}})
	require.NoError(t, err)

	assert.Equal(t, CodeCallSuperseded, replyOf(t, first).Code)
}

func TestCheckPermission(t *testing.T) {
	p := &platform{authorized: true}
	ch, seen := newChannel(p, true)

	ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodCheckPermission})
	require.NoError(t, err)
	r := replyOf(t, ticket)
	require.NotNil(t, r.Result)
	assert.True(t, *r.Result)
	assert.Equal(t, dialer.StateIdle, ch.Dispatcher().State())
	assert.Len(t, *seen, 1)

	detached, _ := newChannel(p, false)
	ticket, err = detached.Invoke(context.Background(), MethodCall{Method: domain.MethodCheckPermission})
	require.NoError(t, err)
	r = replyOf(t, ticket)
	require.NotNil(t, r.Result)
	assert.False(t, *r.Result)
}

func TestRequestPermission(t *testing.T) {
	ch, _ := newChannel(&platform{authorized: true}, true)
	ticket, err := ch.Invoke(context.Background(), MethodCall{Method: domain.MethodRequestPermission})
	require.NoError(t, err)
	assert.True(t, *replyOf(t, ticket).Result)

	pending, _ := newChannel(&platform{}, true)
	ticket, err = pending.Invoke(context.Background(), MethodCall{Method: domain.MethodRequestPermission})
	require.NoError(t, err)
	_, ok := ReplyFor(ticket)
	assert.False(t, ok)

	pending.Dispatcher().OnAuthorizationResult(context.Background(), false)
	r := replyOf(t, ticket)
	assert.Equal(t, StatusSuccess, r.Status)
	assert.False(t, *r.Result)
}

func TestUnknownMethod(t *testing.T) {
	p := &platform{authorized: true}
	ch, seen := newChannel(p, true)

	ticket, err := ch.Invoke(context.Background(), MethodCall{Method: "sendSms"})
	assert.Nil(t, ticket)
	assert.True(t, errors.Is(err, apperrors.ErrNotImplemented))
	assert.Empty(t, *seen)
	assert.Equal(t, StatusNotImplemented, NotImplemented().Status)
}
