package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/bridge"
	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/platform/intent"
	"github.com/acme/direct-calling/internal/platform/urlscheme"
	"github.com/acme/direct-calling/internal/queue"
)

type memGrants struct {
	mu     sync.Mutex
	grants map[string]bool
	err    error
}

func (g *memGrants) Granted(_ context.Context, deviceID string, _ domain.Permission) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grants[deviceID], nil
}

func (g *memGrants) Record(_ context.Context, deviceID string, _ domain.Permission, granted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.grants[deviceID] = granted
	return nil
}

type memLauncher struct {
	mu   sync.Mutex
	sent []queue.IntentMessage
}

func (l *memLauncher) Launch(_ context.Context, msg queue.IntentMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, msg)
	return nil
}

type promptHost struct {
	id      string
	mu      sync.Mutex
	prompts []dialer.PromptRequest
}

func (h *promptHost) DeviceID() string { return h.id }

func (h *promptHost) Prompt(_ context.Context, req dialer.PromptRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, req)
	return nil
}

type fixture struct {
	registry *Registry
	grants   *memGrants
	launcher *memLauncher
	observed chan *dialer.Ticket
}

func newFixture() *fixture {
	cfg := config.PlatformConfig{Kind: config.PlatformIntent, Permission: "CALL_PHONE", RequestCode: 1001}
	f := &fixture{
		grants:   &memGrants{grants: make(map[string]bool)},
		launcher: &memLauncher{},
		observed: make(chan *dialer.Ticket, 16),
	}
	platform := intent.New(f.grants, f.launcher, cfg, nil)
	f.registry = NewRegistry(platform, f.grants, func(t *dialer.Ticket) { f.observed <- t }, NewTicketBook(time.Minute), nil)
	return f
}

func makeCall(number string) bridge.MethodCall {
	return bridge.MethodCall{Method: domain.MethodMakeCall, Arguments: map[string]any{bridge.ArgPhoneNumber: number}}
}

func TestPromptThenGrantLaunchesIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	host := &promptHost{id: "dev-1"}
	f.registry.Attach(host)

	ticket, err := f.registry.Invoke(ctx, "dev-1", makeCall("555-1212"))
	require.NoError(t, err)
	_, resolved := ticket.Outcome()
	assert.False(t, resolved)
	require.Len(t, host.prompts, 1)
	assert.Equal(t, 1001, host.prompts[0].RequestCode)
	assert.Equal(t, dialer.StatePending, f.registry.Status(ctx, "dev-1").State)

	ack := f.registry.HandlePermissionResult(ctx, "dev-1", 1001, true)
	assert.Equal(t, PermissionAck{Handled: true, Delivered: true}, ack)

	value, err := ticket.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, value)
	require.Len(t, f.launcher.sent, 1)
	assert.Equal(t, "tel:5551212", f.launcher.sent[0].URI)

	status := f.registry.Status(ctx, "dev-1")
	assert.True(t, status.Authorized)
	assert.True(t, status.Attached)
	assert.Equal(t, dialer.StateIdle, status.State)

	polled, ok := f.registry.Ticket("dev-1", ticket.ID)
	require.True(t, ok)
	assert.Same(t, ticket, polled)
	assert.Same(t, ticket, <-f.observed)
}

func TestGrantedDeviceCallsWithoutPrompt(t *testing.T) {
	f := newFixture()
	f.grants.grants["dev-1"] = true
	host := &promptHost{id: "dev-1"}
	f.registry.Attach(host)

	ticket, err := f.registry.Invoke(context.Background(), "dev-1", makeCall("12345"))
	require.NoError(t, err)
	out, ok := ticket.Outcome()
	require.True(t, ok)
	assert.True(t, out.Value)
	assert.Empty(t, host.prompts)
}

func TestForeignRequestCodeIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registry.Attach(&promptHost{id: "dev-1"})

	ticket, err := f.registry.Invoke(ctx, "dev-1", makeCall("12345"))
	require.NoError(t, err)

	ack := f.registry.HandlePermissionResult(ctx, "dev-1", 42, true)
	assert.False(t, ack.Handled)
	_, resolved := ticket.Outcome()
	assert.False(t, resolved)
	assert.False(t, f.grants.grants["dev-1"])
}

type recordedGrant struct {
	permission domain.Permission
	granted    bool
}

type grantLog struct {
	memGrants
	recorded []recordedGrant
}

func (g *grantLog) Record(ctx context.Context, deviceID string, permission domain.Permission, granted bool) error {
	g.recorded = append(g.recorded, recordedGrant{permission: permission, granted: granted})
	return g.memGrants.Record(ctx, deviceID, permission, granted)
}

func TestRequestCodeAndPermissionComeFromPlatform(t *testing.T) {
	grants := &grantLog{memGrants: memGrants{grants: make(map[string]bool)}}
	cfg := config.PlatformConfig{Kind: config.PlatformIntent, Permission: "CALL_PRIVILEGED", RequestCode: 7}
	registry := NewRegistry(intent.New(grants, &memLauncher{}, cfg, nil), grants, nil, nil, nil)

	ctx := context.Background()
	assert.False(t, registry.HandlePermissionResult(ctx, "dev-1", 1001, true).Handled)
	assert.True(t, registry.HandlePermissionResult(ctx, "dev-1", 7, true).Handled)
	assert.Equal(t, []recordedGrant{{permission: "CALL_PRIVILEGED", granted: true}}, grants.recorded)
}

type fixedOpener struct{ can bool }

func (o fixedOpener) CanOpen(context.Context, string, string) bool { return o.can }

func (o fixedOpener) Open(_ context.Context, _ string, _ string, completion func(bool)) {
	completion(o.can)
}

func TestPermissionResultsIgnoredWithoutPrompts(t *testing.T) {
	grants := &grantLog{memGrants: memGrants{grants: make(map[string]bool)}}
	registry := NewRegistry(urlscheme.New(fixedOpener{can: true}), grants, nil, nil, nil)

	ack := registry.HandlePermissionResult(context.Background(), "dev-1", 0, true)
	assert.False(t, ack.Handled)
	assert.Empty(t, grants.recorded)
}

func TestResultWithoutPendingRequest(t *testing.T) {
	f := newFixture()
	ack := f.registry.HandlePermissionResult(context.Background(), "dev-1", 1001, false)
	assert.Equal(t, PermissionAck{Handled: true}, ack)
}

func TestGrantRecordFailureStillDelivers(t *testing.T) {
	f := newFixture()
	f.grants.err = errors.New("postgres down")
	ctx := context.Background()
	f.registry.Attach(&promptHost{id: "dev-1"})

	ticket, err := f.registry.Invoke(ctx, "dev-1", makeCall("12345"))
	require.NoError(t, err)

	ack := f.registry.HandlePermissionResult(ctx, "dev-1", 1001, true)
	assert.True(t, ack.Delivered)
	value, err := ticket.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, value)
}

func TestDetachOnlyMatchingHost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := &promptHost{id: "dev-1"}
	second := &promptHost{id: "dev-1"}

	f.registry.Attach(first)
	ticket, err := f.registry.Invoke(ctx, "dev-1", makeCall("12345"))
	require.NoError(t, err)

	f.registry.Attach(second)
	assert.False(t, f.registry.Detach(first))
	_, resolved := ticket.Outcome()
	assert.False(t, resolved)

	assert.True(t, f.registry.Detach(second))
	_, err = ticket.Wait(ctx)
	assert.Error(t, err)
	assert.False(t, f.registry.Detach(&promptHost{id: "dev-unknown"}))
}

func TestTicketScopedToDevice(t *testing.T) {
	f := newFixture()
	ticket, err := f.registry.Invoke(context.Background(), "dev-1", makeCall(""))
	require.NoError(t, err)

	_, ok := f.registry.Ticket("dev-2", ticket.ID)
	assert.False(t, ok)
	_, ok = f.registry.Ticket("dev-1", uuid.New())
	assert.False(t, ok)
}

func TestUnknownMethodNotFiled(t *testing.T) {
	f := newFixture()
	_, err := f.registry.Invoke(context.Background(), "dev-1", bridge.MethodCall{Method: "hangUp"})
	assert.Error(t, err)
	assert.Zero(t, f.registry.Tickets().Len())
}
