package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

type stubHost struct {
	id      string
	prompts []dialer.PromptRequest
	err     error
}

func (h *stubHost) DeviceID() string { return h.id }

func (h *stubHost) Prompt(_ context.Context, req dialer.PromptRequest) error {
	h.prompts = append(h.prompts, req)
	return h.err
}

type stubGrants struct {
	granted bool
	err     error
}

func (g stubGrants) Granted(context.Context, string, domain.Permission) (bool, error) {
	return g.granted, g.err
}

type recordingLauncher struct {
	sent []queue.IntentMessage
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, msg queue.IntentMessage) error {
	l.sent = append(l.sent, msg)
	return l.err
}

func newPlatform(grants GrantReader, launcher Launcher) *Platform {
	return New(grants, launcher, config.PlatformConfig{Kind: config.PlatformIntent, Permission: "CALL_PHONE", RequestCode: 1001}, nil)
}

func TestAuthorized(t *testing.T) {
	ctx := context.Background()
	host := &stubHost{id: "dev-1"}

	assert.True(t, newPlatform(stubGrants{granted: true}, nil).Authorized(ctx, host))
	assert.False(t, newPlatform(stubGrants{}, nil).Authorized(ctx, host))
	assert.False(t, newPlatform(stubGrants{granted: true, err: errors.New("db down")}, nil).Authorized(ctx, host))
	assert.False(t, newPlatform(stubGrants{granted: true}, nil).Authorized(ctx, nil))
}

func TestRequestAuthorizationPromptsHost(t *testing.T) {
	p := newPlatform(stubGrants{}, nil)
	host := &stubHost{id: "dev-1"}

	prompt, err := p.RequestAuthorization(context.Background(), host)
	require.NoError(t, err)
	assert.True(t, prompt.Deferred)
	require.Len(t, host.prompts, 1)
	assert.Equal(t, domain.PermissionCallPhone, host.prompts[0].Permission)
	assert.Equal(t, 1001, host.prompts[0].RequestCode)
}

func TestRequestAuthorizationPropagatesPromptFailure(t *testing.T) {
	p := newPlatform(stubGrants{}, nil)
	host := &stubHost{id: "dev-1", err: errors.New("socket closed")}

	_, err := p.RequestAuthorization(context.Background(), host)
	assert.Error(t, err)
}

func TestPerformPublishesIntent(t *testing.T) {
	launcher := &recordingLauncher{}
	p := newPlatform(stubGrants{granted: true}, launcher)

	require.NoError(t, p.Perform(context.Background(), &stubHost{id: "dev-9"}, "+15551212"))
	require.Len(t, launcher.sent, 1)

	msg := launcher.sent[0]
	assert.Equal(t, "dev-9", msg.DeviceID)
	assert.Equal(t, queue.IntentActionCall, msg.Action)
	assert.Equal(t, "tel:+15551212", msg.URI)
	assert.Equal(t, "+15551212", msg.Number)
	assert.NotEqual(t, [16]byte{}, [16]byte(msg.IntentID))
}

func TestPerformReturnsLaunchError(t *testing.T) {
	launcher := &recordingLauncher{err: errors.New("broker unavailable")}
	p := newPlatform(stubGrants{granted: true}, launcher)

	err := p.Perform(context.Background(), &stubHost{id: "dev-9"}, "5551212")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	p := newPlatform(stubGrants{}, nil)

	got, err := p.Normalize("(555) 121-2")
	require.NoError(t, err)
	assert.Equal(t, "5551212", got)

	_, err = p.Normalize("call me")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}
