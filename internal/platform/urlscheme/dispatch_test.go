package urlscheme

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/telephony"
	"github.com/acme/direct-calling/internal/telephony/mock"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

func newMockDispatcher(deviceID string) (*dialer.Dispatcher, dialer.Host) {
	provider := mock.NewProvider(config.TelephonyConfig{SuccessRate: 1, UnsupportedDevices: []string{"ipad"}})
	d := dialer.New(deviceID, New(telephony.NewOpener(provider, time.Second)))
	host := stubHost{id: deviceID}
	d.Attach(host)
	return d, host
}

func TestDispatchOnDeviceWithoutTelephony(t *testing.T) {
	ctx := context.Background()
	d, _ := newMockDispatcher("ipad")

	ticket := d.Submit(ctx, "12345")
	out, ok := ticket.Outcome()
	require.True(t, ok)
	assert.False(t, out.Value)
	assert.True(t, errors.Is(out.Err, apperrors.ErrNotSupported))
	assert.Equal(t, domain.OutcomeNotSupported, out.Status())
	assert.Equal(t, dialer.StateIdle, d.State())

	assert.False(t, d.CheckAuthorization(ctx))
	perm, ok := d.RequestAuthorization(ctx).Outcome()
	require.True(t, ok)
	assert.False(t, perm.Value)
	assert.NoError(t, perm.Err)
}

func TestDispatchOnPhone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, _ := newMockDispatcher("pixel-7")

	assert.True(t, d.CheckAuthorization(ctx))
	placed, err := d.Submit(ctx, "+1 555 1212").Wait(ctx)
	require.NoError(t, err)
	assert.True(t, placed)
}
