package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
)

func TestPlaceCall(t *testing.T) {
	ctx := context.Background()
	msg := queue.IntentMessage{DeviceID: "dev-1", Number: "5551212"}

	always := NewProvider(config.TelephonyConfig{SuccessRate: 1})
	always.latency = 0
	res, err := always.PlaceCall(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.LaunchStatusLaunched, res.Status)

	never := NewProvider(config.TelephonyConfig{SuccessRate: 0})
	never.latency = 0
	res, err = never.PlaceCall(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.LaunchStatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestUnsupportedDevice(t *testing.T) {
	p := NewProvider(config.TelephonyConfig{SuccessRate: 1, UnsupportedDevices: []string{"tablet-1"}})
	ctx := context.Background()

	assert.False(t, p.Supports(ctx, "tablet-1"))
	assert.True(t, p.Supports(ctx, "phone-1"))

	res, err := p.PlaceCall(ctx, queue.IntentMessage{DeviceID: "tablet-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.LaunchStatusFailed, res.Status)
}

func TestPlaceCallHonoursContext(t *testing.T) {
	p := NewProvider(config.TelephonyConfig{SuccessRate: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.PlaceCall(ctx, queue.IntentMessage{DeviceID: "dev-1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.LaunchStatusFailed, res.Status)
}
