package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/internal/telephony"
)

// Provider simulates a system dialer.
type Provider struct {
	successRate float64
	latency     time.Duration
	unsupported map[string]struct{}

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProvider constructs a mock provider from config.
func NewProvider(cfg config.TelephonyConfig) *Provider {
	unsupported := make(map[string]struct{}, len(cfg.UnsupportedDevices))
	for _, id := range cfg.UnsupportedDevices {
		unsupported[id] = struct{}{}
	}
	return &Provider{
		successRate: cfg.SuccessRate,
		latency:     50 * time.Millisecond,
		unsupported: unsupported,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Supports reports false for devices configured as lacking a telephony radio.
func (p *Provider) Supports(_ context.Context, deviceID string) bool {
	_, missing := p.unsupported[deviceID]
	return !missing
}

// PlaceCall simulates launching the dialer.
func (p *Provider) PlaceCall(ctx context.Context, msg queue.IntentMessage) (telephony.Result, error) {
	if !p.Supports(ctx, msg.DeviceID) {
		return telephony.Result{Status: domain.LaunchStatusFailed, Error: "no telephony radio"}, nil
	}

	select {
	case <-ctx.Done():
		return telephony.Result{Status: domain.LaunchStatusFailed, Error: ctx.Err().Error()}, ctx.Err()
	case <-time.After(p.latency):
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	if roll < p.successRate {
		return telephony.Result{Status: domain.LaunchStatusLaunched, Duration: p.latency}, nil
	}
	return telephony.Result{Status: domain.LaunchStatusFailed, Duration: p.latency, Error: "simulated launch failure"}, nil
}
