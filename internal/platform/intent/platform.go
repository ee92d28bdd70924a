// Package intent is the runtime-permission platform: calls need an explicit
// grant, the prompt is shown by the attached host, and placing a call publishes a
// call intent for the device's launcher.
package intent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/phone"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/pkg/logger"
)

// Name identifies the platform in config and traces.
const Name = config.PlatformIntent

// GrantReader answers whether a device holds a permission.
type GrantReader interface {
	Granted(ctx context.Context, deviceID string, permission domain.Permission) (bool, error)
}

// Launcher hands a call intent to the device side.
type Launcher interface {
	Launch(ctx context.Context, msg queue.IntentMessage) error
}

// Platform implements dialer.Platform.
type Platform struct {
	grants      GrantReader
	launcher    Launcher
	permission  domain.Permission
	requestCode int
	logger      *logger.Logger
}

// New composes the platform.
func New(grants GrantReader, launcher Launcher, cfg config.PlatformConfig, lg *logger.Logger) *Platform {
	if lg == nil {
		lg = logger.Nop()
	}
	permission := domain.Permission(cfg.Permission)
	if permission == "" {
		permission = domain.PermissionCallPhone
	}
	return &Platform{
		grants:      grants,
		launcher:    launcher,
		permission:  permission,
		requestCode: cfg.RequestCode,
		logger:      lg,
	}
}

func (p *Platform) Name() string { return Name }

// RequestCode is the code permission results must carry to be accepted.
func (p *Platform) RequestCode() int { return p.requestCode }

// Permission is the grant this platform checks.
func (p *Platform) Permission() domain.Permission { return p.permission }

func (p *Platform) Normalize(raw string) (string, error) {
	return phone.Validate(raw)
}

// Authorized reads the grant; a failing lookup counts as not granted.
func (p *Platform) Authorized(ctx context.Context, host dialer.Host) bool {
	if host == nil {
		return false
	}
	granted, err := p.grants.Granted(ctx, host.DeviceID(), p.permission)
	if err != nil {
		p.logger.Warn("intent platform: grant lookup", zap.String("device_id", host.DeviceID()), zap.Error(err))
		return false
	}
	return granted
}

// RequestAuthorization asks the host to show the prompt; the answer comes back
// later as a permission result.
func (p *Platform) RequestAuthorization(ctx context.Context, host dialer.Host) (dialer.Prompt, error) {
	err := host.Prompt(ctx, dialer.PromptRequest{Permission: p.permission, RequestCode: p.requestCode})
	if err != nil {
		return dialer.Prompt{}, err
	}
	return dialer.Prompt{Deferred: true}, nil
}

// Perform publishes the call intent. Success means the intent was accepted,
// like starting an activity.
func (p *Platform) Perform(ctx context.Context, host dialer.Host, number string) error {
	msg := queue.IntentMessage{
		IntentID:   uuid.New(),
		DeviceID:   host.DeviceID(),
		Action:     queue.IntentActionCall,
		URI:        "tel:" + number,
		Number:     number,
		EnqueuedAt: time.Now().UTC(),
	}
	return p.launcher.Launch(ctx, msg)
}

var _ dialer.Platform = (*Platform)(nil)
