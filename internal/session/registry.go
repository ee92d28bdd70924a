// Package session tracks the devices the service talks to: one dispatcher and
// method channel per device, the attached front-end hosts, permission results and
// the tickets callers can poll.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/bridge"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/pkg/logger"
)

// GrantRecorder persists permission decisions.
type GrantRecorder interface {
	Record(ctx context.Context, deviceID string, permission domain.Permission, granted bool) error
}

// DeviceStatus is a snapshot of one device.
type DeviceStatus struct {
	DeviceID   string       `json:"device_id"`
	Attached   bool         `json:"attached"`
	State      dialer.State `json:"state"`
	Authorized bool         `json:"authorized"`
}

// Prompter is implemented by platforms that show a runtime permission prompt.
// Its request code tags the results the registry accepts.
type Prompter interface {
	Permission() domain.Permission
	RequestCode() int
}

// PermissionAck reports what happened to a permission result. Handled is false
// when the request code is not ours; Delivered is true when a pending request
// consumed the decision.
type PermissionAck struct {
	Handled   bool `json:"handled"`
	Delivered bool `json:"delivered"`
}

// Registry owns the per-device dispatchers.
type Registry struct {
	platform dialer.Platform
	grants   GrantRecorder
	observer func(*dialer.Ticket)
	book     *TicketBook
	prompter Prompter
	logger   *logger.Logger

	mu       sync.Mutex
	channels map[string]*bridge.Channel
}

// NewRegistry builds a registry whose dispatchers all use platform. grants and
// observer may be nil. Permission results are accepted only when platform is a
// Prompter.
func NewRegistry(platform dialer.Platform, grants GrantRecorder, observer func(*dialer.Ticket), book *TicketBook, lg *logger.Logger) *Registry {
	if lg == nil {
		lg = logger.Nop()
	}
	if book == nil {
		book = NewTicketBook(0)
	}
	prompter, _ := platform.(Prompter)
	return &Registry{
		platform: platform,
		grants:   grants,
		observer: observer,
		book:     book,
		prompter: prompter,
		logger:   lg,
		channels: make(map[string]*bridge.Channel),
	}
}

// Tickets exposes the ticket book.
func (r *Registry) Tickets() *TicketBook {
	return r.book
}

// Channel returns the device's method channel, creating it on first use.
func (r *Registry) Channel(deviceID string) *bridge.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[deviceID]
	if !ok {
		d := dialer.New(deviceID, r.platform,
			dialer.WithLogger(r.logger.Named("dialer")),
			dialer.WithObserver(r.observe),
		)
		ch = bridge.NewChannel(d, r.observe)
		r.channels[deviceID] = ch
	}
	return ch
}

// Attach installs host as its device's front-end context.
func (r *Registry) Attach(host dialer.Host) {
	r.Channel(host.DeviceID()).Dispatcher().Attach(host)
	r.logger.Info("session: host attached", zap.String("device_id", host.DeviceID()))
}

// Detach removes host if it is still the attached one.
func (r *Registry) Detach(host dialer.Host) bool {
	r.mu.Lock()
	ch, ok := r.channels[host.DeviceID()]
	r.mu.Unlock()
	if !ok {
		return false
	}
	detached := ch.Dispatcher().Detach(host)
	if detached {
		r.logger.Info("session: host detached", zap.String("device_id", host.DeviceID()))
	}
	return detached
}

// Invoke runs a method call for deviceID and files the ticket for polling.
func (r *Registry) Invoke(ctx context.Context, deviceID string, call bridge.MethodCall) (*dialer.Ticket, error) {
	t, err := r.Channel(deviceID).Invoke(ctx, call)
	if err != nil {
		return nil, err
	}
	r.book.Put(t)
	return t, nil
}

// Ticket looks up a filed ticket.
func (r *Registry) Ticket(deviceID string, id uuid.UUID) (*dialer.Ticket, bool) {
	return r.book.Get(deviceID, id)
}

// Status snapshots a device.
func (r *Registry) Status(ctx context.Context, deviceID string) DeviceStatus {
	d := r.Channel(deviceID).Dispatcher()
	return DeviceStatus{
		DeviceID:   deviceID,
		Attached:   d.Attached() != nil,
		State:      d.State(),
		Authorized: d.CheckAuthorization(ctx),
	}
}

// HandlePermissionResult records the user's decision and hands it to the
// device's dispatcher. Results carrying a foreign request code are ignored, as
// are all results when the platform never prompts.
func (r *Registry) HandlePermissionResult(ctx context.Context, deviceID string, requestCode int, granted bool) PermissionAck {
	if r.prompter == nil || requestCode != r.prompter.RequestCode() {
		r.logger.Debug("session: foreign permission result",
			zap.String("device_id", deviceID),
			zap.Int("request_code", requestCode),
		)
		return PermissionAck{}
	}

	if r.grants != nil {
		if err := r.grants.Record(ctx, deviceID, r.prompter.Permission(), granted); err != nil {
			r.logger.WithContext(ctx).Error("session: record grant",
				zap.String("device_id", deviceID),
				zap.Bool("granted", granted),
				zap.Error(err),
			)
		}
	}

	delivered := r.Channel(deviceID).Dispatcher().OnAuthorizationResult(ctx, granted)
	return PermissionAck{Handled: true, Delivered: delivered}
}

func (r *Registry) observe(t *dialer.Ticket) {
	if r.observer != nil {
		r.observer(t)
	}
}
