// Package dialer holds the permission-gated dispatcher placing calls for one
// device. A dispatcher is Idle or Pending; Pending means exactly one request waits
// for the answer to a permission prompt.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/domain"
	apperrors "github.com/acme/direct-calling/pkg/errors"
	"github.com/acme/direct-calling/pkg/logger"
)

// State is the dispatcher's position in its two-state machine.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
)

// slot is the single request parked behind a permission prompt. A slot without
// an action only reports the permission decision. waiters are permission-only
// tickets that joined the prompt already on screen.
type slot struct {
	action  bool
	number  string
	ticket  *Ticket
	waiters []*Ticket
}

func (s *slot) resolveWaiters(value bool, err error) {
	for _, w := range s.waiters {
		w.resolve(value, err)
	}
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithObserver registers a callback invoked once for every resolved ticket.
func WithObserver(fn func(*Ticket)) Option {
	return func(d *Dispatcher) { d.observer = fn }
}

// WithClock overrides the ticket timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher gates call placement behind the platform's authorization.
type Dispatcher struct {
	deviceID string
	platform Platform
	logger   *logger.Logger
	tracer   trace.Tracer
	observer func(*Ticket)
	now      func() time.Time

	mu      sync.Mutex
	host    Host
	pending *slot
}

// New builds an idle, detached dispatcher for deviceID.
func New(deviceID string, platform Platform, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deviceID: deviceID,
		platform: platform,
		logger:   logger.Nop(),
		tracer:   otel.Tracer("directcall.dialer"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeviceID returns the device the dispatcher serves.
func (d *Dispatcher) DeviceID() string {
	return d.deviceID
}

// Attach installs the front-end context. Re-attaching keeps a pending request
// alive, matching a configuration change on the front-end.
func (d *Dispatcher) Attach(host Host) {
	d.mu.Lock()
	d.host = host
	d.mu.Unlock()
	d.logger.Debug("dialer: host attached", zap.String("device_id", d.deviceID))
}

// Detach removes host if it is the attached one and resolves any pending
// request with ErrDetached.
func (d *Dispatcher) Detach(host Host) bool {
	d.mu.Lock()
	if d.host == nil || (host != nil && d.host != host) {
		d.mu.Unlock()
		return false
	}
	d.host = nil
	s := d.pending
	d.pending = nil
	d.mu.Unlock()

	if s != nil {
		d.logger.Info("dialer: pending request dropped on detach", zap.String("device_id", d.deviceID), zap.String("ticket_id", s.ticket.ID.String()))
		s.ticket.resolve(false, apperrors.ErrDetached)
		s.resolveWaiters(false, apperrors.ErrDetached)
	}
	return true
}

// Attached returns the current host, or nil.
func (d *Dispatcher) Attached() Host {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.host
}

// State reports whether a request is parked.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return StatePending
	}
	return StateIdle
}

// CheckAuthorization queries the platform; it has no side effects.
func (d *Dispatcher) CheckAuthorization(ctx context.Context) bool {
	host := d.Attached()
	if host == nil {
		return false
	}
	return d.platform.Authorized(ctx, host)
}

// Submit asks for a call to raw. The returned ticket is already resolved unless
// a permission prompt had to be shown.
func (d *Dispatcher) Submit(ctx context.Context, raw string) *Ticket {
	ctx, span := d.tracer.Start(ctx, "dialer.submit", trace.WithAttributes(
		attribute.String("device.id", d.deviceID),
		attribute.String("platform", d.platform.Name()),
	))
	defer span.End()

	number, err := d.platform.Normalize(raw)
	if err != nil {
		t := d.newTicket(domain.MethodMakeCall, raw)
		span.RecordError(err)
		t.resolve(false, err)
		return t
	}

	t := d.newTicket(domain.MethodMakeCall, number)
	host := d.Attached()
	if host == nil {
		t.resolve(false, apperrors.ErrNoContext)
		return t
	}

	if d.platform.Authorized(ctx, host) {
		value, err := d.execute(ctx, host, number)
		t.resolve(value, err)
		return t
	}

	span.SetAttributes(attribute.Bool("prompted", true))
	d.park(ctx, host, &slot{action: true, number: number, ticket: t})
	return t
}

// RequestAuthorization resolves true at once when already authorized. While a
// prompt is already pending it waits for that same decision, leaving the parked
// request in place; otherwise it parks a permission-only request and prompts.
func (d *Dispatcher) RequestAuthorization(ctx context.Context) *Ticket {
	t := d.newTicket(domain.MethodRequestPermission, "")
	host := d.Attached()
	if host == nil {
		t.resolve(false, apperrors.ErrNoContext)
		return t
	}
	if d.platform.Authorized(ctx, host) {
		t.resolve(true, nil)
		return t
	}
	if d.join(host, t) {
		return t
	}
	d.park(ctx, host, &slot{ticket: t})
	return t
}

// OnAuthorizationResult delivers the answer of a deferred prompt. It reports
// whether a pending request consumed it; without one it does nothing.
func (d *Dispatcher) OnAuthorizationResult(ctx context.Context, granted bool) bool {
	d.mu.Lock()
	s := d.pending
	d.pending = nil
	host := d.host
	d.mu.Unlock()

	if s == nil {
		d.logger.Debug("dialer: authorization result without pending request", zap.String("device_id", d.deviceID), zap.Bool("granted", granted))
		return false
	}
	d.complete(ctx, host, s, granted)
	return true
}

// join attaches a permission-only ticket to the slot already waiting on host's
// prompt. It reports false when nothing is pending.
func (d *Dispatcher) join(host Host, t *Ticket) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.host != host || d.pending == nil {
		return false
	}
	d.pending.waiters = append(d.pending.waiters, t)
	return true
}

func (d *Dispatcher) park(ctx context.Context, host Host, s *slot) {
	d.mu.Lock()
	if d.host != host {
		d.mu.Unlock()
		s.ticket.resolve(false, apperrors.ErrDetached)
		return
	}
	prev := d.pending
	if prev != nil {
		// Only a parked call is superseded; permission waiters follow the new prompt.
		s.waiters = append(s.waiters, prev.waiters...)
		if !prev.action {
			s.waiters = append(s.waiters, prev.ticket)
		}
	}
	d.pending = s
	d.mu.Unlock()

	if prev != nil && prev.action {
		d.logger.Warn("dialer: pending request overwritten",
			zap.String("device_id", d.deviceID),
			zap.String("replaced_ticket_id", prev.ticket.ID.String()),
			zap.String("ticket_id", s.ticket.ID.String()),
		)
		prev.ticket.resolve(false, apperrors.ErrOverwritten)
	}

	prompt, err := d.platform.RequestAuthorization(ctx, host)
	if err != nil {
		if d.take(s) {
			err = fmt.Errorf("%w: permission prompt: %v", apperrors.ErrActionFailed, err)
			s.ticket.resolve(false, err)
			s.resolveWaiters(false, err)
		}
		return
	}
	if prompt.Deferred || !d.take(s) {
		return
	}
	if prompt.Unsupported {
		d.logger.Info("dialer: device cannot place calls", zap.String("device_id", d.deviceID), zap.String("platform", d.platform.Name()))
		if s.action {
			s.ticket.resolve(false, apperrors.ErrNotSupported)
		} else {
			s.ticket.resolve(false, nil)
		}
		s.resolveWaiters(false, nil)
		return
	}
	d.complete(ctx, host, s, prompt.Granted)
}

// take clears the slot only if s still occupies it.
func (d *Dispatcher) take(s *slot) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != s {
		return false
	}
	d.pending = nil
	return true
}

func (d *Dispatcher) complete(ctx context.Context, host Host, s *slot, granted bool) {
	s.resolveWaiters(granted, nil)
	switch {
	case !granted:
		s.ticket.resolve(false, nil)
	case !s.action:
		s.ticket.resolve(true, nil)
	case host == nil:
		s.ticket.resolve(false, apperrors.ErrDetached)
	default:
		value, err := d.execute(ctx, host, s.number)
		s.ticket.resolve(value, err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, host Host, number string) (bool, error) {
	ctx, span := d.tracer.Start(ctx, "dialer.execute", trace.WithAttributes(
		attribute.String("device.id", d.deviceID),
		attribute.String("platform", d.platform.Name()),
	))
	defer span.End()

	if err := d.platform.Perform(ctx, host, number); err != nil {
		span.RecordError(err)
		d.logger.WithContext(ctx).Warn("dialer: perform failed", zap.String("device_id", d.deviceID), zap.Error(err))
		if !errors.Is(err, apperrors.ErrActionFailed) {
			err = fmt.Errorf("%w: %v", apperrors.ErrActionFailed, err)
		}
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) newTicket(method, number string) *Ticket {
	return newTicket(d.deviceID, method, number, d.now(), d.observer)
}
