package dialer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/domain"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

// Outcome is the single result delivered for a ticket.
type Outcome struct {
	Value      bool
	Err        error
	ResolvedAt time.Time
}

// Status classifies the outcome for journaling and replies.
func (o Outcome) Status() domain.OutcomeStatus {
	switch {
	case o.Err == nil && o.Value:
		return domain.OutcomeCompleted
	case o.Err == nil:
		return domain.OutcomeDenied
	case errors.Is(o.Err, apperrors.ErrValidation):
		return domain.OutcomeInvalidInput
	case errors.Is(o.Err, apperrors.ErrDetached):
		return domain.OutcomeDetached
	case errors.Is(o.Err, apperrors.ErrNoContext):
		return domain.OutcomeNoContext
	case errors.Is(o.Err, apperrors.ErrOverwritten):
		return domain.OutcomeOverwritten
	case errors.Is(o.Err, apperrors.ErrNotSupported):
		return domain.OutcomeNotSupported
	default:
		return domain.OutcomeActionFailed
	}
}

// Ticket is the deferred result handle returned for every request. It resolves
// exactly once.
type Ticket struct {
	ID        uuid.UUID
	DeviceID  string
	Method    string
	Number    string
	CreatedAt time.Time

	done     chan struct{}
	once     sync.Once
	outcome  Outcome
	observer func(*Ticket)
}

func newTicket(deviceID, method, number string, now time.Time, observer func(*Ticket)) *Ticket {
	return &Ticket{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Method:    method,
		Number:    number,
		CreatedAt: now,
		done:      make(chan struct{}),
		observer:  observer,
	}
}

// Resolved returns a ticket that is already complete. Used for requests that
// never reach a dispatcher.
func Resolved(deviceID, method string, value bool, err error) *Ticket {
	t := newTicket(deviceID, method, "", time.Now().UTC(), nil)
	t.resolve(value, err)
	return t
}

// resolve records the outcome; later calls are ignored and report false.
func (t *Ticket) resolve(value bool, err error) bool {
	resolved := false
	t.once.Do(func() {
		t.outcome = Outcome{Value: value, Err: err, ResolvedAt: time.Now().UTC()}
		close(t.done)
		resolved = true
	})
	if resolved && t.observer != nil {
		t.observer(t)
	}
	return resolved
}

// Done is closed once the outcome is available.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Outcome returns the outcome and whether the ticket has resolved.
func (t *Ticket) Outcome() (Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the ticket resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (bool, error) {
	select {
	case <-t.done:
		return t.outcome.Value, t.outcome.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
