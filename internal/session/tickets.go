package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/dialer"
)

// TicketBook keeps tickets reachable by id so callers that gave up waiting can
// poll for the outcome. Resolved tickets are dropped ttl after resolution.
type TicketBook struct {
	ttl time.Duration

	mu      sync.Mutex
	tickets map[uuid.UUID]*dialer.Ticket
}

// NewTicketBook builds an empty book.
func NewTicketBook(ttl time.Duration) *TicketBook {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TicketBook{ttl: ttl, tickets: make(map[uuid.UUID]*dialer.Ticket)}
}

// Put stores t.
func (b *TicketBook) Put(t *dialer.Ticket) {
	b.mu.Lock()
	b.tickets[t.ID] = t
	b.mu.Unlock()
}

// Get returns the ticket with id if it belongs to deviceID.
func (b *TicketBook) Get(deviceID string, id uuid.UUID) (*dialer.Ticket, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tickets[id]
	if !ok || t.DeviceID != deviceID {
		return nil, false
	}
	return t, true
}

// Len reports how many tickets are held.
func (b *TicketBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tickets)
}

// Sweep removes tickets resolved before now-ttl and returns how many went.
func (b *TicketBook) Sweep(now time.Time) int {
	cutoff := now.Add(-b.ttl)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, t := range b.tickets {
		out, ok := t.Outcome()
		if ok && out.ResolvedAt.Before(cutoff) {
			delete(b.tickets, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx ends.
func (b *TicketBook) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.Sweep(now.UTC())
		}
	}
}
