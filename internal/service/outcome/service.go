package outcome

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/internal/repository"
	"github.com/acme/direct-calling/pkg/logger"
)

// Publisher emits outcome events.
type Publisher interface {
	PublishOutcome(ctx context.Context, msg queue.OutcomeMessage) error
}

// Service journals and publishes resolved tickets.
type Service struct {
	store     repository.OutcomeStore
	publisher Publisher
	logger    *logger.Logger
	timeout   time.Duration
}

// NewService builds the recorder. store and publisher are optional.
func NewService(store repository.OutcomeStore, publisher Publisher, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Service{store: store, publisher: publisher, logger: lg, timeout: 5 * time.Second}
}

// FromTicket converts a resolved ticket into its journal form.
func FromTicket(t *dialer.Ticket) (domain.Outcome, bool) {
	out, ok := t.Outcome()
	if !ok {
		return domain.Outcome{}, false
	}
	rec := domain.Outcome{
		TicketID:    t.ID,
		DeviceID:    t.DeviceID,
		Method:      t.Method,
		PhoneNumber: t.Number,
		Status:      out.Status(),
		Value:       out.Value,
		RequestedAt: t.CreatedAt,
		ResolvedAt:  out.ResolvedAt,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return rec, true
}

// Observe is a dialer observer. Tickets resolve on request goroutines whose
// context may already be gone, so recording uses its own deadline.
func (s *Service) Observe(t *dialer.Ticket) {
	rec, ok := FromTicket(t)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Record(ctx, rec)
}

// Record journals and publishes one outcome; failures are logged.
func (s *Service) Record(ctx context.Context, rec domain.Outcome) {
	if s.store != nil {
		if err := s.store.AppendOutcome(ctx, rec); err != nil {
			s.logger.Error("outcome service: journal", zap.String("ticket_id", rec.TicketID.String()), zap.Error(err))
		}
	}
	if s.publisher != nil {
		msg := queue.OutcomeMessage{
			TicketID:    rec.TicketID,
			DeviceID:    rec.DeviceID,
			Method:      rec.Method,
			PhoneNumber: rec.PhoneNumber,
			Status:      string(rec.Status),
			Value:       rec.Value,
			Error:       rec.Error,
			RequestedAt: rec.RequestedAt,
			ResolvedAt:  rec.ResolvedAt,
		}
		if err := s.publisher.PublishOutcome(ctx, msg); err != nil {
			s.logger.Error("outcome service: publish", zap.String("ticket_id", rec.TicketID.String()), zap.Error(err))
		}
	}
}

// List pages through a device's journal.
func (s *Service) List(ctx context.Context, deviceID string, limit int, pagingState []byte) ([]domain.Outcome, []byte, error) {
	if s.store == nil {
		return nil, nil, nil
	}
	return s.store.ListOutcomes(ctx, deviceID, limit, pagingState)
}
