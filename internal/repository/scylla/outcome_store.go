package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/direct-calling/internal/domain"
)

// OutcomeStore persists the outcome journal in Scylla.
type OutcomeStore struct {
	session *gocql.Session
}

// NewOutcomeStore creates a new outcome store.
func NewOutcomeStore(session *gocql.Session) *OutcomeStore {
	return &OutcomeStore{session: session}
}

// AppendOutcome inserts a resolved request.
func (s *OutcomeStore) AppendOutcome(ctx context.Context, outcome domain.Outcome) error {
	if err := s.session.Query(`INSERT INTO outcomes_by_device (device_id, bucket, ticket_id, method, phone_number, status, value, error, requested_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.DeviceID, bucketDate(outcome.ResolvedAt), outcome.TicketID.String(), outcome.Method, outcome.PhoneNumber,
		string(outcome.Status), outcome.Value, outcome.Error, outcome.RequestedAt, outcome.ResolvedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("outcome store: insert outcomes_by_device: %w", err)
	}
	return nil
}

// ListOutcomes lists a device's outcomes, newest first, with pagination.
func (s *OutcomeStore) ListOutcomes(ctx context.Context, deviceID string, limit int, pagingState []byte) ([]domain.Outcome, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT ticket_id, method, phone_number, status, value, error, requested_at, resolved_at
		FROM outcomes_by_device WHERE device_id = ?`, deviceID).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	outcomes := make([]domain.Outcome, 0, limit)

	var (
		ticketIDStr string
		method      string
		phone       string
		status      string
		value       bool
		errText     string
		requested   time.Time
		resolved    time.Time
	)

	for iter.Scan(&ticketIDStr, &method, &phone, &status, &value, &errText, &requested, &resolved) {
		ticketID, err := uuid.Parse(ticketIDStr)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, domain.Outcome{
			TicketID:    ticketID,
			DeviceID:    deviceID,
			Method:      method,
			PhoneNumber: phone,
			Status:      domain.OutcomeStatus(status),
			Value:       value,
			Error:       errText,
			RequestedAt: requested,
			ResolvedAt:  resolved,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("outcome store: iter close: %w", err)
	}

	return outcomes, iter.PageState(), nil
}

// AppendLaunch records a provider launch receipt.
func (s *OutcomeStore) AppendLaunch(ctx context.Context, launch domain.Launch) error {
	durationMs := int64(launch.Duration / time.Millisecond)
	if err := s.session.Query(`INSERT INTO launches_by_device (device_id, bucket, intent_id, phone_number, status, error, duration_ms, launched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		launch.DeviceID, bucketDate(launch.LaunchedAt), launch.IntentID.String(), launch.PhoneNumber,
		string(launch.Status), launch.Error, durationMs, launch.LaunchedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("outcome store: append launch: %w", err)
	}
	return nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
