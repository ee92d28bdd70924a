package repository

import (
	"context"

	"github.com/acme/direct-calling/internal/domain"
	apperrors "github.com/acme/direct-calling/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
)

// GrantRepository persists the permission subsystem's decisions.
type GrantRepository interface {
	Get(ctx context.Context, deviceID string, permission domain.Permission) (*domain.Grant, error)
	Record(ctx context.Context, grant domain.Grant) error
}

// OutcomeStore journals resolved bridge requests and provider launches.
type OutcomeStore interface {
	AppendOutcome(ctx context.Context, outcome domain.Outcome) error
	ListOutcomes(ctx context.Context, deviceID string, limit int, pagingState []byte) ([]domain.Outcome, []byte, error)
	AppendLaunch(ctx context.Context, launch domain.Launch) error
}
