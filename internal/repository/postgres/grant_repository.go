package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/repository"
)

// GrantRepository implements repository.GrantRepository using PostgreSQL.
type GrantRepository struct {
	db *sqlx.DB
}

// NewGrantRepository constructs a new repository.
func NewGrantRepository(db *sqlx.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

type grantRecord struct {
	DeviceID   string    `db:"device_id"`
	Permission string    `db:"permission"`
	Granted    bool      `db:"granted"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Get fetches the current grant for a device.
func (r *GrantRepository) Get(ctx context.Context, deviceID string, permission domain.Permission) (*domain.Grant, error) {
	var record grantRecord
	err := r.db.QueryRowxContext(ctx, `SELECT device_id, permission, granted, updated_at
		FROM call_permissions WHERE device_id = $1 AND permission = $2`, deviceID, string(permission)).StructScan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("grant repo: get: %w", err)
	}
	return &domain.Grant{
		DeviceID:   record.DeviceID,
		Permission: domain.Permission(record.Permission),
		Granted:    record.Granted,
		UpdatedAt:  record.UpdatedAt,
	}, nil
}

// Record upserts the grant and appends it to the decision history.
func (r *GrantRepository) Record(ctx context.Context, grant domain.Grant) error {
	if grant.UpdatedAt.IsZero() {
		grant.UpdatedAt = time.Now().UTC()
	}
	params := map[string]any{
		"id":         uuid.New(),
		"device_id":  grant.DeviceID,
		"permission": string(grant.Permission),
		"granted":    grant.Granted,
		"updated_at": grant.UpdatedAt,
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO call_permissions (device_id, permission, granted, updated_at)
			VALUES (:device_id, :permission, :granted, :updated_at)
			ON CONFLICT (device_id, permission) DO UPDATE SET granted = EXCLUDED.granted, updated_at = EXCLUDED.updated_at`, params); err != nil {
			return fmt.Errorf("grant repo: upsert: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO call_permission_events (id, device_id, permission, granted, decided_at)
			VALUES (:id, :device_id, :permission, :granted, :updated_at)`, params); err != nil {
			return fmt.Errorf("grant repo: append event: %w", err)
		}
		return nil
	})
}
