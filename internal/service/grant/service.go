// Package grant answers "may this device place calls" from durable grants with a
// Redis read-through cache in front.
package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acme/direct-calling/internal/domain"
	"github.com/acme/direct-calling/internal/repository"
	"github.com/acme/direct-calling/pkg/logger"
)

// Cache is the subset of a key/value store the service needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service reads and records permission grants.
type Service struct {
	repo   repository.GrantRepository
	cache  Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewService builds the grant service. cache may be nil.
func NewService(repo repository.GrantRepository, cache Cache, ttl time.Duration, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: lg}
}

// Granted reports the current grant. Devices without a recorded decision are not granted.
func (s *Service) Granted(ctx context.Context, deviceID string, permission domain.Permission) (bool, error) {
	key := cacheKey(deviceID, permission)
	if s.cache != nil {
		value, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("grant service: cache read", zap.String("device_id", deviceID), zap.Error(err))
		} else if ok {
			return value == "1", nil
		}
	}

	grant, err := s.repo.Get(ctx, deviceID, permission)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("grant service: load: %w", err)
		}
		grant = &domain.Grant{DeviceID: deviceID, Permission: permission}
	}

	s.remember(ctx, key, grant.Granted)
	return grant.Granted, nil
}

// Record stores a decision of the permission subsystem.
func (s *Service) Record(ctx context.Context, deviceID string, permission domain.Permission, granted bool) error {
	grant := domain.Grant{
		DeviceID:   deviceID,
		Permission: permission,
		Granted:    granted,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Record(ctx, grant); err != nil {
		return fmt.Errorf("grant service: record: %w", err)
	}
	s.remember(ctx, cacheKey(deviceID, permission), granted)
	return nil
}

func (s *Service) remember(ctx context.Context, key string, granted bool) {
	if s.cache == nil {
		return
	}
	value := "0"
	if granted {
		value = "1"
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("grant service: cache write", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(deviceID string, permission domain.Permission) string {
	return fmt.Sprintf("directcall:grant:%s:%s", deviceID, permission)
}
