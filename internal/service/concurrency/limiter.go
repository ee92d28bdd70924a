package concurrency

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', key) or '0')
if current < limit then
  current = redis.call('INCR', key)
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 1 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)

// Limiter bounds how many call launches run at once for one device.
type Limiter struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
}

// NewLimiter constructs a per-device launch limiter. A non-positive limit disables it.
func NewLimiter(client *redis.Client, limit int, ttl time.Duration) *Limiter {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Limiter{client: client, limit: limit, ttl: ttl}
}

// Acquire attempts to reserve a launch slot for the device.
func (l *Limiter) Acquire(ctx context.Context, deviceID string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 || deviceID == "" {
		return true, nil
	}
	res, err := acquireScript.Run(ctx, l.client, []string{l.key(deviceID)}, l.limit, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("concurrency acquire: %w", err)
	}
	return res == 1, nil
}

// Release frees a previously acquired slot.
func (l *Limiter) Release(ctx context.Context, deviceID string) error {
	if l == nil || l.client == nil || l.limit <= 0 || deviceID == "" {
		return nil
	}
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key(deviceID)}).Int(); err != nil {
		return fmt.Errorf("concurrency release: %w", err)
	}
	return nil
}

func (l *Limiter) key(deviceID string) string {
	return fmt.Sprintf("directcall:device:%s:launching", deviceID)
}
