package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const orderIDLockKey = "tillpoint:order_id:lock"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker serializes order id allocation across instances sharing one
// database. A nil Locker is valid and means single-instance deployment.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// AcquireAllocation attempts to take the cross-instance allocation lock.
// The returned token fences the release against TTL expiry.
func (l *Locker) AcquireAllocation(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, orderIDLockKey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseAllocation drops the lock only while token still owns it, so a
// holder that outlived its TTL cannot release a successor's lock.
func (l *Locker) ReleaseAllocation(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{orderIDLockKey}, token).Err()
}
