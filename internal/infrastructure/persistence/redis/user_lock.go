package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/learning-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCK
// Serializes completions of one user across instances with SET NX PX.
// Each holder writes a random token and only deletes the key while it still
// holds that token, so an expired lock taken over by someone else is never
// released by the previous holder.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockNotAcquired is returned when the lock stays taken for the whole wait.
var ErrLockNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes KEYS[1] only if it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLockConfig configures UserLock.
type UserLockConfig struct {
	// TTL - lock lifetime. It must exceed one completion round trip.
	TTL time.Duration

	// Wait - how long LockUser keeps trying before giving up.
	Wait time.Duration

	// RetryInterval - pause between attempts.
	RetryInterval time.Duration

	Logger *slog.Logger
}

// DefaultUserLockConfig returns default configuration.
func DefaultUserLockConfig() UserLockConfig {
	return UserLockConfig{
		TTL:           5 * time.Second,
		Wait:          2 * time.Second,
		RetryInterval: 25 * time.Millisecond,
	}
}

// UserLock implements command.Locker on Redis.
type UserLock struct {
	client redis.UniversalClient
	prefix string
	config UserLockConfig
	logger *slog.Logger
}

// NewUserLock creates a new UserLock.
func NewUserLock(client redis.UniversalClient, prefix string, cfg UserLockConfig) *UserLock {
	def := DefaultUserLockConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Wait < 0 {
		cfg.Wait = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &UserLock{client: client, prefix: prefix, config: cfg, logger: cfg.Logger}
}

func (l *UserLock) key(id shared.UserID) string {
	return l.prefix + "lock:user:" + id.String()
}

// LockUser acquires the lock of id. The returned func releases it.
func (l *UserLock) LockUser(ctx context.Context, id shared.UserID) (func(), error) {
	key := l.key(id)
	token := uuid.NewString()
	deadline := time.Now().Add(l.config.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if !time.Now().Add(l.config.RetryInterval).Before(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, ErrLockNotAcquired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.config.RetryInterval):
		}
	}
}

func (l *UserLock) release(key, token string) {
	// Release even if the request context is already gone.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("failed to release user lock", "key", key, "error", err)
	}
}
