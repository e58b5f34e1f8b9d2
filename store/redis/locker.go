// Package redisstore provides a cross-process core.InstanceLocker on Redis,
// so several costhook processes can share one database without running the
// same instance's sync twice.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-costhook/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "costhook:sync-lock:"

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Option func(*Locker)

func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			l.prefix = trimmed
		}
	}
}

type Locker struct {
	client redis.UniversalClient
	prefix string
}

func NewLocker(client redis.UniversalClient, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	locker := &Locker{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(locker)
	}
	return locker, nil
}

// NewLockerFromURL parses a redis:// URL and verifies the connection.
func NewLockerFromURL(ctx context.Context, url string, opts ...Option) (*Locker, error) {
	parsed, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse redis url: %w", err)
	}
	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: connect to redis: %w", err)
	}
	return NewLocker(client, opts...)
}

func (l *Locker) Acquire(ctx context.Context, providerID string, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redisstore: locker is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, fmt.Errorf("redisstore: provider id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	key := l.prefix + providerID
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: provider %q", core.ErrSyncLockHeld, providerID)
	}
	return &lockHandle{client: l.client, key: key, token: token}, nil
}

// Close releases the underlying client.
func (l *Locker) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

type lockHandle struct {
	client redis.UniversalClient
	key    string
	token  string
	once   sync.Once
	err    error
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if err := unlockScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil && err != redis.Nil {
			h.err = fmt.Errorf("redisstore: release lock: %w", err)
		}
	})
	return h.err
}

var _ core.InstanceLocker = (*Locker)(nil)
