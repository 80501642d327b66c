package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a Redis export lock survives a crashed holder.
const DefaultLockTTL = 2 * time.Minute

// Guard rejects re-entry into an export that is already running for the
// same report. Acquire returns ok=false when the key is held. The returned
// release func must be called on every path once ok is true.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// =============================================================================
// In-Process Guard
// =============================================================================

// MemoryGuard guards exports within a single process.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}

// =============================================================================
// Redis Guard
// =============================================================================

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose lock expired cannot release somebody else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisGuard guards exports across server instances with SET NX locks.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a guard on client. A zero ttl uses DefaultLockTTL.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisGuard{
		client: client,
		prefix: "solarcheck:export:",
		ttl:    ttl,
		logger: logger,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	lockKey := g.prefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, lockKey, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire export lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			deleted, err := releaseScript.Run(ctx, g.client, []string{lockKey}, token).Int()
			if err != nil {
				// The lock stays held until its TTL expires.
				g.logger.Warn("Failed to release export lock", "error", err, "key", lockKey, "ttl", g.ttl)
				return
			}
			if deleted == 0 {
				g.logger.Debug("Export lock expired before release", "key", lockKey)
			}
		})
	}, true, nil
}
