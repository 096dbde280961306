package list

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache remembers provider liveness per tenant.
type AvailabilityCache interface {
	Get(ctx context.Context, key string) (available bool, ok bool)
	Set(ctx context.Context, key string, available bool, ttl time.Duration)
}

type availabilityEntry struct {
	available bool
	expires   time.Time
}

// MemoryAvailability is a process-local AvailabilityCache.
type MemoryAvailability struct {
	mu      sync.Mutex
	entries map[string]availabilityEntry
	now     func() time.Time
}

func NewMemoryAvailability() *MemoryAvailability {
	return &MemoryAvailability{
		entries: make(map[string]availabilityEntry),
		now:     time.Now,
	}
}

func (m *MemoryAvailability) Get(_ context.Context, key string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return false, false
	}
	return e.available, true
}

func (m *MemoryAvailability) Set(_ context.Context, key string, available bool, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = availabilityEntry{available: available, expires: m.now().Add(ttl)}
}

// RedisAvailability shares liveness between server and worker processes.
// Redis errors are logged and treated as a cache miss.
type RedisAvailability struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

func NewRedisAvailability(client redis.UniversalClient, log *slog.Logger) *RedisAvailability {
	if log == nil {
		log = slog.Default()
	}
	return &RedisAvailability{client: client, prefix: "mailinglist:available:", log: log}
}

func (r *RedisAvailability) Get(ctx context.Context, key string) (bool, bool) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WarnContext(ctx, "availability cache read failed", slog.String("error", err.Error()))
		}
		return false, false
	}
	return v == "1", true
}

func (r *RedisAvailability) Set(ctx context.Context, key string, available bool, ttl time.Duration) {
	v := "0"
	if available {
		v = "1"
	}
	if err := r.client.Set(ctx, r.prefix+key, v, ttl).Err(); err != nil {
		r.log.WarnContext(ctx, "availability cache write failed", slog.String("error", err.Error()))
	}
}

var (
	_ AvailabilityCache = (*MemoryAvailability)(nil)
	_ AvailabilityCache = (*RedisAvailability)(nil)
)
