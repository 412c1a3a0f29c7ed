package dedup

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator answers whether a key should be processed. The first call for
// a key returns true and marks it; later calls return false.
type Deduplicator interface {
	ShouldProcess(ctx context.Context, key string) bool
}

// CanonicalURL normalizes a URL for crawl-time dedup: lowercased scheme and
// host, fragment dropped. Unparseable input is returned as-is.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}

// MemorySet is the single-run, in-memory visited set. All mutations happen
// under one mutex, so it is safe to share across the image worker pool.
type MemorySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{seen: make(map[string]struct{})}
}

func (m *MemorySet) ShouldProcess(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return false
	}
	m.seen[key] = struct{}{}
	return true
}

func (m *MemorySet) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

const visitedKeyPrefix = "catalog:visited:"

// RedisSet is the cross-run visited set. SETNX with a TTL makes the check
// and the mark one atomic step. Redis errors degrade to "process it" so a
// dedup outage never stalls a run.
type RedisSet struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisSet(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSet {
	return &RedisSet{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "dedup"),
	}
}

func (r *RedisSet) ShouldProcess(ctx context.Context, key string) bool {
	ok, err := r.client.SetNX(ctx, visitedKeyPrefix+key, "1", r.ttl).Result()
	if err != nil {
		r.logger.Warn("dedup check failed, processing anyway", "key", key, "error", err)
		return true
	}
	return ok
}
