package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces cache entries away from other application keys
const redisKeyPrefix = "recipecache:"

// redisCmdable is the subset of the Redis client the cache uses
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis shares cached provider responses between processes, so entries
// warmed by one (the background worker) serve reads from another (the api).
// Freshness is still enforced at read time via maxAge; the ttl given at
// construction is a server-side expiry so abandoned entries do not
// accumulate.
type Redis struct {
	client redisCmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Read implements Reader interface
func (r *Redis) Read(key string, maxAge time.Duration) (*Entry, bool) {
	ctx := context.Background()
	b, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		r.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}

	if maxAge > 0 && r.now().Sub(entry.FetchedAt) >= maxAge {
		r.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return &entry, true
}

// Write implements Writer interface
func (r *Redis) Write(key string, entry *Entry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = r.now()
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), redisKeyPrefix+key, b, r.ttl).Err()
}

// KeyFor implements KeyGenerator interface
func (r *Redis) KeyFor(path string, params map[string]string) string {
	return KeyFor(path, params)
}
