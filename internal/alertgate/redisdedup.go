package alertgate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup backs DedupCache with a Redis SETNX-with-TTL, letting
// multiple Supervisor instances share one dedup window (§4.18).
type RedisDedup struct {
	client *redis.Client
	prefix string
}

// NewRedisDedup builds a dedup cache against an existing client. prefix is
// prepended to every key, e.g. "surveil:dedup:".
func NewRedisDedup(client *redis.Client, prefix string) *RedisDedup {
	return &RedisDedup{client: client, prefix: prefix}
}

func (r *RedisDedup) SeenRecently(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true when the key was newly set (i.e. not seen before).
	return !set, nil
}
