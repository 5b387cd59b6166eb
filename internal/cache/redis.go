package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-share/internal/models"
)

const genKey = "rides:listing:gen"

// Redis caches listings under a generation-prefixed key. Invalidation bumps
// the generation counter so stale entries simply age out via TTL instead of
// needing a scan-and-delete.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string, ttl time.Duration) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, ttl: ttl}
}

func (r *Redis) key(ctx context.Context, key string) string {
	gen, _ := r.client.Get(ctx, genKey).Int64()
	return "rides:listing:" + strconv.FormatInt(gen, 10) + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]*models.Ride, bool) {
	b, err := r.client.Get(ctx, r.key(ctx, key)).Bytes()
	if err != nil {
		return nil, false
	}
	var rides []*models.Ride
	if err := json.Unmarshal(b, &rides); err != nil {
		return nil, false
	}
	return rides, true
}

func (r *Redis) Set(ctx context.Context, key string, rides []*models.Ride) {
	b, err := json.Marshal(rides)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.key(ctx, key), b, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context) {
	_ = r.client.Incr(ctx, genKey).Err()
}
