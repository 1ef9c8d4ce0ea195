package keyedstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const prefijoClave = "sigej:fact:"

// Redis is the distributed implementation. Uses SET with expiry so the fact
// and its TTL are written atomically; Redis handles the expiry itself.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Marcar(ctx context.Context, clave string, ttl time.Duration) error {
	return r.client.Set(ctx, prefijoClave+clave, "1", ttl).Err()
}

func (r *Redis) Vigente(ctx context.Context, clave string) (bool, error) {
	_, err := r.client.Get(ctx, prefijoClave+clave).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
