package news

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

const (
	redisKeyPrefix = "autotrade:news:"
	redisTTL       = 12 * time.Hour
)

// RedisCache shares the per-period headlines between processes.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, period string) ([]domain.NewsHeadline, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+period).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	var items []domain.NewsHeadline
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false, errors.Wrap(err, "decode cached headlines")
	}
	return items, true, nil
}

func (c *RedisCache) Set(ctx context.Context, period string, items []domain.NewsHeadline) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encode headlines")
	}
	if err := c.client.Set(ctx, redisKeyPrefix+period, string(data), redisTTL).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
