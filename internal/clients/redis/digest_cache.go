package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/curriculum-backend/internal/domain"
)

const digestKeyPrefix = "curriculum:digest:"

// DigestCache stores Pass-1 digests as JSON strings with a TTL.
type DigestCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewDigestCache(rdb *goredis.Client, ttl time.Duration) *DigestCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &DigestCache{rdb: rdb, ttl: ttl}
}

func (c *DigestCache) Get(ctx context.Context, key string) (*types.ContentDigest, bool, error) {
	raw, err := c.rdb.Get(ctx, digestKeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var d types.ContentDigest
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, false, err
	}
	return &d, true, nil
}

func (c *DigestCache) Set(ctx context.Context, key string, d *types.ContentDigest) error {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, digestKeyPrefix+key, raw, c.ttl).Err()
}
