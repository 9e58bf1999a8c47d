package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

const boardKey = "market:board"

func treasuryKey(key domain.TreasuryKey) string {
	return "treasury:" + key.Principal + ":" + key.Medium.String()
}

func (c *RedisCache) SetBoard(ctx context.Context, snap *domain.MarketSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, boardKey, b, c.ttl).Err()
}

func (c *RedisCache) GetBoard(ctx context.Context) (*domain.MarketSnapshot, error) {
	b, err := c.client.Get(ctx, boardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) SetTreasuryBalance(ctx context.Context, key domain.TreasuryKey, balance uint64) error {
	return c.client.Set(ctx, treasuryKey(key), strconv.FormatUint(balance, 10), c.ttl).Err()
}

func (c *RedisCache) GetTreasuryBalance(ctx context.Context, key domain.TreasuryKey) (uint64, bool, error) {
	res, err := c.client.Get(ctx, treasuryKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	bal, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return bal, true, nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, boardKey).Err()
}
