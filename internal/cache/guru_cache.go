package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"guruchat-backend/internal/models"
)

const guruListKey = "gurus:all"

// GuruCache holds the full persona list. Gurus only change through the
// seeder, which invalidates the entry.
type GuruCache interface {
	GetGurus(ctx context.Context) ([]models.Guru, bool)
	SetGurus(ctx context.Context, gurus []models.Guru)
	Invalidate(ctx context.Context) error
}

type RedisGuruCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuruCache(client *redis.Client, ttl time.Duration) *RedisGuruCache {
	return &RedisGuruCache{client: client, ttl: ttl}
}

func (c *RedisGuruCache) GetGurus(ctx context.Context) ([]models.Guru, bool) {
	raw, err := c.client.Get(ctx, guruListKey).Bytes()
	if err != nil {
		return nil, false
	}
	var gurus []models.Guru
	if err := json.Unmarshal(raw, &gurus); err != nil {
		return nil, false
	}
	return gurus, true
}

func (c *RedisGuruCache) SetGurus(ctx context.Context, gurus []models.Guru) {
	data, err := json.Marshal(gurus)
	if err != nil {
		return
	}
	c.client.Set(ctx, guruListKey, data, c.ttl)
}

func (c *RedisGuruCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, guruListKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate guru cache: %w", err)
	}
	return nil
}

// NopGuruCache is used when Redis is not configured.
type NopGuruCache struct{}

func (NopGuruCache) GetGurus(context.Context) ([]models.Guru, bool) { return nil, false }
func (NopGuruCache) SetGurus(context.Context, []models.Guru)        {}
func (NopGuruCache) Invalidate(context.Context) error               { return nil }
