package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients holds two connection pools the server keeps to Redis.
//
// Cache serves request-path commands: the cached guru list, the session
// denylist and PUBLISH of live conversation updates.
//
// PubSub is reserved for the websocket hub. Its subscriptions block a
// connection for as long as they are open, so they never compete with Cache
// traffic for pool slots.
type RedisClients struct {
	Cache  *redis.Client
	PubSub *redis.Client
}

// NewRedisClients parses redisURL and pings both clients before returning.
func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheOpt := *opt
	cacheOpt.ClientName = "guruchat-cache"
	cacheClient, err := dialRedis(ctx, &cacheOpt)
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis (cache): %w", err)
	}

	pubsubOpt := *opt
	pubsubOpt.ClientName = "guruchat-pubsub"
	pubsubClient, err := dialRedis(ctx, &pubsubOpt)
	if err != nil {
		cacheClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Cache:  cacheClient,
		PubSub: pubsubClient,
	}, nil
}

func dialRedis(ctx context.Context, opt *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisClients) Close() {
	r.Cache.Close()
	r.PubSub.Close()
}
