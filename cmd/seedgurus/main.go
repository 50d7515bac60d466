package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"guruchat-backend/internal/cache"
	"guruchat-backend/internal/config"
	"guruchat-backend/internal/database"
	"guruchat-backend/internal/logger"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
	"guruchat-backend/internal/seed"
)

func main() {
	file := flag.String("file", "", "TOML file with [[gurus]] entries (defaults to the built-in personas)")
	flag.Parse()

	cfg := config.Load()

	zlog, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	gurus, err := loadGurus(*file)
	if err != nil {
		zlog.Fatal("failed to load gurus", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := repository.Open(cfg, zlog)
	if err != nil {
		zlog.Fatal("store initialization failed", zap.Error(err))
	}
	defer store.Close(ctx)

	deleted, err := store.Gurus.ReplaceAll(ctx, gurus)
	if err != nil {
		zlog.Fatal("seeding failed", zap.Error(err))
	}
	zlog.Info("gurus seeded", zap.Int64("deleted", deleted), zap.Int("inserted", len(gurus)))

	// Running servers would otherwise serve the old list until the TTL lapses.
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			zlog.Warn("could not reach redis to invalidate guru cache", zap.Error(err))
			return
		}
		defer redisClients.Close()
		if err := cache.NewRedisGuruCache(redisClients.Cache, cfg.GuruCacheTTL).Invalidate(ctx); err != nil {
			zlog.Warn("guru cache invalidation failed", zap.Error(err))
		}
	}
}

func loadGurus(path string) ([]models.Guru, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}
