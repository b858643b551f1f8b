package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
)

// SettingsCache caches website settings reads between stage invocations.
// A cache failure is never fatal: Get misses fall through to the record
// store and Set errors are logged by the caller.
type SettingsCache interface {
	Get(ctx context.Context, websiteID string) (*models.WebsiteSettings, bool)
	Set(ctx context.Context, settings *models.WebsiteSettings, ttl time.Duration) error
	Close() error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(redisURL, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: prefix + "settings:",
	}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Get(ctx context.Context, websiteID string) (*models.WebsiteSettings, bool) {
	data, err := r.client.Get(ctx, r.prefix+websiteID).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn().Err(err).Str("website_id", websiteID).Msg("Settings cache read failed")
		}
		return nil, false
	}

	var settings models.WebsiteSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		// Corrupt entry: drop it and fall through to the record store.
		logger.Warn().Err(err).Str("website_id", websiteID).Msg("Corrupt settings cache entry")
		r.client.Del(ctx, r.prefix+websiteID)
		return nil, false
	}
	return &settings, true
}

func (r *RedisCache) Set(ctx context.Context, settings *models.WebsiteSettings, ttl time.Duration) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return r.client.Set(ctx, r.prefix+settings.WebsiteID, data, ttl).Err()
}
