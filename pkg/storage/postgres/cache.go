package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/storage"
)

// RedisCache is a read-through cache in front of the mother store and
// the per-user granted-id lists. Panels invalidate on every write, so a
// short TTL is enough to keep it honest.
type RedisCache struct {
	client *redis.Client
	config storage.Config
}

// NewRedisCache connects to Redis using the URL in cfg.
func NewRedisCache(cfg storage.Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, config: cfg}, nil
}

func motherKey(id int64) string {
	return fmt.Sprintf("mother:%d", id)
}

func grantedKey(userID int64, objectType string) string {
	return fmt.Sprintf("granted:%d:%s", userID, objectType)
}

// GetMother returns a cached mother, or nil on a miss.
func (c *RedisCache) GetMother(ctx context.Context, id int64) (*models.Mother, error) {
	data, err := c.client.Get(ctx, motherKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var m models.Mother
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.client.Del(ctx, motherKey(id))
		return nil, fmt.Errorf("failed to unmarshal mother: %w", err)
	}
	return &m, nil
}

// SetMother stores a mother record.
func (c *RedisCache) SetMother(ctx context.Context, m *models.Mother) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mother: %w", err)
	}
	return c.client.Set(ctx, motherKey(m.ID), data, c.config.CacheTTL["mother"]).Err()
}

// InvalidateMother removes a mother record from cache.
func (c *RedisCache) InvalidateMother(ctx context.Context, id int64) error {
	return c.client.Del(ctx, motherKey(id)).Err()
}

// GetGrantedIDs returns the cached granted object ids of a user, or nil
// on a miss. A cached empty list comes back as an empty non-nil slice.
func (c *RedisCache) GetGrantedIDs(ctx context.Context, userID int64, objectType string) ([]int64, error) {
	data, err := c.client.Get(ctx, grantedKey(userID, objectType)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	ids := []int64{}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.client.Del(ctx, grantedKey(userID, objectType))
		return nil, fmt.Errorf("failed to unmarshal granted ids: %w", err)
	}
	return ids, nil
}

// SetGrantedIDs stores the granted object ids of a user.
func (c *RedisCache) SetGrantedIDs(ctx context.Context, userID int64, objectType string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal granted ids: %w", err)
	}
	return c.client.Set(ctx, grantedKey(userID, objectType), data, c.config.CacheTTL["granted_ids"]).Err()
}

// InvalidateUser removes every granted-id list of a user.
func (c *RedisCache) InvalidateUser(ctx context.Context, userID int64) error {
	return c.InvalidatePatterns(ctx, fmt.Sprintf("granted:%d:*", userID))
}

// InvalidatePatterns removes keys matching patterns.
func (c *RedisCache) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// PoolStats returns connection pool statistics.
func (c *RedisCache) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Client exposes the underlying connection for health checks and the
// distributed rate limiter, which share it.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}
