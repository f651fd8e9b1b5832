package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the PageCache used in production
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(url, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisCache) MarkViewed(ctx context.Context, key string, window time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, r.prefix+viewPrefix+key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return created, nil
}

func (r *RedisCache) InvalidateArticle(ctx context.Context, slug, category string) error {
	keys := pageKeys(slug, category)
	for i := range keys {
		keys[i] = r.prefix + keys[i]
	}

	iter := r.client.Scan(ctx, 0, r.prefix+feedPattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning keys: %w", err)
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error deleting keys: %w", err)
	}
	return nil
}
