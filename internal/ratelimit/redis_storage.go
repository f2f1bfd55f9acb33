// Package ratelimit keeps fiber limiter counters in redis so every API
// instance enforces the same windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ratelimit:"

// RedisStorage implements fiber.Storage on top of a redis client.
type RedisStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ fiber.Storage = (*RedisStorage)(nil)

// NewRedisStorage connects to redisURL and checks the connection.
func NewRedisStorage(redisURL string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client), nil
}

func NewRedisStorageWithClient(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client:  client,
		prefix:  defaultPrefix,
		timeout: 2 * time.Second,
	}
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + k
}

func (s *RedisStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns nil without error for missing keys, as fiber expects.
func (s *RedisStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores val. A zero exp keeps the key until it is deleted.
func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.Set(ctx, s.key(key), val, exp).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Reset removes every key under the storage prefix.
func (s *RedisStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*s.timeout)
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis reset: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Ping checks the connection, for health reporting.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
