package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/pkg/logger"
)

const suggestionPrefix = "suggestion:"

type Client struct {
	client *redis.Client
}

func NewClient(ctx context.Context, host string, port int, password string, db int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetSuggestion(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}

	err = c.client.Set(ctx, suggestionPrefix+key, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set suggestion cache: %w", err)
	}

	logger.Debug("Suggestion cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetSuggestion(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, suggestionPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get suggestion cache: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal suggestion: %w", err)
	}

	logger.Debug("Suggestion cache hit", zap.String("key", key))
	return true, nil
}

// FlushSuggestions drops every cached suggestion and reports how many keys
// were removed.
func (c *Client) FlushSuggestions(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, suggestionPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Suggestion cache flushed", zap.Int("removed", removed))
	return removed, nil
}
