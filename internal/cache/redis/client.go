package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/pkg/logger"
)

const (
	predictionPrefix = "prediction:"
	servedModelKey   = "model:served"
)

type Client struct {
	client *redis.Client
}

func NewClient(ctx context.Context, host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetPrediction(ctx context.Context, key string, prediction any, ttl time.Duration) error {
	data, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	err = c.client.Set(ctx, predictionPrefix+key, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set prediction cache: %w", err)
	}

	logger.Debug("Prediction cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetPrediction(ctx context.Context, key string, prediction any) (bool, error) {
	data, err := c.client.Get(ctx, predictionPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	err = json.Unmarshal(data, prediction)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	logger.Debug("Prediction cache hit", zap.String("key", key))
	return true, nil
}

// InvalidatePredictions drops every cached prediction, e.g. after a new
// model has been trained.
func (c *Client) InvalidatePredictions(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, predictionPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Prediction cache invalidated", zap.Int("removed", removed))
	return removed, nil
}

// SyncModelVersion records version as the served model. When a different
// version was served before, cached predictions are dropped and the number
// removed is returned.
func (c *Client) SyncModelVersion(ctx context.Context, version string) (int, error) {
	previous, err := c.client.GetSet(ctx, servedModelKey, version).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to record served model: %w", err)
	}
	if previous == "" || previous == version {
		return 0, nil
	}

	logger.Info("Served model changed",
		zap.String("previous", previous),
		zap.String("current", version),
	)
	return c.InvalidatePredictions(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
