package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calbook/internal/config"
	"calbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSlotCache keys cached slot lists by the event type's generation
// counter. Invalidate bumps the counter, which orphans every cached day
// at once; orphaned entries age out via TTL.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{client: client, ttl: ttl}
}

func (c *RedisSlotCache) generation(ctx context.Context, eventTypeID int64) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(eventTypeID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get slot cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisSlotCache) GetSlots(ctx context.Context, eventTypeID int64, date string) ([]models.SlotView, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	gen, err := c.generation(ctx, eventTypeID)
	if err != nil {
		return nil, false, err
	}

	val, err := c.client.Get(ctx, slotKey(eventTypeID, gen, date)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get slots from redis: %w", err)
	}

	var slots []models.SlotView
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached slots: %w", err)
	}
	return slots, true, nil
}

func (c *RedisSlotCache) SetSlots(ctx context.Context, eventTypeID int64, date string, slots []models.SlotView) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	gen, err := c.generation(ctx, eventTypeID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slots: %w", err)
	}
	if err := c.client.Set(ctx, slotKey(eventTypeID, gen, date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set slots in redis: %w", err)
	}
	return nil
}

func (c *RedisSlotCache) Invalidate(ctx context.Context, eventTypeID int64) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Incr(ctx, genKey(eventTypeID)).Err(); err != nil {
		return fmt.Errorf("failed to bump slot cache generation: %w", err)
	}
	return nil
}

func genKey(eventTypeID int64) string {
	return fmt.Sprintf("slot_gen:%d", eventTypeID)
}

func slotKey(eventTypeID, gen int64, date string) string {
	return fmt.Sprintf("slots:%d:%d:%s", eventTypeID, gen, date)
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
