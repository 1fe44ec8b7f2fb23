package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

const latestKeyPrefix = "chat:latest:"

func NewRedisClient(ctx context.Context, cfg utils.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis: address is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return client, nil
}

// RedisLatestPointer stores each user's most recently written conversation id.
type RedisLatestPointer struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLatestPointer(client *redis.Client, ttl time.Duration) *RedisLatestPointer {
	return &RedisLatestPointer{client: client, ttl: ttl}
}

func (p *RedisLatestPointer) GetLatest(ctx context.Context, userID string) (string, error) {
	value, err := p.client.Get(ctx, latestKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: get latest conversation: %w", err)
	}
	return value, nil
}

func (p *RedisLatestPointer) SetLatest(ctx context.Context, userID, conversationID string) error {
	if err := p.client.Set(ctx, latestKeyPrefix+userID, conversationID, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest conversation: %w", err)
	}
	return nil
}

func (p *RedisLatestPointer) ClearLatest(ctx context.Context, userID string) error {
	if err := p.client.Del(ctx, latestKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis: clear latest conversation: %w", err)
	}
	return nil
}
