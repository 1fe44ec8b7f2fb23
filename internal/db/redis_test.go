package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/wellbeing-chat/internal/db"
	"github.com/wuwenbin0122/wellbeing-chat/internal/utils"
)

func TestRedisLatestPointer(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	ctx := context.Background()
	client, err := db.NewRedisClient(ctx, utils.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	defer client.Close()

	pointer := db.NewRedisLatestPointer(client, time.Minute)
	userID := uuid.NewString()
	defer client.Del(ctx, "chat:latest:"+userID)

	if got, err := pointer.GetLatest(ctx, userID); err != nil || got != "" {
		t.Fatalf("expected empty pointer, got %q (%v)", got, err)
	}

	if err := pointer.SetLatest(ctx, userID, "conv-1"); err != nil {
		t.Fatalf("set latest failed: %v", err)
	}
	if got, err := pointer.GetLatest(ctx, userID); err != nil || got != "conv-1" {
		t.Fatalf("expected conv-1, got %q (%v)", got, err)
	}

	if err := pointer.ClearLatest(ctx, userID); err != nil {
		t.Fatalf("clear latest failed: %v", err)
	}
	if got, err := pointer.GetLatest(ctx, userID); err != nil || got != "" {
		t.Fatalf("expected cleared pointer, got %q (%v)", got, err)
	}
}
