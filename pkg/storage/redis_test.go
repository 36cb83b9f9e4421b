//go:build integration

package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return strings.TrimPrefix(endpoint, "redis://")
}

func TestRedisCache_NewRedisCache_Errors(t *testing.T) {
	if _, err := NewRedisCache("", "", 0, time.Minute); err == nil {
		t.Error("expected error for empty address")
	}
	if _, err := NewRedisCache("localhost:6379", "", -1, time.Minute); err == nil {
		t.Error("expected error for negative db")
	}
	if _, err := NewRedisCache("invalid:99999", "", 0, time.Minute); err == nil {
		t.Error("expected error for unreachable address")
	}
}

func TestRedisCache_PutGet(t *testing.T) {
	addr := setupRedisContainer(t)

	c, err := NewRedisCache(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	entry := Entry{Key: "tips:deadbeef", Kind: "tips", Lines: []string{"a", "b"}}
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := c.Get(ctx, entry.Key)
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if got.Kind != "tips" || len(got.Lines) != 2 || got.Lines[1] != "b" {
		t.Errorf("unexpected entry: %+v", got)
	}

	if _, found, err := c.Get(ctx, "tips:missing"); err != nil || found {
		t.Errorf("missing key: found %v, err %v", found, err)
	}
	if err := c.Put(ctx, Entry{Key: "bad key"}); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestRedisCache_TTL_Expiration(t *testing.T) {
	addr := setupRedisContainer(t)

	c, err := NewRedisCache(addr, "", 0, time.Second)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Put(ctx, Entry{Key: "short"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(2 * time.Second)

	if _, found, err := c.Get(ctx, "short"); err != nil || found {
		t.Errorf("expected expired entry, found %v err %v", found, err)
	}
}

func TestRedisCache_Close_Idempotent(t *testing.T) {
	addr := setupRedisContainer(t)

	c, err := NewRedisCache(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
