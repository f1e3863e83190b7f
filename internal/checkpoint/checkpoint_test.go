package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"harvest/internal/models"
)

var lava = models.Target{Code: "1001", Name: "Lava Dragon", URL: "1001/lava-dragon"}

func fragment() models.Fragment {
	return models.Fragment{
		Name:          "Lava Dragon",
		HatchingTimes: models.List([]string{"3 hours"}, models.HatchingNotFound),
		ImageURLs:     models.Missing(models.NoImages),
	}
}

// setupTestRedis connects to a local Redis, skipping when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test DB: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestKey(t *testing.T) {
	c, err := New(Options{Namespace: "ditlep:en"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Key(lava); got != "harvest:ditlep:en:1001-lava-dragon" {
		t.Errorf("Key = %q", got)
	}
	raw := models.TargetFromName("lava-dragon")
	if got := c.Key(raw); got != "harvest:ditlep:en:lava-dragon" {
		t.Errorf("Key(raw) = %q", got)
	}
}

func TestMemoryOnly(t *testing.T) {
	ctx := context.Background()
	c, err := New(Options{Size: 2})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := c.Get(ctx, lava); ok || err != nil {
		t.Fatalf("empty checkpoint Get = %v, %v", ok, err)
	}
	if err := c.Put(ctx, lava, fragment()); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, lava)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.HatchingTimes.First() != "3 hours" {
		t.Errorf("fragment = %+v", got)
	}

	for _, code := range []string{"1", "2"} {
		_ = c.Put(ctx, models.Target{Code: code, Name: "x"}, fragment())
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 after eviction", c.Len())
	}
	if _, ok, _ := c.Get(ctx, lava); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestRedisLayer(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	writer, _ := New(Options{Namespace: "test", Redis: client, TTL: time.Minute})
	if err := writer.Put(ctx, lava, fragment()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A fresh process only sees Redis.
	reader, _ := New(Options{Namespace: "test", Redis: client})
	got, ok, err := reader.Get(ctx, lava)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.ImageURLs.Sentinel != models.NoImages {
		t.Errorf("sentinel lost through redis: %+v", got.ImageURLs)
	}
	if reader.Len() != 1 {
		t.Error("redis hit should be promoted to the lru")
	}

	ttl, err := client.TTL(ctx, writer.Key(lava)).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("TTL = %v, %v", ttl, err)
	}
}

func TestRedisInvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	c, _ := New(Options{Namespace: "test", Redis: client})
	client.Set(ctx, c.Key(lava), "{not json", 0)

	if _, _, err := c.Get(ctx, lava); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get error = %v, want ErrInvalidEntry", err)
	}
}
