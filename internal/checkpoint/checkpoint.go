// Package checkpoint remembers extracted fragments so an interrupted scrape
// can resume without refetching finished targets. An in-process LRU sits in
// front of an optional Redis layer that survives restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"harvest/internal/models"
	"harvest/internal/slug"
)

// ErrInvalidEntry indicates a stored fragment could not be decoded.
var ErrInvalidEntry = errors.New("invalid checkpoint entry")

// Options configure a Checkpoint.
type Options struct {
	// Size bounds the in-process layer.
	Size int
	// Namespace separates runs against different sites or languages.
	Namespace string
	// Redis is optional; nil keeps the checkpoint in memory only.
	Redis *redis.Client
	// TTL of Redis entries; zero keeps them until evicted.
	TTL time.Duration
}

type Checkpoint struct {
	front     *lru.Cache[string, models.Fragment]
	redis     *redis.Client
	namespace string
	ttl       time.Duration
}

func New(opts Options) (*Checkpoint, error) {
	size := opts.Size
	if size <= 0 {
		size = 1024
	}
	front, err := lru.New[string, models.Fragment](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "default"
	}
	return &Checkpoint{front: front, redis: opts.Redis, namespace: ns, ttl: opts.TTL}, nil
}

// Key returns the storage key of t. Targets without a code are keyed by url.
func (c *Checkpoint) Key(t models.Target) string {
	id := t.URL
	if t.Code != "" {
		id = slug.Composite(t.Code, t.Name)
	}
	return "harvest:" + c.namespace + ":" + id
}

// Get looks t up in the LRU, then in Redis. A Redis hit is promoted to the LRU.
func (c *Checkpoint) Get(ctx context.Context, t models.Target) (models.Fragment, bool, error) {
	key := c.Key(t)
	if f, ok := c.front.Get(key); ok {
		return f, true, nil
	}
	if c.redis == nil {
		return models.Fragment{}, false, nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Fragment{}, false, nil
		}
		return models.Fragment{}, false, fmt.Errorf("redis get: %w", err)
	}
	var f models.Fragment
	if err := json.Unmarshal(data, &f); err != nil {
		return models.Fragment{}, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	c.front.Add(key, f)
	return f, true, nil
}

// Put records a completed fragment in both layers.
func (c *Checkpoint) Put(ctx context.Context, t models.Target, f models.Fragment) error {
	key := c.Key(t)
	c.front.Add(key, f)
	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fragment: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Len returns the number of fragments held in process.
func (c *Checkpoint) Len() int {
	return c.front.Len()
}

func (c *Checkpoint) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// Dial connects to Redis at addr and checks it answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
