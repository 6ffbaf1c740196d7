package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache stores JSON-encoded values in Redis under a key prefix. A nil cache or client degrades to
// calling the loader every time.
type JSONCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewJSONCache instantiates the cache helper.
func NewJSONCache(client *redis.Client, prefix string, ttl time.Duration) *JSONCache {
	return &JSONCache{client: client, prefix: prefix, ttl: ttl}
}

// Fetch loads a cached value into dest or populates it using the loader.
func (c *JSONCache) Fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("platform/cache: loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, dest, loader)
	}
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Delete evicts key.
func (c *JSONCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
