package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a read-through accelerator. It is never the source of truth.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// GetJSON decodes a cached value into dst. A miss or an undecodable value
// both report ok=false.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

type nop struct{}

// Nop never stores anything; every Get is a miss.
func Nop() Cache { return nop{} }

func (nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nop) Del(context.Context, ...string) error                     { return nil }
