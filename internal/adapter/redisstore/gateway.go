// Package redisstore publishes storage objects as Redis string values.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/redis/go-redis/v9"
)

// scanCount is the page size hint for SCAN.
const scanCount = 1000

// Gateway stores each object under its key.
type Gateway struct {
	client *redis.Client
}

// New connects to the Redis server at addr.
func New(addr string) *Gateway {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr}))
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Gateway {
	return &Gateway{client: client}
}

// Get returns the object at key.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := g.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Put stores data at key without expiry.
func (g *Gateway) Put(ctx context.Context, key string, data []byte) error {
	if err := g.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ListKeys scans every key under prefix.
func (g *Gateway) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := g.client.Scan(ctx, 0, prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	// SCAN may return a key more than once
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// CheckReadiness pings the server.
func (g *Gateway) CheckReadiness(ctx context.Context) error {
	if err := g.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (g *Gateway) Close() error {
	return g.client.Close()
}
