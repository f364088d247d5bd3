// Package cache implements the Redis-backed embedding cache and its
// key derivation.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"linktree-ai-go/pkg/log"
)

// Key derives the deterministic cache key for a (text, model) pair:
// prefix + model namespace + hex digest of the text content.
func Key(prefix, model, text string) string {
	digest := md5.Sum([]byte(text))
	return prefix + ":" + model + ":" + hex.EncodeToString(digest[:])
}

// EmbeddingCache stores embedding vectors in Redis with a TTL. Entries
// are written once on miss and never mutated; they expire on their own.
type EmbeddingCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewEmbeddingCache creates an embedding cache with the given key
// prefix and entry TTL.
func NewEmbeddingCache(rdb *redis.Client, prefix string, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{redis: rdb, prefix: prefix, ttl: ttl}
}

// Key derives the cache key for a (text, model) pair under this cache's prefix.
func (c *EmbeddingCache) Key(model, text string) string {
	return Key(c.prefix, model, text)
}

// Get returns the cached vector for key, or (nil, nil) on a miss.
// Backend failures are returned as errors so the caller can degrade.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		// Corrupted entry: drop it and report a miss.
		log.Warnf("failed to unmarshal cached embedding, deleting key %s: %v", key, err)
		_ = c.redis.Del(ctx, key).Err()
		return nil, nil
	}
	return vector, nil
}

// Set writes a vector under key with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

// Clear deletes every entry under this cache's prefix and returns the
// number of deleted keys.
func (c *EmbeddingCache) Clear(ctx context.Context) (int, error) {
	pattern := c.prefix + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warnf("failed to delete cache key %s: %v", iter.Val(), err)
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Stats reports the number of cached embeddings and the configured TTL.
func (c *EmbeddingCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	pattern := c.prefix + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":                  "available",
		"total_cached_embeddings": keyCount,
		"ttl":                     c.ttl.String(),
		"key_prefix":              c.prefix,
	}, nil
}

// Available reports whether the cache backend answers a ping.
func (c *EmbeddingCache) Available(ctx context.Context) bool {
	return c.redis.Ping(ctx).Err() == nil
}
