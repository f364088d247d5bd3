package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"linktree-ai-go/pkg/log"
)

// NewRedis builds a Redis client and verifies connectivity. A ping
// failure is reported but does not abort construction: the embedding
// cache degrades to always-miss when Redis is unreachable, so the
// services must be able to start without it.
func NewRedis(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warnf("redis unreachable at %s, running without cache: %v", addr, err)
	} else {
		log.Info("Redis client connected successfully")
	}
	return rdb
}
