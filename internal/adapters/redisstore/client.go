// Package redisstore implements the engine's store interfaces on Redis.
// Everything here is ephemeral by construction: identity and room records
// carry the retention TTL, membership and message keys live until their
// room is emptied.
package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks that the store is reachable.
func Ping(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}
