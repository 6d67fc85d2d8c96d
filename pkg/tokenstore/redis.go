// Package tokenstore keeps revoked session tokens in Redis until they expire.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inventory:denylist:"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisDenylist records logged-out tokens.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist connects to Redis and verifies the connection.
func NewRedisDenylist(ctx context.Context, cfg Config) (*RedisDenylist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisDenylist{client: client}, nil
}

// Revoke stores the token hash for ttl. Non-positive ttl is a no-op since
// the token is already expired.
func (d *RedisDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token was revoked.
func (d *RedisDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := d.client.Get(ctx, key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection.
func (d *RedisDenylist) Close() error {
	return d.client.Close()
}

func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
