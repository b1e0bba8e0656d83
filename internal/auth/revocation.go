package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers session tokens that were logged out before they expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevoker stores revoked token ids in Redis.
// Key format: session:revoked:<jti>. Each key expires together with the token
// it names, so the set never outgrows the live sessions.
type RedisRevoker struct {
	client *redis.Client
	now    func() time.Time
}

var _ Revoker = (*RedisRevoker)(nil)

// revokerDialTimeout bounds the startup ping.
const revokerDialTimeout = 3 * time.Second

// DialRedisRevoker connects to the Redis at addr and makes sure it answers
// before any logout relies on it. The returned revoker owns the client;
// Close releases it.
func DialRedisRevoker(ctx context.Context, addr string, db int) (*RedisRevoker, error) {
	r := NewRedisRevoker(redis.NewClient(&redis.Options{Addr: addr, DB: db}))

	pingCtx, cancel := context.WithTimeout(ctx, revokerDialTimeout)
	defer cancel()

	if err := r.Ping(pingCtx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("auth: revocation store %s (db %d): %w", addr, db, err)
	}
	return r, nil
}

// NewRedisRevoker creates a RedisRevoker wrapping the given Redis client.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, now: time.Now}
}

// Revoke marks tokenID as logged out until expiresAt. A token that has
// already expired needs no entry.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoking session %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked reports whether tokenID was logged out.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("auth: revocation check: %w", err)
	}
	return n > 0, nil
}

// Ping lets the readiness probe check Redis.
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (r *RedisRevoker) Close() error {
	return r.client.Close()
}

func revokedKey(tokenID string) string {
	return "session:revoked:" + tokenID
}
