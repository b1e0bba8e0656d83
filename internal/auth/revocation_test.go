package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRevokedKey(t *testing.T) {
	if got := revokedKey("cv37rs3pp9olc6atsptg"); got != "session:revoked:cv37rs3pp9olc6atsptg" {
		t.Errorf("revokedKey() = %q", got)
	}
}

// An expired token needs no entry, so Revoke must return before touching
// Redis. The client points at a closed port to prove it.
func TestRedisRevoker_ExpiredTokenIsNoop(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { client.Close() })
	r := NewRedisRevoker(client)

	if err := r.Revoke(context.Background(), "jti", time.Now().Add(-time.Minute)); err != nil {
		t.Errorf("Revoke() on an expired token = %v, want nil", err)
	}
	if err := r.Revoke(context.Background(), "", time.Now().Add(time.Hour)); err != nil {
		t.Errorf("Revoke() with no token id = %v, want nil", err)
	}
}

func TestRedisRevoker_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	r := NewRedisRevoker(client)

	if err := r.Revoke(context.Background(), "jti", time.Now().Add(time.Hour)); err == nil {
		t.Error("Revoke() error = nil, want connection error")
	}
	if _, err := r.IsRevoked(context.Background(), "jti"); err == nil {
		t.Error("IsRevoked() error = nil, want connection error")
	}
}

func TestDialRedisRevoker_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r, err := DialRedisRevoker(ctx, "127.0.0.1:1", 0)
	if err == nil {
		t.Fatal("DialRedisRevoker() error = nil, want ping failure")
	}
	if r != nil {
		t.Errorf("DialRedisRevoker() = %v, want nil revoker on failure", r)
	}
}
