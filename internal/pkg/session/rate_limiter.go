// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = 5
	loginWindow      = 15 * time.Minute
	joinWindow       = time.Minute
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLoginAttempt allows up to 5 attempts per 15 minutes per (ip, slug).
func (r *RateLimiter) CheckLoginAttempt(ctx context.Context, ip, slug string) (bool, int64, error) {
	count, err := r.hit(ctx, fmt.Sprintf("ratelimit:login:%s:%s", ip, slug), loginWindow)
	if err != nil {
		return false, 0, err
	}

	remaining := maxLoginAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxLoginAttempts, remaining, nil
}

// ResetLoginAttempts resets the login attempt counter
func (r *RateLimiter) ResetLoginAttempts(ctx context.Context, ip, slug string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, slug)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return xerrors.NewStoreError("reset login attempts", err)
	}
	return nil
}

// CheckJoinAttempt allows up to limit add_customer intents per minute from one
// address into one establishment.
func (r *RateLimiter) CheckJoinAttempt(ctx context.Context, establishmentID, ip string, limit int) (bool, error) {
	count, err := r.hit(ctx, fmt.Sprintf("ratelimit:join:%s:%s", establishmentID, ip), joinWindow)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// hit increments a fixed-window counter, setting its expiry on the first hit.
func (r *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, xerrors.NewStoreError("rate limit", err)
	}
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}
	return count, nil
}
