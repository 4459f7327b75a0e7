package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RateLimiter counts hits per fixed window. Each window gets its own key
// suffixed with the window index, so a lost EXPIRE can never pin a caller
// above the limit for longer than one window.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow records one hit for key and reports whether it is within limit.
// A non-positive limit or window disables the check.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	bucket := windowKey(key, r.now(), window)
	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if count == 1 {
		// bucket outlives its window by one more
		if err := r.client.Expire(ctx, bucket, 2*window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

func windowKey(key string, at time.Time, window time.Duration) string {
	return key + ":" + strconv.FormatInt(at.UnixNano()/int64(window), 10)
}

// UserCommandKey scopes a limiter key to one user and action.
func UserCommandKey(userID, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", userID, action)
}
