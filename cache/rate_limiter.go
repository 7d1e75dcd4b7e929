package cache

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter decides whether a request may proceed.
type RateLimiter interface {
	Allow(ctx context.Context) (bool, error)
}

// TokenBucketRateLimiter is a Redis-backed token bucket shared across
// server instances.
type TokenBucketRateLimiter struct {
	key   string
	rate  int // tokens added per second
	burst int // bucket capacity
}

// NewTokenBucketRateLimiter creates a token bucket limiter under the
// given key.
func NewTokenBucketRateLimiter(key string, rate, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		key:   fmt.Sprintf("rate_limit:%s", key),
		rate:  rate,
		burst: burst,
	}
}

// tokenBucketScript refills the bucket based on elapsed time and takes
// one token if available. Runs atomically in Redis.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local period = 1

local tokens_key = key .. ":tokens"
local timestamp_key = key .. ":ts"

local tokens = tonumber(redis.call("get", tokens_key) or burst)
local last_update = tonumber(redis.call("get", timestamp_key) or 0)

local elapsed = math.max(0, now - last_update)
local new_tokens = math.min(burst, tokens + elapsed * rate)

if new_tokens < 1 then
	return 0
end

new_tokens = new_tokens - 1

redis.call("setex", tokens_key, period * 2, new_tokens)
redis.call("setex", timestamp_key, period * 2, now)

return 1
`

// Allow reports whether a token was available. In mock mode requests
// always pass; the in-process limiter in the handler layer still
// applies.
func (l *TokenBucketRateLimiter) Allow(ctx context.Context) (bool, error) {
	if IsMockMode() {
		return true, nil
	}
	client, err := GetClient()
	if err != nil {
		return false, err
	}

	now := time.Now().Unix()
	result, err := client.Eval(ctx, tokenBucketScript, []string{l.key}, now, l.rate, l.burst).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
