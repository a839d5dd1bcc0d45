package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// bucketKeyPrefix namespaces rate-limit buckets in a Redis shared with the
// session cache.
const bucketKeyPrefix = "parley:rl:"

// tokenBucketScript runs the whole refill-and-take sequence inside Redis so
// concurrent daemon instances draining one bucket never overspend it. The
// clock is the Redis server's own TIME, which keeps refill arithmetic
// consistent no matter which instance executes the check.
//
// KEYS[1] is the bucket key. ARGV carries capacity, refill rate in tokens
// per second, and the tokens requested. Returns {allowed 0|1, whole tokens
// remaining}.
var tokenBucketScript = redis.NewScript(`
redis.replicate_commands()

local bucket = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local want = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = tonumber(t[1]) + tonumber(t[2]) / 1000000.0

local state = redis.call("HMGET", bucket, "tokens", "stamp")
local tokens = tonumber(state[1])
local stamp = tonumber(state[2])
if tokens == nil then
    tokens = capacity
    stamp = now
end

local elapsed = now - stamp
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
end

local ok = 0
if tokens >= want then
    tokens = tokens - want
    ok = 1
end

redis.call("HSET", bucket, "tokens", tostring(tokens), "stamp", tostring(now))

-- An idle bucket is indistinguishable from a full one, so expire it once it
-- would have refilled completely.
local idle = 60
if rate > 0 then
    idle = math.ceil(capacity / rate) + 60
end
redis.call("EXPIRE", bucket, idle)

return {ok, math.floor(tokens)}
`)

// RedisBackend implements Backend on a shared Redis so one caller's limit
// holds across every daemon instance serving the account.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client; the daemon shares it with the
// session cache.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	res, err := tokenBucketScript.Run(ctx, b.client, []string{bucketKeyPrefix + key},
		maxTokens, refillRate, requested,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values, want 2", len(res))
	}
	return res[0] == 1, int(res[1]), nil
}
