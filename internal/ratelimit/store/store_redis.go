package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustline/internal/ratelimit/models"
)

// slidingWindowScript trims the window, admits the request when there is
// room, and returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestMs = now
if oldest[2] then oldestMs = tonumber(oldest[2]) end
return {allowed, count, oldestMs}
`)

// RedisBucketStore shares the sliding window across instances.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{"ratelimit:" + key},
		now.UnixMilli(),
		limit.Window.Milliseconds(),
		limit.Requests,
		strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	allowed, count, oldestMs := res[0] == 1, int(res[1]), res[2]
	resetAt := time.UnixMilli(oldestMs).Add(limit.Window)
	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit.Requests,
		Remaining: max(limit.Requests-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.Remaining = 0
		result.RetryAfter = retryAfter(resetAt, now)
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, "ratelimit:"+key).Err()
}
