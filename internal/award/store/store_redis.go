package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"trustline/internal/award/models"
	id "trustline/pkg/domain"
)

const scoreKeyPrefix = "trust:score:"

// RedisLedger keeps one hash per user, a field per category.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func scoreKey(userID id.UserID) string {
	return scoreKeyPrefix + userID.String()
}

// Set replaces one category and returns the updated breakdown. HSET and
// HGETALL run in one MULTI so the returned breakdown includes the write.
func (l *RedisLedger) Set(ctx context.Context, userID id.UserID, category models.Category, points int) (models.Breakdown, error) {
	key := scoreKey(userID)
	var all *redis.MapStringStringCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, string(category), points)
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return models.Breakdown{}, fmt.Errorf("set score category: %w", err)
	}
	return decodeBreakdown(all.Val())
}

// Get returns the user's breakdown; unknown users have an empty one.
func (l *RedisLedger) Get(ctx context.Context, userID id.UserID) (models.Breakdown, error) {
	fields, err := l.client.HGetAll(ctx, scoreKey(userID)).Result()
	if err != nil {
		return models.Breakdown{}, fmt.Errorf("get score: %w", err)
	}
	return decodeBreakdown(fields)
}

func decodeBreakdown(fields map[string]string) (models.Breakdown, error) {
	var b models.Breakdown
	for field, raw := range fields {
		category, err := models.ParseCategory(field)
		if err != nil {
			continue
		}
		points, err := strconv.Atoi(raw)
		if err != nil {
			return models.Breakdown{}, fmt.Errorf("decode score field %s: %w", field, err)
		}
		b.Set(category, points)
	}
	return b, nil
}
