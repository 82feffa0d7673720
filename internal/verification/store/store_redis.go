package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

const sessionKeyPrefix = "verification:session:"

// RedisStore keeps sessions as JSON values with a TTL. Saves are guarded by
// WATCH so a write from an older generation never overwrites a newer one.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed session store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

// Save writes the session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("read session: %w", err)
		default:
			var cur struct {
				Generation uint64 `json:"generation"`
			}
			if err := json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("decode stored session: %w", err)
			}
			if cur.Generation > session.Generation {
				return sentinel.ErrStale
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return sentinel.ErrStale
	}
	return err
}

// Get loads a session. Expired sessions are gone.
func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	n, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
