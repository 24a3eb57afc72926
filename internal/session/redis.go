package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-planner/internal/domain"
)

const redisKeyPrefix = "planner:session:"

// redisAPI is the subset of redis.Cmdable used by RedisStore.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps each record as a JSON document that expires after ttl
// without a save.
type RedisStore struct {
	rdb redisAPI
	ttl time.Duration
}

func NewRedisStore(rdb redisAPI, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("session: redis client must not be nil")
	}
	return &RedisStore{rdb: rdb, ttl: ttlOrDefault(ttl)}, nil
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TripPreferenceRecord{}, false, nil
	}
	if err != nil {
		return domain.TripPreferenceRecord{}, false, fmt.Errorf("session: Load get: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.TripPreferenceRecord{}, false, fmt.Errorf("session: Load decode: %w", err)
	}
	return doc.record(), true, nil
}

func (s *RedisStore) Save(ctx context.Context, rec domain.TripPreferenceRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("session: Save: session id is required")
	}
	raw, err := json.Marshal(toDocument(rec))
	if err != nil {
		return fmt.Errorf("session: Save encode: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(rec.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: Save set: %w", err)
	}
	return nil
}
