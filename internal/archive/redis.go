package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps each session's records in a redis list with a TTL
// refreshed on every write.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func sessionKey(sessionID string) string {
	return "vilachat:session:" + sessionID
}

// Append implements Store.
func (s *redisStore) Append(ctx context.Context, rec *Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	key := sessionKey(rec.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, val)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *redisStore) List(ctx context.Context, sessionID string) ([]Record, error) {
	key := sessionKey(sessionID)
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]Record, 0, len(vals))
	for _, val := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
