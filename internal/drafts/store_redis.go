package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// RedisStore keeps drafts in Redis so an editor can resume from another
// node. Drafts expire after the TTL; losing one is acceptable since it
// was never part of the authoritative log.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(recordID id.RecordID, userID id.UserID) string {
	return fmt.Sprintf("draft:%s:%s", recordID, userID)
}

func (s *RedisStore) Save(ctx context.Context, draft models.Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(draft.RecordID, draft.UserID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", sentinel.ErrUnavailable)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, recordID id.RecordID, userID id.UserID) (models.Draft, error) {
	payload, err := s.client.Get(ctx, redisKey(recordID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Draft{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Draft{}, fmt.Errorf("find draft: %w", sentinel.ErrUnavailable)
	}
	var draft models.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return models.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}

func (s *RedisStore) Discard(ctx context.Context, recordID id.RecordID, userID id.UserID) error {
	if err := s.client.Del(ctx, redisKey(recordID, userID)).Err(); err != nil {
		return fmt.Errorf("discard draft: %w", sentinel.ErrUnavailable)
	}
	return nil
}
