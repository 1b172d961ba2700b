package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "careon/pkg/domain"
	"careon/pkg/platform/sentinel"
)

const keyPrefix = "draft:enrollment:"

// RedisStore keeps one JSON snapshot per owner with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(owner id.UserID) string {
	return keyPrefix + owner.String()
}

func (s *RedisStore) Save(ctx context.Context, owner id.UserID, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, key(owner), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, owner id.UserID) (Snapshot, error) {
	payload, err := s.client.Get(ctx, key(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, sentinel.ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("load draft: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode draft: %w", err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, sentinel.ErrNotFound
	}
	return snap, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner id.UserID) error {
	if err := s.client.Del(ctx, key(owner)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
