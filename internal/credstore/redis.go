package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const kDefaultRedisKey = "qzlogin:cookies"

// RedisStore keeps the snapshot as a JSON string under a single key.
type RedisStore struct {
	Client redis.UniversalClient
	Key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = kDefaultRedisKey
	}
	return &RedisStore{Client: client, Key: key}
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if s.Client == nil {
		return fmt.Errorf("redis client is required")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cookie snapshot: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	if s.Client == nil {
		return Snapshot{}, fmt.Errorf("redis client is required")
	}
	b, err := s.Client.Get(ctx, s.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, fmt.Errorf("redis key %s: %w", s.Key, ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("redis get %s: %w", s.Key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.Key, err)
	}
	return snap, nil
}
