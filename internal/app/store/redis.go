package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/CloudShare/internal/app/model"
)

const scanBatch = 100

// RedisStore keeps both namespaces in a single Redis database.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an established redis client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) GetMeta(ctx context.Context, id string) (*model.Record, error) {
	raw, err := s.rdb.Get(ctx, MetaKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get meta: %w", err)
	}
	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode meta %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) PutMeta(ctx context.Context, id string, rec *model.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, MetaKey(id), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis put meta: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteMeta(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, MetaKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete meta: %w", err)
	}
	return nil
}

func (s *RedisStore) ListMetaKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := MetaPrefix + prefix + "*"
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan meta: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k)
			if limit > 0 && len(keys) >= limit {
				return keys, nil
			}
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// ScanMetaKeys runs one SCAN step; the cursor is redis' own.
func (s *RedisStore) ScanMetaKeys(ctx context.Context, cursor string, count int) ([]string, string, error) {
	var pos uint64
	if cursor != "" {
		var err error
		if pos, err = strconv.ParseUint(cursor, 10, 64); err != nil {
			return nil, "", fmt.Errorf("redis scan meta: bad cursor %q: %w", cursor, err)
		}
	}
	if count <= 0 {
		count = scanBatch
	}

	keys, next, err := s.rdb.Scan(ctx, pos, MetaPrefix+"*", int64(count)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("redis scan meta: %w", err)
	}
	if next == 0 {
		return keys, "", nil
	}
	return keys, strconv.FormatUint(next, 10), nil
}

func (s *RedisStore) GetContent(ctx context.Context, id string) (string, error) {
	v, err := s.rdb.Get(ctx, ContentKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get content: %w", err)
	}
	return v, nil
}

func (s *RedisStore) PutContent(ctx context.Context, id, blob string) error {
	if err := s.rdb.Set(ctx, ContentKey(id), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis put content: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteContent(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, ContentKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete content: %w", err)
	}
	return nil
}
