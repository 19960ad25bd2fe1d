package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sifan077/CloudShare/internal/app/model"
	appmetrics "github.com/sifan077/CloudShare/internal/infra/prometheus"
)

const (
	DefaultMetaCacheTTL  = time.Hour
	DefaultMetaCacheSize = 4096
)

// CachedStore adds a read-through metadata cache with bounded staleness.
// Writes and deletes going through it update the cache, so a record removed
// by this process is never served again from cache. Changes made by other
// processes may stay invisible for up to the TTL.
type CachedStore struct {
	Store
	cache *expirable.LRU[string, *model.Record]
}

// NewCachedStore wraps inner with an LRU of size entries expiring after ttl.
func NewCachedStore(inner Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = DefaultMetaCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultMetaCacheTTL
	}
	return &CachedStore{
		Store: inner,
		cache: expirable.NewLRU[string, *model.Record](size, nil, ttl),
	}
}

func (s *CachedStore) GetMeta(ctx context.Context, id string) (*model.Record, error) {
	if rec, ok := s.cache.Get(id); ok {
		appmetrics.MetaCacheHits.Inc()
		return rec.Clone(), nil
	}
	appmetrics.MetaCacheMisses.Inc()

	rec, err := s.Store.GetMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, rec.Clone())
	return rec, nil
}

func (s *CachedStore) PutMeta(ctx context.Context, id string, rec *model.Record) error {
	if err := s.Store.PutMeta(ctx, id, rec); err != nil {
		s.cache.Remove(id)
		return err
	}
	s.cache.Add(id, rec.Clone())
	return nil
}

func (s *CachedStore) DeleteMeta(ctx context.Context, id string) error {
	s.cache.Remove(id)
	return s.Store.DeleteMeta(ctx, id)
}
