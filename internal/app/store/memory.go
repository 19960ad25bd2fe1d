package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/sifan077/CloudShare/internal/app/model"
)

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) GetMeta(ctx context.Context, id string) (*model.Record, error) {
	raw, err := s.get(MetaKey(id))
	if err != nil {
		return nil, err
	}
	var rec model.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MemoryStore) PutMeta(ctx context.Context, id string, rec *model.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.set(MetaKey(id), string(raw))
	return nil
}

func (s *MemoryStore) DeleteMeta(ctx context.Context, id string) error {
	s.del(MetaKey(id))
	return nil
}

func (s *MemoryStore) ListMetaKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full := MetaPrefix + prefix
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, full) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// ScanMetaKeys pages through keys in sorted order; the cursor is the last
// key returned.
func (s *MemoryStore) ScanMetaKeys(ctx context.Context, cursor string, count int) ([]string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, MetaPrefix) && k > cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if count <= 0 || len(keys) <= count {
		return keys, "", nil
	}
	keys = keys[:count]
	return keys, keys[count-1], nil
}

func (s *MemoryStore) GetContent(ctx context.Context, id string) (string, error) {
	return s.get(ContentKey(id))
}

func (s *MemoryStore) PutContent(ctx context.Context, id, blob string) error {
	s.set(ContentKey(id), blob)
	return nil
}

func (s *MemoryStore) DeleteContent(ctx context.Context, id string) error {
	s.del(ContentKey(id))
	return nil
}

// Len returns the number of keys held, across both namespaces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) set(key, value string) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

func (s *MemoryStore) del(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}
