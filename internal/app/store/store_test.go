package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/CloudShare/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func testStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	limit := 3
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing keys", func(t *testing.T) {
		_, err := s.GetMeta(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetContent(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		rec := &model.Record{
			ID:               "abc12345",
			Type:             model.TypeText,
			Filename:         "text.txt",
			ContentType:      "text/plain",
			Size:             11,
			ExpiresAt:        &expires,
			MaxDownloads:     &limit,
			SubscriptionInfo: &model.SubscriptionInfo{Total: "10GB"},
		}
		require.NoError(t, s.PutMeta(ctx, rec.ID, rec))
		require.NoError(t, s.PutContent(ctx, rec.ID, "hello world"))

		got, err := s.GetMeta(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.Filename, got.Filename)
		require.NotNil(t, got.MaxDownloads)
		assert.Equal(t, 3, *got.MaxDownloads)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))
		assert.Equal(t, "10GB", got.SubscriptionInfo.Total)

		content, err := s.GetContent(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello world", content)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.PutMeta(ctx, "gone", &model.Record{ID: "gone"}))
		require.NoError(t, s.PutContent(ctx, "gone", "x"))
		require.NoError(t, s.DeleteMeta(ctx, "gone"))
		require.NoError(t, s.DeleteContent(ctx, "gone"))

		_, err := s.GetMeta(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetContent(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.DeleteMeta(ctx, "gone"))
	})

	t.Run("list meta keys", func(t *testing.T) {
		for _, id := range []string{"list-a", "list-b", "list-c"} {
			require.NoError(t, s.PutMeta(ctx, id, &model.Record{ID: id}))
			require.NoError(t, s.PutContent(ctx, id, "c"))
		}

		keys, err := s.ListMetaKeys(ctx, "list-", 0)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"meta:list-a", "meta:list-b", "meta:list-c"}, keys)

		keys, err = s.ListMetaKeys(ctx, "list-", 2)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
		for _, k := range keys {
			assert.Contains(t, []string{"list-a", "list-b", "list-c"}, IDFromMetaKey(k))
		}
	})

	t.Run("scan meta keys in pages", func(t *testing.T) {
		for _, id := range []string{"page-1", "page-2", "page-3", "page-4", "page-5"} {
			require.NoError(t, s.PutMeta(ctx, id, &model.Record{ID: id}))
		}

		seen := map[string]bool{}
		cursor := ""
		for pages := 0; ; pages++ {
			require.Less(t, pages, 100, "scan must terminate")
			keys, next, err := s.ScanMetaKeys(ctx, cursor, 2)
			require.NoError(t, err)
			for _, k := range keys {
				seen[IDFromMetaKey(k)] = true
			}
			if next == "" {
				break
			}
			cursor = next
		}
		for _, id := range []string{"page-1", "page-2", "page-3", "page-4", "page-5", "abc12345"} {
			assert.True(t, seen[id], "scan missed %s", id)
		}
		assert.False(t, seen["gone"])
	})
}

func TestMemoryStore_ScanSurvivesDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.PutMeta(ctx, id, &model.Record{ID: id}))
	}

	keys, next, err := s.ScanMetaKeys(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta:a", "meta:b"}, keys)

	// Deleting already visited keys must not shift the next page.
	require.NoError(t, s.DeleteMeta(ctx, "a"))
	require.NoError(t, s.DeleteMeta(ctx, "b"))

	keys, next, err = s.ScanMetaKeys(ctx, next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta:c", "meta:d"}, keys)
	assert.Empty(t, next)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	testStoreContract(t, newRedisStore(t))
}

func TestCachedStore(t *testing.T) {
	testStoreContract(t, NewCachedStore(NewMemoryStore(), 16, time.Minute))
}

func TestSplitStore(t *testing.T) {
	meta := NewMemoryStore()
	content := NewMemoryStore()
	s := Split(meta, content)
	testStoreContract(t, s)

	_, err := meta.GetContent(context.Background(), "abc12345")
	assert.ErrorIs(t, err, ErrNotFound, "content must not land in the metadata backend")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "meta:x", MetaKey("x"))
	assert.Equal(t, "content:x", ContentKey("x"))
	assert.Equal(t, "x", IDFromMetaKey("meta:x"))
}
