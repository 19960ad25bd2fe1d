// Package store persists share records in a key-value layout: the metadata
// document under meta:<id> and the payload under content:<id>.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/sifan077/CloudShare/internal/app/model"
)

// ErrNotFound signals that the requested key does not exist.
var ErrNotFound = errors.New("store: key not found")

const (
	MetaPrefix    = "meta:"
	ContentPrefix = "content:"
)

// MetaKey returns the metadata key for id.
func MetaKey(id string) string { return MetaPrefix + id }

// ContentKey returns the content key for id.
func ContentKey(id string) string { return ContentPrefix + id }

// IDFromMetaKey strips the metadata prefix from a key returned by ListMetaKeys.
func IDFromMetaKey(key string) string { return strings.TrimPrefix(key, MetaPrefix) }

// MetaStore is the metadata namespace.
type MetaStore interface {
	GetMeta(ctx context.Context, id string) (*model.Record, error)
	PutMeta(ctx context.Context, id string, rec *model.Record) error
	DeleteMeta(ctx context.Context, id string) error
	// ListMetaKeys returns up to limit metadata keys whose id starts with prefix.
	ListMetaKeys(ctx context.Context, prefix string, limit int) ([]string, error)
	// ScanMetaKeys returns one page of about count metadata keys starting at
	// cursor ("" for the first page) and the cursor of the next page, which
	// is "" once every key has been visited. Keys present for the whole
	// iteration are returned at least once.
	ScanMetaKeys(ctx context.Context, cursor string, count int) ([]string, string, error)
}

// ContentStore is the content namespace. Blobs are UTF-8 text, base64 or a URL.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (string, error)
	PutContent(ctx context.Context, id, blob string) error
	DeleteContent(ctx context.Context, id string) error
}

// Store combines both namespaces. There is no transaction across them.
type Store interface {
	MetaStore
	ContentStore
}

type splitStore struct {
	MetaStore
	ContentStore
}

// Split serves metadata and content from different backends.
func Split(meta MetaStore, content ContentStore) Store {
	return splitStore{MetaStore: meta, ContentStore: content}
}
