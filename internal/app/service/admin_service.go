package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"

	"github.com/sifan077/CloudShare/internal/app/model"
	apprepository "github.com/sifan077/CloudShare/internal/app/repository"
	"github.com/sifan077/CloudShare/internal/app/store"
	"go.uber.org/zap"
)

// MaxAdminListing bounds how many records a single listing returns.
const MaxAdminListing = 100

// AdminService backs the password-gated management API.
type AdminService interface {
	Authenticate(password string) error
	List(ctx context.Context) ([]*model.Record, error)
	Delete(ctx context.Context, id string) error
	Download(ctx context.Context, id string) (*Resolved, error)
	AccessHistory(ctx context.Context, id string, limit int) ([]model.AccessEvent, error)
}

type adminService struct {
	logger   *zap.Logger
	store    store.Store
	events   apprepository.AccessEventRepository
	password string
}

// NewAdminService returns an AdminService. events may be nil when the access
// archive is disabled.
func NewAdminService(logger *zap.Logger, st store.Store, events apprepository.AccessEventRepository, password string) AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &adminService{logger: logger, store: st, events: events, password: password}
}

// Authenticate compares the presented credential to the configured password.
// An unset password locks the admin API.
func (s *adminService) Authenticate(password string) error {
	if s.password == "" || password == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// List returns up to MaxAdminListing records, newest first. Keys whose
// metadata vanished between the scan and the read are skipped.
func (s *adminService) List(ctx context.Context) ([]*model.Record, error) {
	keys, err := s.store.ListMetaKeys(ctx, "", MaxAdminListing)
	if err != nil {
		return nil, fmt.Errorf("list meta keys: %w", err)
	}

	records := make([]*model.Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.store.GetMeta(ctx, store.IDFromMetaKey(key))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load meta %s: %w", key, err)
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes both keys regardless of the record's state.
func (s *adminService) Delete(ctx context.Context, id string) error {
	if err := deleteRecord(ctx, s.store, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	s.logger.Info("record deleted by admin", zap.String("id", id))
	return nil
}

// Download returns a record and its content without touching counters,
// expiry or burn state.
func (s *adminService) Download(ctx context.Context, id string) (*Resolved, error) {
	rec, err := s.store.GetMeta(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load meta: %w", err)
	}
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load content: %w", err)
	}
	return &Resolved{Record: rec, Content: content}, nil
}

// AccessHistory returns archived access events for a record, newest first.
// It returns an empty slice when no archive is configured.
func (s *adminService) AccessHistory(ctx context.Context, id string, limit int) ([]model.AccessEvent, error) {
	if s.events == nil {
		return []model.AccessEvent{}, nil
	}
	events, err := s.events.ListByRecord(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list access events: %w", err)
	}
	return events, nil
}
