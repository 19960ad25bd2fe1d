package service

import (
	"context"
	"time"

	"github.com/sifan077/CloudShare/internal/app/model"
)

type mockAccessEventRepository struct {
	createFn       func(ctx context.Context, event *model.AccessEvent) error
	listFn         func(ctx context.Context, recordID string, limit int) ([]model.AccessEvent, error)
	deleteBeforeFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockAccessEventRepository) Create(ctx context.Context, event *model.AccessEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockAccessEventRepository) ListByRecord(ctx context.Context, recordID string, limit int) ([]model.AccessEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, recordID, limit)
	}
	return nil, nil
}

func (m *mockAccessEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteBeforeFn != nil {
		return m.deleteBeforeFn(ctx, before)
	}
	return 0, nil
}
