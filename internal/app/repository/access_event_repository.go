package repository

import (
	"context"
	"time"

	"github.com/sifan077/CloudShare/internal/app/model"
	"gorm.io/gorm"
)

// AccessEventRepository defines the data access contract for archived access events.
type AccessEventRepository interface {
	Create(ctx context.Context, event *model.AccessEvent) error
	ListByRecord(ctx context.Context, recordID string, limit int) ([]model.AccessEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type accessEventRepository struct {
	db *gorm.DB
}

// NewAccessEventRepository returns a GORM-backed AccessEventRepository.
func NewAccessEventRepository(db *gorm.DB) AccessEventRepository {
	return &accessEventRepository{db: db}
}

// Create inserts the event. Redelivered events with a known id are ignored.
func (r *accessEventRepository) Create(ctx context.Context, event *model.AccessEvent) error {
	var existing int64
	if err := r.db.WithContext(ctx).Model(&model.AccessEvent{}).Where("id = ?", event.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *accessEventRepository) ListByRecord(ctx context.Context, recordID string, limit int) ([]model.AccessEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var result []model.AccessEvent
	if err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *accessEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&model.AccessEvent{})
	return result.RowsAffected, result.Error
}
