package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medipay/internal/model"
)

// SummaryRepository persists the materialized daily rollups.
type SummaryRepository interface {
	Upsert(ctx context.Context, summary *model.DailySummary) error
	FindByDate(ctx context.Context, date string) (*model.DailySummary, error)
	DeleteByDate(ctx context.Context, date string) error
}

type summaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new summary repository.
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

// Upsert writes a recomputed summary through, replacing any prior row for
// the date.
func (r *summaryRepository) Upsert(ctx context.Context, summary *model.DailySummary) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(summary).Error
}

// DeleteByDate drops the materialized row for a date so the next read
// recomputes it.
func (r *summaryRepository) DeleteByDate(ctx context.Context, date string) error {
	return r.db.WithContext(ctx).Where("date = ?", date).Delete(&model.DailySummary{}).Error
}

// FindByDate reads the persisted summary for a date.
func (r *summaryRepository) FindByDate(ctx context.Context, date string) (*model.DailySummary, error) {
	var summary model.DailySummary
	if err := r.db.WithContext(ctx).Where("date = ?", date).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}
