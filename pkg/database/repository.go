package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DecodeRepository handles decode history database operations
type DecodeRepository struct {
	db *gorm.DB
}

// NewDecodeRepository creates a new decode repository
func NewDecodeRepository(db *gorm.DB) *DecodeRepository {
	return &DecodeRepository{db: db}
}

// Summary aggregates the decode history
type Summary struct {
	Packets       int64 `json:"packets"`
	Symbols       int64 `json:"symbols"`
	Corrected     int64 `json:"corrected"`
	Uncorrectable int64 `json:"uncorrectable"`
}

// Create adds a new decode record
func (r *DecodeRepository) Create(ctx context.Context, rec *DecodeRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetByUUID retrieves one record
func (r *DecodeRepository) GetByUUID(ctx context.Context, id string) (*DecodeRecord, error) {
	var rec DecodeRecord
	if err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecent retrieves the most recent N decodes
func (r *DecodeRepository) GetRecent(ctx context.Context, limit int) ([]DecodeRecord, error) {
	var records []DecodeRecord
	err := r.db.WithContext(ctx).Order("decoded_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetRecentPaginated retrieves decodes with pagination
func (r *DecodeRepository) GetRecentPaginated(ctx context.Context, page, perPage int) ([]DecodeRecord, int64, error) {
	var records []DecodeRecord
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&DecodeRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage
	err := db.Order("decoded_at DESC, id DESC").
		Offset(offset).
		Limit(perPage).
		Find(&records).Error

	return records, total, err
}

// GetBySpreadingFactor retrieves decodes made at one spreading factor
func (r *DecodeRepository) GetBySpreadingFactor(ctx context.Context, sf, limit int) ([]DecodeRecord, error) {
	var records []DecodeRecord
	err := r.db.WithContext(ctx).Where("spreading_factor = ?", sf).
		Order("decoded_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Summarize totals the whole history
func (r *DecodeRepository) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.db.WithContext(ctx).Model(&DecodeRecord{}).
		Select("COUNT(*) AS packets, COALESCE(SUM(symbol_count), 0) AS symbols, " +
			"COALESCE(SUM(corrected), 0) AS corrected, COALESCE(SUM(uncorrectable), 0) AS uncorrectable").
		Scan(&s).Error
	return s, err
}

// DeleteOlderThan deletes decodes older than the specified time
func (r *DecodeRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("decoded_at < ?", before).Delete(&DecodeRecord{})
	return result.RowsAffected, result.Error
}
