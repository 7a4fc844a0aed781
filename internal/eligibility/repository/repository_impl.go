package repository

import (
	"context"
	"time"

	"github.com/korkiapp/korki/internal/eligibility/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, key string) (*domain.FingerprintRecord, error) {
	var record domain.FingerprintRecord
	err := db.WithContext(ctx).Raw(
		`SELECT fingerprint, free_used_at, created_at
		 FROM phone_fingerprints WHERE fingerprint = ?`,
		key,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.Fingerprint == "" {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ConsumeFreeSlot(ctx context.Context, db *gorm.DB, key string, at time.Time) (bool, error) {
	// The conditional update leaves an already-consumed row untouched, so the
	// row count distinguishes the winning consume from a late duplicate.
	result := db.WithContext(ctx).Exec(
		`INSERT INTO phone_fingerprints (fingerprint, free_used_at, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (fingerprint)
		 DO UPDATE SET free_used_at = excluded.free_used_at
		 WHERE phone_fingerprints.free_used_at IS NULL`,
		key,
		at,
		at,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
