package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrFreeSlotUsed is returned when a free activation settles after another
// activation has already consumed the fingerprint's slot.
var ErrFreeSlotUsed = errors.New("free slot already consumed")

// FingerprintRecord tracks the one-time free listing per phone fingerprint.
// FreeUsedAt is monotonic: once set it is never cleared, even when the ad
// that consumed it is deleted.
type FingerprintRecord struct {
	Fingerprint string     `gorm:"primaryKey;type:text"`
	FreeUsedAt  *time.Time `gorm:"type:timestamp"`
	CreatedAt   time.Time  `gorm:"not null"`
}

func (FingerprintRecord) TableName() string { return "phone_fingerprints" }

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, key string) (*FingerprintRecord, error)
	// ConsumeFreeSlot upserts the record and sets FreeUsedAt if, and only if,
	// it is still null. A single atomic statement whose row count reports
	// whether this call took the slot, so of any number of racing
	// activations exactly one observes true.
	ConsumeFreeSlot(ctx context.Context, db *gorm.DB, key string, at time.Time) (bool, error)
}

// Service methods take the caller's *gorm.DB so a consume can join the
// settlement transaction and commit or roll back with it.
type Service interface {
	FreeSlotAvailable(ctx context.Context, db *gorm.DB, key string) (bool, error)
	ConsumeFreeSlot(ctx context.Context, db *gorm.DB, key string) (bool, error)
}
