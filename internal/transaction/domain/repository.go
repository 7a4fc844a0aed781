package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tx *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Transaction, error)

	SetProviderSession(ctx context.Context, db *gorm.DB, id, sessionToken string) error

	// CompletePending is the settlement serialization point: a conditional
	// UPDATE guarded on status='pending'. Exactly one caller ever observes
	// true for a given transaction, no matter how many signals race.
	CompletePending(ctx context.Context, db *gorm.DB, id, paymentID string, webhookAt time.Time) (bool, error)

	// FailPending terminates a pending transaction with a diagnostic reason.
	FailPending(ctx context.Context, db *gorm.DB, id, reason string) (bool, error)

	// FailAbandoned batch-fails pending transactions created before cutoff.
	FailAbandoned(ctx context.Context, db *gorm.DB, cutoff time.Time, reason string) (int64, error)
}
