package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ad *Advertisement) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Advertisement, error)

	// Activate is applied by settlement on a winning activation.
	Activate(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt, visibleAt time.Time) error
	// Extend pushes expiry out, revives a lapsed ad and clears the warning flag.
	Extend(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt time.Time) error
	// Bump resets the recency-sort timestamp only.
	Bump(ctx context.Context, db *gorm.DB, id snowflake.ID, visibleAt time.Time) error

	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// SetPhoneHash backfills the fingerprint on ads stored before one was
	// derived. It never overwrites an existing hash.
	SetPhoneHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string) error

	// ExpireOverdue transitions active ads whose expiry has passed.
	ExpireOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	// ListExpiring returns active ads entering the warning window with the
	// warning flag still unset.
	ListExpiring(ctx context.Context, db *gorm.DB, from, until time.Time, limit int) ([]*Advertisement, error)
	// MarkWarningSent batch-sets the set-once warning flag.
	MarkWarningSent(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error)
}
