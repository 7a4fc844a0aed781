package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/korkiapp/korki/internal/advert/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ad *domain.Advertisement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO advertisements (id, management_token, kind, title, status, phone_contact, phone_hash, contact_email, created_at, expires_at, visible_at, expiring_warning_sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ad.ID,
		ad.ManagementToken,
		ad.Kind,
		ad.Title,
		ad.Status,
		ad.PhoneContact,
		ad.PhoneHash,
		ad.ContactEmail,
		ad.CreatedAt,
		ad.ExpiresAt,
		ad.VisibleAt,
		ad.ExpiringWarningSentAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Advertisement, error) {
	var ad domain.Advertisement
	err := db.WithContext(ctx).Raw(
		`SELECT id, management_token, kind, title, status, phone_contact, phone_hash, contact_email, created_at, expires_at, visible_at, expiring_warning_sent_at
		 FROM advertisements WHERE id = ?`,
		id,
	).Scan(&ad).Error
	if err != nil {
		return nil, err
	}
	if ad.ID == 0 {
		return nil, nil
	}
	return &ad, nil
}

func (r *repo) Activate(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt, visibleAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisements
		 SET status = ?, expires_at = ?, visible_at = ?
		 WHERE id = ?`,
		domain.StatusActive,
		expiresAt,
		visibleAt,
		id,
	).Error
}

func (r *repo) Extend(ctx context.Context, db *gorm.DB, id snowflake.ID, expiresAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisements
		 SET status = ?, expires_at = ?, expiring_warning_sent_at = NULL
		 WHERE id = ?`,
		domain.StatusActive,
		expiresAt,
		id,
	).Error
}

func (r *repo) Bump(ctx context.Context, db *gorm.DB, id snowflake.ID, visibleAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisements SET visible_at = ? WHERE id = ?`,
		visibleAt,
		id,
	).Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisements SET status = ? WHERE id = ?`,
		domain.StatusDeleted,
		id,
	).Error
}

func (r *repo) SetPhoneHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE advertisements
		 SET phone_hash = ?
		 WHERE id = ? AND (phone_hash IS NULL OR phone_hash = '')`,
		hash,
		id,
	).Error
}

func (r *repo) ExpireOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE advertisements
		 SET status = ?
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		domain.StatusExpired,
		domain.StatusActive,
		now,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListExpiring(ctx context.Context, db *gorm.DB, from, until time.Time, limit int) ([]*domain.Advertisement, error) {
	var ads []*domain.Advertisement
	err := db.WithContext(ctx).Raw(
		`SELECT id, management_token, kind, title, status, phone_contact, phone_hash, contact_email, created_at, expires_at, visible_at, expiring_warning_sent_at
		 FROM advertisements
		 WHERE status = ?
		   AND expires_at IS NOT NULL AND expires_at >= ? AND expires_at < ?
		   AND expiring_warning_sent_at IS NULL
		 ORDER BY expires_at ASC
		 LIMIT ?`,
		domain.StatusActive,
		from,
		until,
		limit,
	).Scan(&ads).Error
	if err != nil {
		return nil, err
	}
	return ads, nil
}

func (r *repo) MarkWarningSent(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE advertisements
		 SET expiring_warning_sent_at = ?
		 WHERE id IN ? AND expiring_warning_sent_at IS NULL`,
		at,
		ids,
	)
	return result.RowsAffected, result.Error
}
