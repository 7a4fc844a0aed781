package repository

import (
	"context"
	"time"

	"github.com/korkiapp/korki/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (id, ad_id, type, amount, currency, status, payment_provider, payment_session_id, payment_id, webhook_received_at, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.AdID,
		tx.Type,
		tx.Amount,
		tx.Currency,
		tx.Status,
		tx.PaymentProvider,
		tx.PaymentSessionID,
		tx.PaymentID,
		tx.WebhookReceivedAt,
		tx.ErrorMessage,
		tx.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, ad_id, type, amount, currency, status, payment_provider, payment_session_id, payment_id, webhook_received_at, error_message, created_at
		 FROM transactions WHERE id = ?`,
		id,
	).Scan(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == "" {
		return nil, nil
	}
	return &tx, nil
}

func (r *repo) SetProviderSession(ctx context.Context, db *gorm.DB, id, sessionToken string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions SET payment_session_id = ? WHERE id = ?`,
		sessionToken,
		id,
	).Error
}

func (r *repo) CompletePending(ctx context.Context, db *gorm.DB, id, paymentID string, webhookAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, payment_id = ?, webhook_received_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		paymentID,
		webhookAt,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FailPending(ctx context.Context, db *gorm.DB, id, reason string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, error_message = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		reason,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FailAbandoned(ctx context.Context, db *gorm.DB, cutoff time.Time, reason string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, error_message = ?
		 WHERE status = ? AND created_at < ?`,
		domain.StatusFailed,
		reason,
		domain.StatusPending,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
