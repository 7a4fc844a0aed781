package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeActivation Type = "activation"
	TypeExtension  Type = "extension"
	TypeBump       Type = "bump"
)

func (t Type) Valid() bool {
	switch t {
	case TypeActivation, TypeExtension, TypeBump:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is one payment attempt for one advertisement. The ID doubles
// as the gateway session identifier. completed and failed are terminal; a
// retry is a new Transaction.
type Transaction struct {
	ID                string       `json:"id" gorm:"primaryKey;type:text"`
	AdID              snowflake.ID `json:"ad_id" gorm:"not null;index"`
	Type              Type         `json:"type" gorm:"type:text;not null"`
	Amount            int64        `json:"amount" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:text;not null"`
	Status            Status       `json:"status" gorm:"type:text;not null;index"`
	PaymentProvider   string       `json:"payment_provider" gorm:"type:text;not null"`
	PaymentSessionID  *string      `json:"payment_session_id" gorm:"type:text"`
	PaymentID         *string      `json:"payment_id" gorm:"type:text"`
	WebhookReceivedAt *time.Time   `json:"webhook_received_at"`
	ErrorMessage      *string      `json:"error_message" gorm:"type:text"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;index"`
}

func (Transaction) TableName() string { return "transactions" }

var (
	ErrNotFound    = errors.New("transaction_not_found")
	ErrInvalidType = errors.New("invalid_transaction_type")
	ErrMalformedID = errors.New("malformed_transaction_id")
)
