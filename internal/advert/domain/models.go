package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusBanned   Status = "banned"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

type Kind string

const (
	// KindOffering is a tutor offering lessons. Offerings expire.
	KindOffering Kind = "offering"
	// KindSeeking is a student looking for a tutor. Seeking ads never expire.
	KindSeeking Kind = "seeking"
)

// PinnedVisibleAt marks a featured ad: the far-future sort timestamp keeps it
// above every recency-sorted listing.
var PinnedVisibleAt = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Advertisement is a classified listing. ManagementToken is a capability:
// whoever holds it may extend, bump or delete the ad without an account.
type Advertisement struct {
	ID                    snowflake.ID `json:"id" gorm:"primaryKey"`
	ManagementToken       string       `json:"-" gorm:"type:text;not null;uniqueIndex"`
	Kind                  Kind         `json:"kind" gorm:"type:text;not null"`
	Title                 string       `json:"title" gorm:"type:text;not null"`
	Status                Status       `json:"status" gorm:"type:text;not null"`
	PhoneContact          string       `json:"phone_contact" gorm:"type:text"`
	PhoneHash             string       `json:"-" gorm:"type:text;index"`
	ContactEmail          string       `json:"-" gorm:"type:text"`
	CreatedAt             time.Time    `json:"created_at" gorm:"not null"`
	ExpiresAt             *time.Time   `json:"expires_at"`
	VisibleAt             time.Time    `json:"visible_at" gorm:"not null;index"`
	ExpiringWarningSentAt *time.Time   `json:"-"`
}

func (Advertisement) TableName() string { return "advertisements" }

var (
	ErrNotFound     = errors.New("advertisement_not_found")
	ErrInvalidToken = errors.New("invalid_management_token")
)
