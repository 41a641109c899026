package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralLevel is a denormalized downline edge: DescendantID sits at Level
// (1-3) below AncestorID. The composite unique index gives the insert set
// semantics, so registering a descendant is safe to re-run and to race.
type ReferralLevel struct {
	Base
	AncestorID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_referral_levels_edge" json:"ancestor_id"`
	Level        int       `gorm:"not null;uniqueIndex:idx_referral_levels_edge" json:"level"`
	DescendantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_referral_levels_edge;index" json:"descendant_id"`
}

// EarningEntry is an immutable commission ledger record. The unique index on
// (purchased_by_id, level, package_type, payment_id) is the idempotency key
// that prevents double-reward under webhook retries and concurrent
// manual-verify calls.
type EarningEntry struct {
	Base
	UserID        uuid.UUID   `gorm:"type:uuid;index;not null" json:"user_id"`
	User          User        `gorm:"foreignKey:UserID" json:"-"`
	Amount        float64     `gorm:"type:decimal(20,2);not null" json:"amount"`
	PackageType   PackageType `gorm:"type:varchar(20);not null;uniqueIndex:idx_earning_entries_reward_key" json:"package_type"`
	PurchasedByID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_earning_entries_reward_key" json:"purchased_by"`
	PurchasedBy   User        `gorm:"foreignKey:PurchasedByID" json:"-"`
	Level         int         `gorm:"not null;uniqueIndex:idx_earning_entries_reward_key" json:"level"`
	PaymentID     uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_earning_entries_reward_key" json:"payment_id"`
	PurchasedAt   time.Time   `json:"purchased_date"`
}
