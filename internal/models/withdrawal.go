package models

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus represents the state of a payout request
type WithdrawalStatus string

const (
	WithdrawalStatusInProgress WithdrawalStatus = "In Progress"
	WithdrawalStatusPaid       WithdrawalStatus = "Paid"
	WithdrawalStatusRejected   WithdrawalStatus = "Rejected"
)

// Withdrawal bounds in INR
const (
	WithdrawalMinAmount = 500.0
	WithdrawalMaxAmount = 25000.0
)

// Withdrawal is a payout request. The requested amount is debited from the
// wallet when the request is created, so the balance always reflects what is
// still available to request. A rejection refunds the hold.
type Withdrawal struct {
	Base
	UserID       uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	User         User             `gorm:"foreignKey:UserID" json:"-"`
	Amount       float64          `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status       WithdrawalStatus `gorm:"type:varchar(20);not null;default:'In Progress'" json:"status"`
	AdminRemarks string           `gorm:"type:text" json:"admin_remarks"`
	RequestedAt  time.Time        `json:"requested_at"`
	ProcessedAt  *time.Time       `json:"processed_at"`
}
