package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the lifecycle state of a user account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Wallet holds a user's earnings balance. It is embedded in the users table
// so that balance mutations are single-row atomic updates.
// Invariant: Balance = TotalEarned - TotalWithdrawn (withdrawals debit at
// request time, so active holds are already reflected in Balance).
type Wallet struct {
	Balance        float64 `gorm:"type:decimal(20,2);default:0" json:"balance"`
	TotalEarned    float64 `gorm:"type:decimal(20,2);default:0" json:"total_earned"`
	TotalWithdrawn float64 `gorm:"type:decimal(20,2);default:0" json:"total_withdrawn"`
}

// User represents a referral participant
type User struct {
	Base
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	MobileNumber string `gorm:"type:varchar(20);uniqueIndex;not null" json:"mobile_number"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`

	// Referral graph: single parent fixed at registration, immutable after.
	ReferralCode string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"referral_code"`
	ReferredByID *uuid.UUID `gorm:"type:uuid;index" json:"referred_by,omitempty"`

	Wallet Wallet `gorm:"embedded;embeddedPrefix:wallet_" json:"wallet"`

	PackageType PackageType   `gorm:"type:varchar(20);not null;default:'No Course'" json:"package_type"`
	KYCStatus   KYCStatus     `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"kyc_status"`
	Status      AccountStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`

	MobileVerified bool       `gorm:"default:false" json:"mobile_verified"`
	OTPSecret      string     `gorm:"type:varchar(64)" json:"-"`
	OTPExpiresAt   *time.Time `json:"-"`

	IsAdmin     bool       `gorm:"default:false" json:"is_admin"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// HasPackage reports whether the user has already purchased a package.
// Referral rewards are only distributed for the first package purchase.
func (u *User) HasPackage() bool {
	return u.PackageType != PackageTypeNone
}

// Enrollment links a user to a course they have purchased access to
type Enrollment struct {
	Base
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_enrollments_user_course;not null" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"-"`
	CourseID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_enrollments_user_course;not null" json:"course_id"`
	Course   Course    `gorm:"foreignKey:CourseID" json:"-"`
}
