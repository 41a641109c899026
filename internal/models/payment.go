package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// PackageType is a purchasable tier. Buying one triggers referral rewards.
type PackageType string

const (
	PackageTypeSkillBuilder  PackageType = "Skill Builder"
	PackageTypeCareerBooster PackageType = "Career Booster"
	PackageTypeNone          PackageType = "No Course"
)

// PaymentStatus represents the status of a payment order
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethodType tags the decoded payment instrument
type PaymentMethodType string

const (
	PaymentMethodCard       PaymentMethodType = "CARD"
	PaymentMethodNetBanking PaymentMethodType = "NETBANKING"
	PaymentMethodUPI        PaymentMethodType = "UPI"
	PaymentMethodUnknown    PaymentMethodType = "UNKNOWN"
)

// PaymentMethod is the tagged variant decoded once during reconciliation.
// Gateways report the instrument either as a bare mode string or as an
// object keyed by mode; both forms normalize into this shape.
type PaymentMethod struct {
	Type    PaymentMethodType `json:"type"`
	Details JSON              `json:"details,omitempty"`
}

// Value implements driver.Valuer so the variant is stored as jsonb
func (m PaymentMethod) Value() (driver.Value, error) {
	if m.Type == "" {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *PaymentMethod) Scan(value interface{}) error {
	if value == nil {
		*m = PaymentMethod{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// DecodePaymentMethod normalizes the gateway's payment_method field, which is
// sometimes a plain mode string and sometimes a structured object.
func DecodePaymentMethod(raw interface{}) PaymentMethod {
	switch v := raw.(type) {
	case string:
		return PaymentMethod{Type: paymentMethodTypeFromMode(v)}
	case map[string]interface{}:
		if mode, ok := v["payment_mode"].(string); ok {
			details := JSON{}
			for k, val := range v {
				if k != "payment_mode" {
					details[k] = val
				}
			}
			if len(details) == 0 {
				details = nil
			}
			return PaymentMethod{Type: paymentMethodTypeFromMode(mode), Details: details}
		}
		// Object keyed by mode, e.g. {"upi": {"upi_id": "..."}}
		for k, val := range v {
			method := PaymentMethod{Type: paymentMethodTypeFromMode(k)}
			if details, ok := val.(map[string]interface{}); ok {
				method.Details = JSON(details)
			}
			return method
		}
	}
	return PaymentMethod{Type: PaymentMethodUnknown}
}

func paymentMethodTypeFromMode(mode string) PaymentMethodType {
	switch strings.ToUpper(mode) {
	case "CARD", "CREDIT_CARD", "DEBIT_CARD":
		return PaymentMethodCard
	case "NETBANKING", "NET_BANKING":
		return PaymentMethodNetBanking
	case "UPI":
		return PaymentMethodUPI
	default:
		return PaymentMethodUnknown
	}
}

// Payment represents a package purchase order tracked against the gateway.
// Invariant: exactly one terminal success transition per OrderID; later
// notifications for the same order are no-ops.
type Payment struct {
	Base
	OrderID string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_id"`
	UserID  uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User    User      `gorm:"foreignKey:UserID" json:"-"`

	PackageType PackageType   `gorm:"type:varchar(20);not null" json:"package_type"`
	Amount      float64       `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string        `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	TransactionID string        `gorm:"type:varchar(100)" json:"transaction_id"`
	PaymentMethod PaymentMethod `gorm:"type:jsonb" json:"payment_method"`

	// True when this order was the buyer's first package purchase. Stamped
	// during the success transition; gates referral reward distribution.
	FirstPackagePurchase bool `gorm:"default:false" json:"first_package_purchase"`

	// Raw gateway payloads kept as an opaque audit blob
	ResponseData JSON `gorm:"type:jsonb" json:"response_data,omitempty"`

	Courses []PaymentCourse `gorm:"foreignKey:PaymentID" json:"courses"`
}

// PaymentCourse is a purchased course line item on an order
type PaymentCourse struct {
	Base
	PaymentID   uuid.UUID `gorm:"type:uuid;index;not null" json:"payment_id"`
	CourseID    uuid.UUID `gorm:"type:uuid;not null" json:"course_id"`
	CourseTitle string    `gorm:"type:varchar(255)" json:"course_title"`
}
