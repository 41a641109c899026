package models

import (
	"time"

	"github.com/google/uuid"
)

// KYCStatus represents the status of a user's KYC verification
type KYCStatus string

const (
	KYCStatusNotSubmitted KYCStatus = "not_submitted"
	KYCStatusPending      KYCStatus = "pending"
	KYCStatusApproved     KYCStatus = "approved"
	KYCStatusRejected     KYCStatus = "rejected"
)

// KYCDetail holds the identity and bank information a user submits for
// verification. Document fields come in (URL, storage id) pairs; the storage
// id is the deletion handle for the external object store.
type KYCDetail struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User   User      `gorm:"foreignKey:UserID" json:"-"`

	WhatsAppNumber string `gorm:"type:varchar(20)" json:"whatsapp_number"`

	DocumentType          string `gorm:"type:varchar(50)" json:"document_type"`
	DocumentNumber        string `gorm:"type:varchar(100)" json:"document_number"`
	AddressProofURL       string `gorm:"type:text" json:"address_proof_url"`
	AddressProofStorageID string `gorm:"type:varchar(255)" json:"address_proof_storage_id"`

	PANNumber        string `gorm:"type:varchar(20)" json:"pan_number"`
	PANCardURL       string `gorm:"type:text" json:"pan_card_url"`
	PANCardStorageID string `gorm:"type:varchar(255)" json:"pan_card_storage_id"`

	BankName          string `gorm:"type:varchar(100)" json:"bank_name"`
	AccountHolderName string `gorm:"type:varchar(255)" json:"account_holder_name"`
	AccountNumber     string `gorm:"type:varchar(50)" json:"account_number"`
	IFSCCode          string `gorm:"type:varchar(20)" json:"ifsc_code"`
	UPIID             string `gorm:"column:upi_id;type:varchar(100)" json:"upi_id"`

	BankDocumentType      string `gorm:"type:varchar(50)" json:"bank_document_type"`
	BankDocumentURL       string `gorm:"type:text" json:"bank_document_url"`
	BankDocumentStorageID string `gorm:"type:varchar(255)" json:"bank_document_storage_id"`

	SubmissionDate  *time.Time `json:"submission_date"`
	ApprovalDate    *time.Time `json:"approval_date"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason"`
}

// StorageIDs returns the deletion handles of every uploaded document
func (k *KYCDetail) StorageIDs() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{k.AddressProofStorageID, k.PANCardStorageID, k.BankDocumentStorageID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
