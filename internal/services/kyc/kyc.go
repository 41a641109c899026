package kyc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/services/storage"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a user has no KYC submission
	ErrNotFound = errors.New("no KYC submission found")

	// ErrAlreadyApproved is returned when a user resubmits after approval
	ErrAlreadyApproved = errors.New("KYC is already approved")

	// ErrReasonRequired is returned when a rejection carries no reason
	ErrReasonRequired = errors.New("a reason is required when rejecting KYC")

	// ErrNotPending is returned when a decision is applied to a submission
	// that is not awaiting review
	ErrNotPending = errors.New("KYC submission is not pending review")
)

// Service manages the KYC verification workflow. Submissions move
// not_submitted -> pending -> approved | rejected; a rejected user may
// resubmit, which returns the record to pending.
type Service struct {
	db    *gorm.DB
	store storage.ObjectStore
}

// NewService creates a new KYC service
func NewService(db *gorm.DB, store storage.ObjectStore) *Service {
	return &Service{db: db, store: store}
}

// Submission carries the fields of a KYC submission. Document URLs and
// storage ids come from uploads completed before submission.
type Submission struct {
	WhatsAppNumber string `json:"whatsapp_number"`

	DocumentType          string `json:"document_type" binding:"required"`
	DocumentNumber        string `json:"document_number" binding:"required"`
	AddressProofURL       string `json:"address_proof_url" binding:"required"`
	AddressProofStorageID string `json:"address_proof_storage_id"`

	PANNumber        string `json:"pan_number" binding:"required"`
	PANCardURL       string `json:"pan_card_url" binding:"required"`
	PANCardStorageID string `json:"pan_card_storage_id"`

	BankName          string `json:"bank_name" binding:"required"`
	AccountHolderName string `json:"account_holder_name" binding:"required"`
	AccountNumber     string `json:"account_number" binding:"required"`
	IFSCCode          string `json:"ifsc_code" binding:"required"`
	UPIID             string `json:"upi_id"`

	BankDocumentType      string `json:"bank_document_type"`
	BankDocumentURL       string `json:"bank_document_url" binding:"required"`
	BankDocumentStorageID string `json:"bank_document_storage_id"`
}

// Submit records a user's KYC details and moves their status to pending.
// Resubmission after rejection replaces the previous submission and deletes
// its superseded documents from the object store.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, input Submission) (*models.KYCDetail, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.KYCStatus == models.KYCStatusApproved {
		return nil, ErrAlreadyApproved
	}

	var previous models.KYCDetail
	hadPrevious := true
	if err := s.db.First(&previous, "user_id = ?", userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load previous submission: %w", err)
		}
		hadPrevious = false
	}

	now := time.Now()
	detail := models.KYCDetail{
		UserID:                userID,
		WhatsAppNumber:        input.WhatsAppNumber,
		DocumentType:          input.DocumentType,
		DocumentNumber:        input.DocumentNumber,
		AddressProofURL:       input.AddressProofURL,
		AddressProofStorageID: input.AddressProofStorageID,
		PANNumber:             input.PANNumber,
		PANCardURL:            input.PANCardURL,
		PANCardStorageID:      input.PANCardStorageID,
		BankName:              input.BankName,
		AccountHolderName:     input.AccountHolderName,
		AccountNumber:         input.AccountNumber,
		IFSCCode:              input.IFSCCode,
		UPIID:                 input.UPIID,
		BankDocumentType:      input.BankDocumentType,
		BankDocumentURL:       input.BankDocumentURL,
		BankDocumentStorageID: input.BankDocumentStorageID,
		SubmissionDate:        &now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if hadPrevious {
			detail.ID = previous.ID
			detail.CreatedAt = previous.CreatedAt
			err := tx.Model(&models.KYCDetail{}).
				Where("user_id = ?", userID).
				Select("*").
				Omit("id", "created_at", "deleted_at").
				Updates(&detail).Error
			if err != nil {
				return fmt.Errorf("failed to replace KYC submission: %w", err)
			}
		} else if err := tx.Create(&detail).Error; err != nil {
			return fmt.Errorf("failed to save KYC submission: %w", err)
		}

		err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("kyc_status", models.KYCStatusPending).Error
		if err != nil {
			return fmt.Errorf("failed to update KYC status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if hadPrevious {
		s.deleteSupersededDocuments(ctx, &previous, &detail)
	}

	return &detail, nil
}

// Get returns a user's KYC submission
func (s *Service) Get(userID uuid.UUID) (*models.KYCDetail, error) {
	var detail models.KYCDetail
	if err := s.db.First(&detail, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load KYC submission: %w", err)
	}
	return &detail, nil
}

// ListPending returns submissions awaiting review, oldest first
func (s *Service) ListPending() ([]models.KYCDetail, error) {
	var details []models.KYCDetail
	err := s.db.
		Preload("User").
		Joins("JOIN users ON users.id = kyc_details.user_id").
		Where("users.kyc_status = ?", models.KYCStatusPending).
		Order("kyc_details.submission_date ASC").
		Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	return details, nil
}

// Approve marks a pending submission approved
func (s *Service) Approve(userID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ? AND kyc_status = ?", userID, models.KYCStatusPending).
			Update("kyc_status", models.KYCStatusApproved)
		if result.Error != nil {
			return fmt.Errorf("failed to approve KYC: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotPending
		}

		now := time.Now()
		err := tx.Model(&models.KYCDetail{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"approval_date":    now,
				"rejection_reason": "",
			}).Error
		if err != nil {
			return fmt.Errorf("failed to stamp approval: %w", err)
		}

		return nil
	})
}

// Reject marks a pending submission rejected with a mandatory reason
func (s *Service) Reject(userID uuid.UUID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ? AND kyc_status = ?", userID, models.KYCStatusPending).
			Update("kyc_status", models.KYCStatusRejected)
		if result.Error != nil {
			return fmt.Errorf("failed to reject KYC: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotPending
		}

		err := tx.Model(&models.KYCDetail{}).
			Where("user_id = ?", userID).
			Update("rejection_reason", reason).Error
		if err != nil {
			return fmt.Errorf("failed to record rejection reason: %w", err)
		}

		return nil
	})
}

// Reset removes a user's KYC submission entirely, returning them to the
// not_submitted state and deleting their documents from the object store
func (s *Service) Reset(ctx context.Context, userID uuid.UUID) error {
	detail, err := s.Get(userID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(&models.KYCDetail{}, "user_id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to delete KYC submission: %w", err)
		}
		err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("kyc_status", models.KYCStatusNotSubmitted).Error
		if err != nil {
			return fmt.Errorf("failed to reset KYC status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteDocuments(ctx, detail.StorageIDs())
	return nil
}

// deleteSupersededDocuments removes documents replaced by a resubmission.
// Best effort: an orphaned object is preferable to failing the submission.
func (s *Service) deleteSupersededDocuments(ctx context.Context, previous, current *models.KYCDetail) {
	var superseded []string
	pairs := [][2]string{
		{previous.AddressProofStorageID, current.AddressProofStorageID},
		{previous.PANCardStorageID, current.PANCardStorageID},
		{previous.BankDocumentStorageID, current.BankDocumentStorageID},
	}
	for _, pair := range pairs {
		if pair[0] != "" && pair[0] != pair[1] {
			superseded = append(superseded, pair[0])
		}
	}
	s.deleteDocuments(ctx, superseded)
}

func (s *Service) deleteDocuments(ctx context.Context, storageIDs []string) {
	if s.store == nil {
		return
	}
	for _, id := range storageIDs {
		if err := s.store.Delete(ctx, id); err != nil {
			log.Printf("kyc: failed to delete stored document %s: %v", id, err)
		}
	}
}
