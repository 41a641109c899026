package kyc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/services/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeStore struct {
	deleted []string
}

func (s *fakeStore) Upload(_ context.Context, _ io.Reader, _ string) (*storage.UploadResult, error) {
	return &storage.UploadResult{URL: "https://cdn.example.com/doc", StorageID: "kyc/doc"}, nil
}

func (s *fakeStore) Delete(_ context.Context, storageID string) error {
	s.deleted = append(s.deleted, storageID)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")
	user := &models.User{
		Name:         "applicant",
		Email:        "applicant-" + unique[:8] + "@example.com",
		MobileNumber: "+91" + unique[:10],
		PasswordHash: "x",
		ReferralCode: "GS" + strings.ToUpper(unique[:6]),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func sampleSubmission(suffix string) Submission {
	return Submission{
		DocumentType:          "aadhaar",
		DocumentNumber:        "1234-5678-9012",
		AddressProofURL:       "https://cdn.example.com/address-" + suffix,
		AddressProofStorageID: "kyc/address-" + suffix,
		PANNumber:             "ABCDE1234F",
		PANCardURL:            "https://cdn.example.com/pan-" + suffix,
		PANCardStorageID:      "kyc/pan-" + suffix,
		BankName:              "State Bank",
		AccountHolderName:     "Applicant Kumar",
		AccountNumber:         "000111222333",
		IFSCCode:              "SBIN0001234",
		BankDocumentType:      "passbook",
		BankDocumentURL:       "https://cdn.example.com/bank-" + suffix,
		BankDocumentStorageID: "kyc/bank-" + suffix,
	}
}

func kycStatusOf(t *testing.T, db *gorm.DB, userID uuid.UUID) models.KYCStatus {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	return user.KYCStatus
}

func TestSubmitMovesToPending(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	require.Equal(t, models.KYCStatusNotSubmitted, kycStatusOf(t, db, user.ID))

	detail, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)
	assert.NotNil(t, detail.SubmissionDate)
	assert.Equal(t, models.KYCStatusPending, kycStatusOf(t, db, user.ID))
}

func TestApproveFromPending(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	_, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)

	require.NoError(t, svc.Approve(user.ID))
	assert.Equal(t, models.KYCStatusApproved, kycStatusOf(t, db, user.ID))

	detail, err := svc.Get(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, detail.ApprovalDate)

	// Approving again fails: the submission is no longer pending.
	assert.ErrorIs(t, svc.Approve(user.ID), ErrNotPending)
}

func TestApproveRequiresPendingSubmission(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	assert.ErrorIs(t, svc.Approve(user.ID), ErrNotPending)
}

func TestRejectRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	_, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Reject(user.ID, ""), ErrReasonRequired)

	require.NoError(t, svc.Reject(user.ID, "PAN number does not match the card"))
	assert.Equal(t, models.KYCStatusRejected, kycStatusOf(t, db, user.ID))

	detail, err := svc.Get(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAN number does not match the card", detail.RejectionReason)
}

func TestResubmitAfterRejection(t *testing.T) {
	db := setupTestDB(t)
	store := &fakeStore{}
	svc := NewService(db, store)

	user := createUser(t, db)
	_, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)
	require.NoError(t, svc.Reject(user.ID, "blurry document"))

	detail, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v2"))
	require.NoError(t, err)
	assert.Equal(t, models.KYCStatusPending, kycStatusOf(t, db, user.ID))
	assert.Equal(t, "kyc/pan-v2", detail.PANCardStorageID)

	// Still one row per user, and the superseded documents were cleaned up.
	var count int64
	require.NoError(t, db.Model(&models.KYCDetail{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.ElementsMatch(t, []string{"kyc/address-v1", "kyc/pan-v1", "kyc/bank-v1"}, store.deleted)
}

func TestSubmitAfterApprovalRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	_, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)
	require.NoError(t, svc.Approve(user.ID))

	_, err = svc.Submit(context.Background(), user.ID, sampleSubmission("v2"))
	assert.ErrorIs(t, err, ErrAlreadyApproved)
}

func TestResetDeletesSubmissionAndDocuments(t *testing.T) {
	db := setupTestDB(t)
	store := &fakeStore{}
	svc := NewService(db, store)

	user := createUser(t, db)
	_, err := svc.Submit(context.Background(), user.ID, sampleSubmission("v1"))
	require.NoError(t, err)

	require.NoError(t, svc.Reset(context.Background(), user.ID))
	assert.Equal(t, models.KYCStatusNotSubmitted, kycStatusOf(t, db, user.ID))

	_, err = svc.Get(user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ElementsMatch(t, []string{"kyc/address-v1", "kyc/pan-v1", "kyc/bank-v1"}, store.deleted)
}

func TestGetWithoutSubmission(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	user := createUser(t, db)
	_, err := svc.Get(user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
