package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrAmountOutOfBounds is returned when a withdrawal amount is outside
	// the allowed range
	ErrAmountOutOfBounds = fmt.Errorf("withdrawal amount must be between %.0f and %.0f",
		models.WithdrawalMinAmount, models.WithdrawalMaxAmount)

	// ErrInsufficientBalance is returned when the wallet cannot cover the
	// requested amount
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrWithdrawalInProgress is returned when the user already has an open
	// withdrawal request
	ErrWithdrawalInProgress = errors.New("a withdrawal request is already in progress")

	// ErrKYCNotApproved is returned when a withdrawal is requested before KYC
	// approval
	ErrKYCNotApproved = errors.New("KYC must be approved before withdrawing")

	// ErrWithdrawalNotFound is returned when no withdrawal matches the id
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")

	// ErrAlreadyProcessed is returned when a decision is applied to a request
	// that already left the in-progress state
	ErrAlreadyProcessed = errors.New("withdrawal request already processed")

	// ErrRemarksRequired is returned when a rejection carries no remarks
	ErrRemarksRequired = errors.New("remarks are required when rejecting a withdrawal")
)

// Service manages wallet balances and the withdrawal workflow. Opening a
// request reserves the amount immediately, moving it from the balance to the
// total withdrawn, so it cannot be spent twice; a rejection reverses the
// reservation.
type Service struct {
	db *gorm.DB
}

// NewService creates a new wallet service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Details is the wallet view returned to the user
type Details struct {
	Balance        float64 `json:"balance"`
	TotalEarned    float64 `json:"totalEarned"`
	TotalWithdrawn float64 `json:"totalWithdrawn"`
}

// GetDetails returns a user's wallet balances
func (s *Service) GetDetails(userID uuid.UUID) (*Details, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &Details{
		Balance:        user.Wallet.Balance,
		TotalEarned:    user.Wallet.TotalEarned,
		TotalWithdrawn: user.Wallet.TotalWithdrawn,
	}, nil
}

// RequestWithdrawal opens a withdrawal request and reserves the amount,
// debiting the balance and crediting the total withdrawn in one step. At most
// one request per user may be in progress, and the debit is a conditional
// update so concurrent requests cannot overdraw the wallet.
func (s *Service) RequestWithdrawal(userID uuid.UUID, amount float64) (*models.Withdrawal, error) {
	if amount < models.WithdrawalMinAmount || amount > models.WithdrawalMaxAmount {
		return nil, ErrAmountOutOfBounds
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.KYCStatus != models.KYCStatusApproved {
		return nil, ErrKYCNotApproved
	}

	var withdrawal models.Withdrawal

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&models.Withdrawal{}).
			Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusInProgress).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("failed to check open withdrawals: %w", err)
		}
		if open > 0 {
			return ErrWithdrawalInProgress
		}

		// Reserve the amount: the balance debit and the total withdrawn
		// credit both happen at request time, so the balance always reads
		// "available to request". The balance guard in the WHERE clause makes
		// the debit atomic under concurrent requests.
		debit := tx.Model(&models.User{}).
			Where("id = ? AND wallet_balance >= ?", userID, amount).
			Updates(map[string]interface{}{
				"wallet_balance":         gorm.Expr("wallet_balance - ?", amount),
				"wallet_total_withdrawn": gorm.Expr("wallet_total_withdrawn + ?", amount),
			})
		if debit.Error != nil {
			return fmt.Errorf("failed to debit wallet: %w", debit.Error)
		}
		if debit.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		withdrawal = models.Withdrawal{
			UserID:      userID,
			Amount:      amount,
			Status:      models.WithdrawalStatusInProgress,
			RequestedAt: time.Now(),
		}
		if err := tx.Create(&withdrawal).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal request: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// Decide settles an in-progress withdrawal as Paid or Rejected. Paid only
// stamps the decision, since the money moved at request time; Rejected puts
// it back. Remarks are mandatory for rejections.
func (s *Service) Decide(withdrawalID uuid.UUID, status models.WithdrawalStatus, remarks string) (*models.Withdrawal, error) {
	if status != models.WithdrawalStatusPaid && status != models.WithdrawalStatusRejected {
		return nil, fmt.Errorf("invalid withdrawal decision %q", status)
	}
	if status == models.WithdrawalStatusRejected && remarks == "" {
		return nil, ErrRemarksRequired
	}

	var withdrawal models.Withdrawal

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&withdrawal, "id = ?", withdrawalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("failed to load withdrawal: %w", err)
		}

		now := time.Now()
		result := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", withdrawalID, models.WithdrawalStatusInProgress).
			Updates(map[string]interface{}{
				"status":        status,
				"admin_remarks": remarks,
				"processed_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update withdrawal: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		// The reservation already moved the money; Paid needs no wallet
		// change, Rejected reverses the reservation.
		if status == models.WithdrawalStatusRejected {
			err := tx.Model(&models.User{}).
				Where("id = ?", withdrawal.UserID).
				Updates(map[string]interface{}{
					"wallet_balance":         gorm.Expr("wallet_balance + ?", withdrawal.Amount),
					"wallet_total_withdrawn": gorm.Expr("wallet_total_withdrawn - ?", withdrawal.Amount),
				}).Error
			if err != nil {
				return fmt.Errorf("failed to reverse reservation: %w", err)
			}
		}

		withdrawal.Status = status
		withdrawal.AdminRemarks = remarks
		withdrawal.ProcessedAt = &now

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

// History returns a user's withdrawal requests, newest first
func (s *Service) History(userID uuid.UUID) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := s.db.
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal history: %w", err)
	}
	return withdrawals, nil
}

// ListAll returns withdrawal requests across all users for admin review,
// optionally filtered by status
func (s *Service) ListAll(status models.WithdrawalStatus) ([]models.Withdrawal, error) {
	query := s.db.Preload("User").Order("requested_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var withdrawals []models.Withdrawal
	if err := query.Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}
