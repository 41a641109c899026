package referral

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rewardTable holds the fixed per-level commission amounts, level 1 first
var rewardTable = map[models.PackageType][]float64{
	models.PackageTypeSkillBuilder:  {900, 150, 75},
	models.PackageTypeCareerBooster: {1250, 250, 150},
}

var (
	// ErrPaymentNotSettled is returned when distribution is attempted for an
	// order that has not reached the success state
	ErrPaymentNotSettled = errors.New("payment is not in success state")

	// ErrUnknownPackage is returned when the order's package has no reward row
	ErrUnknownPackage = errors.New("no reward table entry for package type")
)

// RewardEngine distributes commission for a settled package purchase to up to
// three upline ancestors. Distribution is idempotent per order: the earnings
// ledger's unique key on (purchased_by, level, package, payment) makes every
// ancestor credit conditional, so the whole procedure can be re-run after a
// crash or a duplicate webhook without double-crediting.
type RewardEngine struct {
	db    *gorm.DB
	graph *Service
}

// NewRewardEngine creates a new reward engine
func NewRewardEngine(db *gorm.DB, graph *Service) *RewardEngine {
	return &RewardEngine{db: db, graph: graph}
}

// RewardAmounts returns the per-level amounts for a package type
func RewardAmounts(pkg models.PackageType) ([]float64, bool) {
	amounts, ok := rewardTable[pkg]
	return amounts, ok
}

// DistributeForPayment credits the buyer's upline for the given order.
// The order must be settled; rewards only flow for the buyer's first package
// purchase, which reconciliation stamps on the payment record.
func (e *RewardEngine) DistributeForPayment(paymentID uuid.UUID) error {
	var payment models.Payment
	if err := e.db.First(&payment, "id = ?", paymentID).Error; err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	if payment.Status != models.PaymentStatusSuccess {
		return fmt.Errorf("%w: order %s is %s", ErrPaymentNotSettled, payment.OrderID, payment.Status)
	}

	if !payment.FirstPackagePurchase {
		log.Printf("reward: order %s is not a first package purchase, nothing to distribute", payment.OrderID)
		return nil
	}

	amounts, ok := rewardTable[payment.PackageType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPackage, payment.PackageType)
	}

	upline, err := e.graph.ResolveUpline(payment.UserID, MaxUplineDepth)
	if err != nil {
		return err
	}

	// Each ancestor credit commits independently. If we fail midway the job
	// retries and the ledger key skips the ancestors already credited.
	for i, ancestorID := range upline {
		level := i + 1
		if err := e.creditAncestor(&payment, ancestorID, level, amounts[i]); err != nil {
			return fmt.Errorf("failed to credit level %d ancestor %s: %w", level, ancestorID, err)
		}
	}

	return nil
}

// creditAncestor registers the buyer in the ancestor's downline set, then
// appends the ledger entry and increments the wallet in one transaction. The
// wallet increment only runs when the ledger insert took effect, which is
// what closes the race between concurrent webhook and manual-verify calls.
func (e *RewardEngine) creditAncestor(payment *models.Payment, ancestorID uuid.UUID, level int, amount float64) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.graph.RegisterDescendant(tx, ancestorID, level, payment.UserID); err != nil {
			return err
		}

		entry := models.EarningEntry{
			UserID:        ancestorID,
			Amount:        amount,
			PackageType:   payment.PackageType,
			PurchasedByID: payment.UserID,
			Level:         level,
			PaymentID:     payment.ID,
			PurchasedAt:   time.Now(),
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if result.Error != nil {
			return fmt.Errorf("error appending earning entry: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Already rewarded for this (buyer, level, package, payment);
			// legitimate under at-least-once webhook delivery.
			log.Printf("reward: order %s level %d already credited, skipping", payment.OrderID, level)
			return nil
		}

		err := tx.Model(&models.User{}).
			Where("id = ?", ancestorID).
			Updates(map[string]interface{}{
				"wallet_balance":      gorm.Expr("wallet_balance + ?", amount),
				"wallet_total_earned": gorm.Expr("wallet_total_earned + ?", amount),
			}).Error
		if err != nil {
			return fmt.Errorf("error crediting wallet: %w", err)
		}

		return nil
	})
}
