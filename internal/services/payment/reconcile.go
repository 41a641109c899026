package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/payment/cashfree"
	"github.com/gradskill/backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardJobType is the queue job type for referral reward distribution
const RewardJobType queue.JobType = "distribute_referral_reward"

// RewardJobPayload is the payload for a reward distribution job
type RewardJobPayload struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

var (
	// ErrOrderNotFound is returned when no local record exists for an order id
	ErrOrderNotFound = errors.New("payment record not found")

	// ErrGateway wraps failures of the external payment gateway
	ErrGateway = errors.New("payment gateway error")

	// ErrNoPayments is returned by manual verification when the gateway has
	// no payment attempts recorded for the order
	ErrNoPayments = errors.New("no payments found for this order")
)

// Gateway is the outbound surface of the external payment collaborator
type Gateway interface {
	CreateOrder(ctx context.Context, req cashfree.CreateOrderRequest) (*cashfree.OrderResponse, error)
	FetchOrder(ctx context.Context, orderID string) (*cashfree.OrderResponse, error)
	FetchPayments(ctx context.Context, orderID string) ([]cashfree.PaymentInfo, error)
}

// Reconciler tracks orders from creation through gateway confirmation to a
// terminal state. All terminal transitions go through a conditional update on
// the order row, so webhook retries, manual verification and the pending
// sweep can race freely: exactly one caller wins, and only the winner grants
// course access and triggers reward distribution.
type Reconciler struct {
	db          *gorm.DB
	gateway     Gateway
	queue       queue.QueueInterface
	frontendURL string
	backendURL  string
}

// NewReconciler creates a new payment reconciler
func NewReconciler(db *gorm.DB, gateway Gateway, q queue.QueueInterface, frontendURL, backendURL string) *Reconciler {
	return &Reconciler{
		db:          db,
		gateway:     gateway,
		queue:       q,
		frontendURL: frontendURL,
		backendURL:  backendURL,
	}
}

// CourseItem is one course on an order being created
type CourseItem struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"name"`
}

// CreateOrderInput carries the purchase request
type CreateOrderInput struct {
	UserID      uuid.UUID
	Courses     []CourseItem
	PackageType models.PackageType
	Amount      float64
	Currency    string
}

// CreateOrder creates a gateway-side order and persists the pending payment
// record. If the gateway rejects the creation no local record is kept: an
// order is only authoritative once the gateway confirms it exists.
func (r *Reconciler) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Payment, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", input.UserID, gorm.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	orderID := utils.GenerateOrderID()

	gatewayOrder, err := r.gateway.CreateOrder(ctx, cashfree.CreateOrderRequest{
		OrderID:       orderID,
		OrderAmount:   input.Amount,
		OrderCurrency: currency,
		CustomerDetails: cashfree.CustomerDetails{
			CustomerID:    "GS_" + user.ID.String(),
			CustomerEmail: user.Email,
			CustomerPhone: user.MobileNumber,
		},
		OrderNote:       fmt.Sprintf("%s Purchase", input.PackageType),
		OrderExpiryTime: time.Now().Add(30 * time.Minute).Format(time.RFC3339),
		OrderMeta: cashfree.OrderMeta{
			ReturnURL: r.frontendURL + "/payment/success?order_id={order_id}",
			NotifyURL: r.backendURL + "/api/payments/webhook",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	payment := models.Payment{
		OrderID:      orderID,
		UserID:       user.ID,
		PackageType:  input.PackageType,
		Amount:       input.Amount,
		Currency:     currency,
		Status:       models.PaymentStatusPending,
		ResponseData: models.JSON(gatewayOrder.Raw),
	}
	for _, course := range input.Courses {
		payment.Courses = append(payment.Courses, models.PaymentCourse{
			CourseID:    course.ID,
			CourseTitle: course.Title,
		})
	}

	if err := r.db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to persist payment record: %w", err)
	}

	return &payment, nil
}

// HandleWebhookEvent applies a verified webhook notification. Delivery is
// at-least-once: notifications for an already-terminal order are no-ops.
// Signature verification happens at the HTTP boundary before this is called.
func (r *Reconciler) HandleWebhookEvent(event *cashfree.WebhookEvent, rawEvent models.JSON) error {
	orderID := event.Data.Order.OrderID
	status := statusFromGateway(event.Data.Payment.PaymentStatus)

	outcome := settlement{
		transactionID: event.Data.Payment.CFPaymentID.String(),
		method:        models.DecodePaymentMethod(event.Data.Payment.PaymentMethod),
		responseData:  rawEvent,
	}

	return r.settle(orderID, status, outcome)
}

// VerifyOrder queries the gateway for the authoritative order status and
// applies the same transition discipline as the webhook path. It is the
// fallback for delayed or missed webhooks.
func (r *Reconciler) VerifyOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	payments, err := r.gateway.FetchPayments(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if len(payments) == 0 {
		return nil, ErrNoPayments
	}

	order, err := r.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	// Attempt order from the gateway is not guaranteed, and a successful
	// attempt is authoritative regardless of position.
	attempt := payments[len(payments)-1]
	for i := range payments {
		if statusFromGateway(payments[i].PaymentStatus) == models.PaymentStatusSuccess {
			attempt = payments[i]
			break
		}
	}

	var record models.Payment
	if err := r.db.First(&record, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load payment record: %w", err)
	}

	if order.OrderAmount != record.Amount {
		log.Printf("reconcile: amount mismatch during manual verify for order %s (gateway %.2f, local %.2f)",
			orderID, order.OrderAmount, record.Amount)
	}

	outcome := settlement{
		transactionID: attempt.CFPaymentID.String(),
		method:        models.DecodePaymentMethod(attempt.PaymentMethod),
		responseData:  models.JSON{"order": order.Raw, "payment": attempt.Raw},
	}

	if err := r.settle(orderID, statusFromGateway(attempt.PaymentStatus), outcome); err != nil {
		return nil, err
	}

	if err := r.db.Preload("Courses").First(&record, "order_id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment record: %w", err)
	}
	return &record, nil
}

// SweepPending re-verifies orders stuck in pending longer than maxAge.
// Scheduled as a recurring job; covers webhooks that never arrived.
func (r *Reconciler) SweepPending(ctx context.Context, maxAge time.Duration) error {
	var stale []models.Payment
	cutoff := time.Now().Add(-maxAge)
	err := r.db.
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Limit(50).
		Find(&stale).Error
	if err != nil {
		return fmt.Errorf("failed to list stale pending orders: %w", err)
	}

	for _, payment := range stale {
		if _, err := r.VerifyOrder(ctx, payment.OrderID); err != nil {
			if errors.Is(err, ErrNoPayments) {
				continue
			}
			log.Printf("reconcile: sweep failed for order %s: %v", payment.OrderID, err)
		}
	}

	return nil
}

// Refund transitions a settled order to refunded (admin-driven)
func (r *Reconciler) Refund(orderID string) error {
	result := r.db.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusSuccess).
		Update("status", models.PaymentStatusRefunded)
	if result.Error != nil {
		return fmt.Errorf("failed to mark order refunded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %s is not in a refundable state", orderID)
	}
	return nil
}

// UserPayments returns a user's order history, newest first
func (r *Reconciler) UserPayments(userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Preload("Courses").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	return payments, nil
}

// settlement carries the gateway-reported facts applied on a transition
type settlement struct {
	transactionID string
	method        models.PaymentMethod
	responseData  models.JSON
}

// settle applies a status transition for an order. Terminal states are only
// reachable from pending via a conditional update; losing the race (or
// re-delivering a notification) is a silent no-op.
func (r *Reconciler) settle(orderID string, status models.PaymentStatus, outcome settlement) error {
	var payment models.Payment
	if err := r.db.First(&payment, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to load payment record: %w", err)
	}

	switch status {
	case models.PaymentStatusSuccess:
		return r.settleSuccess(&payment, outcome)
	case models.PaymentStatusFailed:
		result := r.db.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusFailed,
				"transaction_id": outcome.transactionID,
				"payment_method": outcome.method,
				"response_data":  outcome.responseData,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark order failed: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			log.Printf("reconcile: order %s already terminal, ignoring failed notification", orderID)
		}
		return nil
	default:
		// Still pending on the gateway side; nothing to transition.
		return nil
	}
}

func (r *Reconciler) settleSuccess(payment *models.Payment, outcome settlement) error {
	won := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PaymentStatusSuccess,
				"transaction_id": outcome.transactionID,
				"payment_method": outcome.method,
				"response_data":  outcome.responseData,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark order success: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Another delivery already settled this order.
			return nil
		}
		won = true

		// Claim the first package purchase. The conditional update makes the
		// claim atomic under concurrent orders for the same buyer.
		firstClaim := tx.Model(&models.User{}).
			Where("id = ? AND package_type = ?", payment.UserID, models.PackageTypeNone).
			Update("package_type", payment.PackageType)
		if firstClaim.Error != nil {
			return fmt.Errorf("failed to claim first purchase: %w", firstClaim.Error)
		}
		first := firstClaim.RowsAffected == 1
		if !first {
			err := tx.Model(&models.User{}).
				Where("id = ?", payment.UserID).
				Update("package_type", payment.PackageType).Error
			if err != nil {
				return fmt.Errorf("failed to update package type: %w", err)
			}
		}

		if first {
			err := tx.Model(&models.Payment{}).
				Where("id = ?", payment.ID).
				Update("first_package_purchase", true).Error
			if err != nil {
				return fmt.Errorf("failed to stamp first purchase: %w", err)
			}
		}

		// Grant course access, deduplicated.
		var items []models.PaymentCourse
		if err := tx.Where("payment_id = ?", payment.ID).Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load order line items: %w", err)
		}
		for _, item := range items {
			enrollment := models.Enrollment{
				UserID:   payment.UserID,
				CourseID: item.CourseID,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment).Error; err != nil {
				return fmt.Errorf("failed to grant course access: %w", err)
			}
		}

		// Reward distribution runs as a queue job enqueued in the same
		// transaction as the status flip: either the order settles with its
		// job row committed, or neither lands and the gateway's redelivery
		// retries the whole transition.
		if _, err := r.queue.EnqueueTx(tx, RewardJobType, RewardJobPayload{PaymentID: payment.ID}); err != nil {
			return fmt.Errorf("failed to enqueue reward distribution: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if !won {
		log.Printf("reconcile: order %s already settled, skipping side effects", payment.OrderID)
	}

	return nil
}

// statusFromGateway maps gateway payment statuses onto the local state machine
func statusFromGateway(status string) models.PaymentStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS", "PAID":
		return models.PaymentStatusSuccess
	case "FAILED", "FAILURE", "USER_DROPPED", "CANCELLED", "VOID", "EXPIRED", "TERMINATED":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
