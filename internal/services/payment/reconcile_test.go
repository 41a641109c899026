package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/payment/cashfree"
	"github.com/gradskill/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	createErr error
	order     *cashfree.OrderResponse
	payments  []cashfree.PaymentInfo
	fetchErr  error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req cashfree.CreateOrderRequest) (*cashfree.OrderResponse, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &cashfree.OrderResponse{
		CFOrderID:        "cf_1",
		OrderID:          req.OrderID,
		OrderAmount:      req.OrderAmount,
		OrderCurrency:    req.OrderCurrency,
		OrderStatus:      "ACTIVE",
		PaymentSessionID: "session_abc",
		Raw:              map[string]interface{}{"payment_session_id": "session_abc"},
	}, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*cashfree.OrderResponse, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	order := *g.order
	order.OrderID = orderID
	return &order, nil
}

func (g *fakeGateway) FetchPayments(_ context.Context, _ string) ([]cashfree.PaymentInfo, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.payments, nil
}

type fakeQueue struct {
	enqueued   []queue.Job
	enqueueErr error
}

func (q *fakeQueue) RegisterHandler(queue.JobType, queue.JobHandler) {}

func (q *fakeQueue) Enqueue(jobType queue.JobType, payload interface{}) (uuid.UUID, error) {
	return q.EnqueueTx(nil, jobType, payload)
}

func (q *fakeQueue) EnqueueTx(_ *gorm.DB, jobType queue.JobType, payload interface{}) (uuid.UUID, error) {
	if q.enqueueErr != nil {
		return uuid.Nil, q.enqueueErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	job := queue.Job{ID: uuid.New(), Type: jobType, Payload: data}
	q.enqueued = append(q.enqueued, job)
	return job.ID, nil
}

func (q *fakeQueue) ProcessPending(context.Context, int) error { return nil }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createBuyer(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")
	user := &models.User{
		Name:         "buyer",
		Email:        "buyer-" + unique[:8] + "@example.com",
		MobileNumber: "+91" + unique[:10],
		PasswordHash: "x",
		ReferralCode: "GS" + strings.ToUpper(unique[:6]),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createPendingOrder(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Payment {
	t.Helper()
	course := &models.Course{Title: "Intro to Data " + uuid.NewString()[:8], Price: 4999}
	require.NoError(t, db.Create(course).Error)

	payment := &models.Payment{
		OrderID:     utils.GenerateOrderID(),
		UserID:      userID,
		PackageType: models.PackageTypeSkillBuilder,
		Amount:      4999,
		Currency:    "INR",
		Status:      models.PaymentStatusPending,
		Courses: []models.PaymentCourse{
			{CourseID: course.ID, CourseTitle: course.Title},
		},
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func successEvent(t *testing.T, orderID, status string) *cashfree.WebhookEvent {
	t.Helper()
	body := fmt.Sprintf(`{
		"type": "PAYMENT_SUCCESS_WEBHOOK",
		"data": {
			"order": {"order_id": %q, "order_amount": 4999},
			"payment": {
				"cf_payment_id": 12345,
				"payment_status": %q,
				"payment_amount": 4999,
				"payment_method": {"upi": {"upi_id": "buyer@upi"}}
			}
		}
	}`, orderID, status)

	var event cashfree.WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(body), &event))
	return &event
}

func newReconciler(db *gorm.DB, gw Gateway, q queue.QueueInterface) *Reconciler {
	return NewReconciler(db, gw, q, "http://localhost:3000", "http://localhost:8080")
}

func TestCreateOrderPersistsPendingRecord(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	courseID := uuid.New()

	record, err := r.CreateOrder(context.Background(), CreateOrderInput{
		UserID:      buyer.ID,
		PackageType: models.PackageTypeSkillBuilder,
		Amount:      4999,
		Courses:     []CourseItem{{ID: courseID, Title: "Intro to Data"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, record.Status)
	assert.Equal(t, "INR", record.Currency)
	assert.True(t, strings.HasPrefix(record.OrderID, "GS_"))
	require.Len(t, record.Courses, 1)
	assert.Equal(t, courseID, record.Courses[0].CourseID)
	assert.Equal(t, "session_abc", record.ResponseData["payment_session_id"])
}

func TestCreateOrderGatewayFailureLeavesNoRecord(t *testing.T) {
	db := setupTestDB(t)
	r := newReconciler(db, &fakeGateway{createErr: errors.New("boom")}, &fakeQueue{})

	buyer := createBuyer(t, db)

	_, err := r.CreateOrder(context.Background(), CreateOrderInput{
		UserID:      buyer.ID,
		PackageType: models.PackageTypeSkillBuilder,
		Amount:      4999,
	})
	assert.ErrorIs(t, err, ErrGateway)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestWebhookSettlesOrder(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	event := successEvent(t, order.OrderID, "SUCCESS")
	require.NoError(t, r.HandleWebhookEvent(event, models.JSON{"seen": true}))

	var settled models.Payment
	require.NoError(t, db.First(&settled, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, settled.Status)
	assert.Equal(t, "12345", settled.TransactionID)
	assert.Equal(t, models.PaymentMethodUPI, settled.PaymentMethod.Type)
	assert.True(t, settled.FirstPackagePurchase)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", buyer.ID).Error)
	assert.Equal(t, models.PackageTypeSkillBuilder, user.PackageType)

	var enrollments int64
	require.NoError(t, db.Model(&models.Enrollment{}).Where("user_id = ?", buyer.ID).Count(&enrollments).Error)
	assert.Equal(t, int64(1), enrollments)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, RewardJobType, q.enqueued[0].Type)
	var payload RewardJobPayload
	require.NoError(t, json.Unmarshal(q.enqueued[0].Payload, &payload))
	assert.Equal(t, order.ID, payload.PaymentID)
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	event := successEvent(t, order.OrderID, "SUCCESS")
	require.NoError(t, r.HandleWebhookEvent(event, models.JSON{}))
	require.NoError(t, r.HandleWebhookEvent(event, models.JSON{}))

	var enrollments int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&enrollments).Error)
	assert.Equal(t, int64(1), enrollments)

	// Only the winning transition enqueues reward distribution.
	assert.Len(t, q.enqueued, 1)
}

func TestWebhookEnqueueFailureRollsBackSettlement(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{enqueueErr: errors.New("queue unavailable")}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	event := successEvent(t, order.OrderID, "SUCCESS")
	require.Error(t, r.HandleWebhookEvent(event, models.JSON{}))

	// The transition rolled back with the job, so the order is still pending
	// and a redelivery can settle it once the queue recovers.
	var record models.Payment
	require.NoError(t, db.First(&record, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, record.Status)
	assert.Empty(t, q.enqueued)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", buyer.ID).Error)
	assert.Equal(t, models.PackageTypeNone, user.PackageType)

	q.enqueueErr = nil
	require.NoError(t, r.HandleWebhookEvent(event, models.JSON{}))

	require.NoError(t, db.First(&record, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, record.Status)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, RewardJobType, q.enqueued[0].Type)
}

func TestWebhookFailedPaymentIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	require.NoError(t, r.HandleWebhookEvent(successEvent(t, order.OrderID, "USER_DROPPED"), models.JSON{}))

	var failed models.Payment
	require.NoError(t, db.First(&failed, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)

	// A late success notification must not resurrect the order.
	require.NoError(t, r.HandleWebhookEvent(successEvent(t, order.OrderID, "SUCCESS"), models.JSON{}))
	require.NoError(t, db.First(&failed, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Empty(t, q.enqueued)
}

func TestWebhookUnknownOrder(t *testing.T) {
	db := setupTestDB(t)
	r := newReconciler(db, &fakeGateway{}, &fakeQueue{})

	err := r.HandleWebhookEvent(successEvent(t, "GS_0_000", "SUCCESS"), models.JSON{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestWebhookRepeatPurchaseDoesNotReclaimFirstFlag(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}
	r := newReconciler(db, &fakeGateway{}, q)

	buyer := createBuyer(t, db)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", buyer.ID).
		Update("package_type", models.PackageTypeSkillBuilder).Error)

	order := createPendingOrder(t, db, buyer.ID)
	require.NoError(t, r.HandleWebhookEvent(successEvent(t, order.OrderID, "SUCCESS"), models.JSON{}))

	var settled models.Payment
	require.NoError(t, db.First(&settled, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, settled.Status)
	assert.False(t, settled.FirstPackagePurchase)
}

func TestVerifyOrderSettlesFromGateway(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	gw := &fakeGateway{
		order: &cashfree.OrderResponse{OrderStatus: "PAID", OrderAmount: 4999},
		payments: []cashfree.PaymentInfo{
			{CFPaymentID: "999", PaymentStatus: "SUCCESS", PaymentAmount: 4999, PaymentMethod: "upi"},
		},
	}
	r := newReconciler(db, gw, q)

	verified, err := r.VerifyOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, verified.Status)
	assert.Equal(t, "999", verified.TransactionID)
	assert.Len(t, q.enqueued, 1)
}

func TestVerifyOrderPrefersSuccessfulAttempt(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	// A dropped retry listed after the successful attempt must not win.
	gw := &fakeGateway{
		order: &cashfree.OrderResponse{OrderStatus: "PAID", OrderAmount: 4999},
		payments: []cashfree.PaymentInfo{
			{CFPaymentID: "1001", PaymentStatus: "SUCCESS", PaymentAmount: 4999, PaymentMethod: "upi"},
			{CFPaymentID: "1002", PaymentStatus: "USER_DROPPED", PaymentAmount: 4999, PaymentMethod: "upi"},
		},
	}
	r := newReconciler(db, gw, q)

	verified, err := r.VerifyOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, verified.Status)
	assert.Equal(t, "1001", verified.TransactionID)
}

func TestVerifyOrderNoPayments(t *testing.T) {
	db := setupTestDB(t)
	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	r := newReconciler(db, &fakeGateway{payments: nil}, &fakeQueue{})

	_, err := r.VerifyOrder(context.Background(), order.OrderID)
	assert.ErrorIs(t, err, ErrNoPayments)
}

func TestSweepPendingSettlesStaleOrders(t *testing.T) {
	db := setupTestDB(t)
	q := &fakeQueue{}

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)
	require.NoError(t, db.Model(&models.Payment{}).
		Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	fresh := createPendingOrder(t, db, buyer.ID)

	gw := &fakeGateway{
		order: &cashfree.OrderResponse{OrderStatus: "PAID", OrderAmount: 4999},
		payments: []cashfree.PaymentInfo{
			{CFPaymentID: "77", PaymentStatus: "SUCCESS", PaymentAmount: 4999, PaymentMethod: "card"},
		},
	}
	r := newReconciler(db, gw, q)

	require.NoError(t, r.SweepPending(context.Background(), 30*time.Minute))

	var swept models.Payment
	require.NoError(t, db.First(&swept, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusSuccess, swept.Status)

	// The fresh order is younger than the cutoff and stays untouched.
	var untouched models.Payment
	require.NoError(t, db.First(&untouched, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, untouched.Status)
}

func TestRefundOnlySettledOrders(t *testing.T) {
	db := setupTestDB(t)
	r := newReconciler(db, &fakeGateway{}, &fakeQueue{})

	buyer := createBuyer(t, db)
	order := createPendingOrder(t, db, buyer.ID)

	assert.Error(t, r.Refund(order.OrderID))

	require.NoError(t, r.HandleWebhookEvent(successEvent(t, order.OrderID, "SUCCESS"), models.JSON{}))
	require.NoError(t, r.Refund(order.OrderID))

	var refunded models.Payment
	require.NoError(t, db.First(&refunded, "id = ?", order.ID).Error)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	// Refunding twice fails: the order already left the success state.
	assert.Error(t, r.Refund(order.OrderID))
}

func TestStatusFromGateway(t *testing.T) {
	assert.Equal(t, models.PaymentStatusSuccess, statusFromGateway("SUCCESS"))
	assert.Equal(t, models.PaymentStatusSuccess, statusFromGateway("paid"))
	assert.Equal(t, models.PaymentStatusFailed, statusFromGateway("FAILED"))
	assert.Equal(t, models.PaymentStatusFailed, statusFromGateway("USER_DROPPED"))
	assert.Equal(t, models.PaymentStatusPending, statusFromGateway("PENDING"))
	assert.Equal(t, models.PaymentStatusPending, statusFromGateway("something_new"))
}
