package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/payment/cashfree"
	"gorm.io/gorm"
)

// PaymentHandler handles order creation, gateway webhooks and verification
type PaymentHandler struct {
	db         *gorm.DB
	reconciler *payment.Reconciler
	gateway    *cashfree.Client
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, reconciler *payment.Reconciler, gateway *cashfree.Client) *PaymentHandler {
	return &PaymentHandler{
		db:         db,
		reconciler: reconciler,
		gateway:    gateway,
	}
}

// CreateOrderRequest represents the request body for order creation
type CreateOrderRequest struct {
	PackageType models.PackageType `json:"package_type" binding:"required"`
	CourseIDs   []uuid.UUID        `json:"course_ids" binding:"required,min=1"`
}

// CreateOrder opens a payment order for a package purchase. The amount is
// derived from the catalog prices, never from the request.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if req.PackageType != models.PackageTypeSkillBuilder && req.PackageType != models.PackageTypeCareerBooster {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown package type"})
		return
	}

	var courses []models.Course
	if err := h.db.Where("id IN ?", req.CourseIDs).Find(&courses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load courses"})
		return
	}
	if len(courses) != len(req.CourseIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "One or more courses not found"})
		return
	}

	input := payment.CreateOrderInput{
		UserID:      userID,
		PackageType: req.PackageType,
	}
	for _, course := range courses {
		input.Amount += course.Price
		input.Courses = append(input.Courses, payment.CourseItem{ID: course.ID, Title: course.Title})
	}

	record, err := h.reconciler.CreateOrder(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, payment.ErrGateway) {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Payment gateway unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Order created",
		"data": gin.H{
			"order_id":           record.OrderID,
			"amount":             record.Amount,
			"currency":           record.Currency,
			"payment_session_id": record.ResponseData["payment_session_id"],
		},
	})
}

// Webhook receives gateway payment notifications. The signature covers the
// raw body, so it is read and verified before any JSON decoding. A 500 tells
// the gateway to redeliver; redelivery of an already-settled order is a no-op.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("x-webhook-signature")
	timestamp := c.GetHeader("x-webhook-timestamp")
	if !h.gateway.VerifyWebhookSignature(timestamp, body, signature) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid signature"})
		return
	}

	var event cashfree.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Malformed event"})
		return
	}

	var rawEvent models.JSON
	if err := json.Unmarshal(body, &rawEvent); err != nil {
		rawEvent = models.JSON{}
	}

	if err := h.reconciler.HandleWebhookEvent(&event, rawEvent); err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			log.Printf("payment: webhook for unknown order %s", event.Data.Order.OrderID)
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown order"})
			return
		}
		log.Printf("payment: webhook processing failed for order %s: %v", event.Data.Order.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyOrder re-checks an order against the gateway. Used by the frontend
// after redirect when the webhook may not have landed yet.
func (h *PaymentHandler) VerifyOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var record models.Payment
	if err := h.db.First(&record, "order_id = ?", req.OrderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Order not found"})
		return
	}
	if record.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Order belongs to another user"})
		return
	}

	verified, err := h.reconciler.VerifyOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNoPayments):
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"message": "No payment attempts yet",
				"data":    gin.H{"status": record.Status},
			})
		case errors.Is(err, payment.ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Payment gateway unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": verified})
}

// History returns the authenticated user's orders
func (h *PaymentHandler) History(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	payments, err := h.reconciler.UserPayments(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load payment history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": payments})
}

// Refund marks a settled order refunded (admin only)
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.reconciler.Refund(req.OrderID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order refunded"})
}
