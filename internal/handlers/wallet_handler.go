package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/services/wallet"
)

// WalletHandler handles wallet queries and the withdrawal workflow
type WalletHandler struct {
	wallet *wallet.Service
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletSvc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: walletSvc}
}

// Details returns the user's wallet balances
func (h *WalletHandler) Details(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	details, err := h.wallet.GetDetails(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": details})
}

// WithdrawRequest represents the request body for a withdrawal
type WithdrawRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// RequestWithdrawal opens a withdrawal request against the wallet balance
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	withdrawal, err := h.wallet.RequestWithdrawal(userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrAmountOutOfBounds),
			errors.Is(err, wallet.ErrInsufficientBalance),
			errors.Is(err, wallet.ErrKYCNotApproved):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, wallet.ErrWithdrawalInProgress):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create withdrawal request"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Withdrawal request created",
		"data":    withdrawal,
	})
}

// History returns the user's withdrawal requests
func (h *WalletHandler) History(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	withdrawals, err := h.wallet.History(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load withdrawal history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": withdrawals})
}

// ListWithdrawals returns withdrawal requests for admin review, optionally
// filtered by ?status=
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.Query("status"))

	withdrawals, err := h.wallet.ListAll(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list withdrawals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": withdrawals})
}

// DecideRequest represents the admin decision body
type DecideRequest struct {
	Status  models.WithdrawalStatus `json:"status" binding:"required"`
	Remarks string                  `json:"remarks"`
}

// DecideWithdrawal settles a withdrawal request as Paid or Rejected
func (h *WalletHandler) DecideWithdrawal(c *gin.Context) {
	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid withdrawal id"})
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	withdrawal, err := h.wallet.Decide(withdrawalID, req.Status, req.Remarks)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrWithdrawalNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, wallet.ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, wallet.ErrRemarksRequired):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process withdrawal"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Withdrawal " + string(withdrawal.Status),
		"data":    withdrawal,
	})
}
