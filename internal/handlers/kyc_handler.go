package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/services/kyc"
	"github.com/gradskill/backend/internal/services/storage"
)

// KYCHandler handles KYC document upload, submission and admin review
type KYCHandler struct {
	kyc   *kyc.Service
	store storage.ObjectStore
}

// NewKYCHandler creates a new KYC handler
func NewKYCHandler(kycSvc *kyc.Service, store storage.ObjectStore) *KYCHandler {
	return &KYCHandler{kyc: kycSvc, store: store}
}

// UploadDocument stores one KYC document and returns its URL and storage id.
// The submission endpoint references these values.
func (h *KYCHandler) UploadDocument(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A document file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read document"})
		return
	}
	defer file.Close()

	result, err := h.store.Upload(c.Request.Context(), file, "kyc/"+userID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to store document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"url":        result.URL,
			"storage_id": result.StorageID,
		},
	})
}

// Submit records the user's KYC details and moves them to pending review
func (h *KYCHandler) Submit(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var input kyc.Submission
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	detail, err := h.kyc.Submit(c.Request.Context(), userID, input)
	if err != nil {
		if errors.Is(err, kyc.ErrAlreadyApproved) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to submit KYC"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "KYC submitted for review",
		"data":    detail,
	})
}

// Status returns the user's KYC submission, if any
func (h *KYCHandler) Status(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	detail, err := h.kyc.Get(userID)
	if err != nil {
		if errors.Is(err, kyc.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load KYC status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": detail})
}

// ListPending returns submissions awaiting review (admin only)
func (h *KYCHandler) ListPending(c *gin.Context) {
	details, err := h.kyc.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list pending submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": details})
}

// Approve marks a pending submission approved (admin only)
func (h *KYCHandler) Approve(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user id"})
		return
	}

	if err := h.kyc.Approve(userID); err != nil {
		if errors.Is(err, kyc.ErrNotPending) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to approve KYC"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "KYC approved"})
}

// RejectRequest carries the mandatory rejection reason
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject marks a pending submission rejected (admin only)
func (h *KYCHandler) Reject(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user id"})
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A rejection reason is required"})
		return
	}

	if err := h.kyc.Reject(userID, req.Reason); err != nil {
		switch {
		case errors.Is(err, kyc.ErrNotPending):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, kyc.ErrReasonRequired):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to reject KYC"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "KYC rejected"})
}

// Reset deletes a user's submission and returns them to not_submitted
// (admin only)
func (h *KYCHandler) Reset(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user id"})
		return
	}

	if err := h.kyc.Reset(c.Request.Context(), userID); err != nil {
		if errors.Is(err, kyc.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to reset KYC"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "KYC reset"})
}
