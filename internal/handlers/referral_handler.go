package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/services/referral"
)

// ReferralHandler exposes the referral tree, earnings and leaderboard
type ReferralHandler struct {
	graph    *referral.Service
	earnings *referral.EarningsService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(graph *referral.Service, earnings *referral.EarningsService) *ReferralHandler {
	return &ReferralHandler{graph: graph, earnings: earnings}
}

// ValidateCode checks whether a referral code exists. Public: the signup form
// calls it before submitting.
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	code := c.Param("code")

	referrer, err := h.graph.FindByReferralCode(code)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidReferralCode) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid referral code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to validate referral code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"referrer_name": referrer.Name},
	})
}

// Tree returns the authenticated user's three-level downline
func (h *ReferralHandler) Tree(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	tree, err := h.graph.DownlineTree(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load referral tree"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tree})
}

// EarningsSummary returns rolled-up earnings windows for the user
func (h *ReferralHandler) EarningsSummary(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	summary, err := h.earnings.Summary(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load earnings summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// EarningsHistory returns the user's earnings ledger
func (h *ReferralHandler) EarningsHistory(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	history, err := h.earnings.History(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load earnings history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": history})
}

// Leaderboard returns the top referrers
func (h *ReferralHandler) Leaderboard(c *gin.Context) {
	entries, err := h.earnings.Leaderboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}
