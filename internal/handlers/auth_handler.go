package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/services/referral"
	"github.com/gradskill/backend/internal/services/sms"
	"github.com/gradskill/backend/internal/utils"
	"gorm.io/gorm"
)

// AuthHandler handles registration, OTP verification and login
type AuthHandler struct {
	db       *gorm.DB
	referral *referral.Service
	sms      sms.Sender
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, referralSvc *referral.Service, smsSender sms.Sender) *AuthHandler {
	return &AuthHandler{
		db:       db,
		referral: referralSvc,
		sms:      smsSender,
	}
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	MobileNumber string `json:"mobile_number" binding:"required"`
	Password     string `json:"password" binding:"required,min=8"`
	ReferralCode string `json:"referral_code" binding:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// OTPRequest carries a mobile number and the code delivered to it
type OTPRequest struct {
	MobileNumber string `json:"mobile_number" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

// Register handles user registration. Every signup must carry a referral code
// that resolves to an existing user; the referrer link is fixed here and never
// changes afterwards.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var existing models.User
	result := h.db.Where("email = ? OR mobile_number = ?", req.Email, req.MobileNumber).First(&existing)
	if result.Error == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Email or mobile number already in use"})
		return
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to check existing users"})
		return
	}

	referrer, err := h.referral.FindByReferralCode(req.ReferralCode)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidReferralCode) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid referral code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to resolve referral code"})
		return
	}
	referrerID := &referrer.ID

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process password"})
		return
	}

	referralCode, err := h.referral.GenerateUniqueReferralCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate referral code"})
		return
	}

	otpSecret, err := utils.NewOTPSecret(req.MobileNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to set up verification"})
		return
	}

	otpExpiry := time.Now().Add(utils.OTPValidity)
	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		PasswordHash: passwordHash,
		ReferralCode: referralCode,
		ReferredByID: referrerID,
		OTPSecret:    otpSecret,
		OTPExpiresAt: &otpExpiry,
	}

	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create user"})
		return
	}

	h.deliverOTP(c, &user)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful, verify your mobile number",
		"data": gin.H{
			"user_id":       user.ID,
			"referral_code": user.ReferralCode,
		},
	})
}

// VerifyOTP confirms a delivered code and marks the mobile number verified
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, "mobile_number = ?", req.MobileNumber).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}

	if user.MobileVerified {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Mobile number already verified"})
		return
	}

	if user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Code expired, request a new one"})
		return
	}

	if !utils.VerifyOTP(req.Code, user.OTPSecret) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid code"})
		return
	}

	err := h.db.Model(&user).Updates(map[string]interface{}{
		"mobile_verified": true,
		"otp_expires_at":  nil,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to verify mobile number"})
		return
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Mobile number verified",
		"data":    gin.H{"tokens": tokens, "user": user},
	})
}

// ResendOTP delivers a fresh code to an unverified mobile number
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req struct {
		MobileNumber string `json:"mobile_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, "mobile_number = ?", req.MobileNumber).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}

	if user.MobileVerified {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Mobile number already verified"})
		return
	}

	otpExpiry := time.Now().Add(utils.OTPValidity)
	if err := h.db.Model(&user).Update("otp_expires_at", otpExpiry).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to refresh code"})
		return
	}
	user.OTPExpiresAt = &otpExpiry

	h.deliverOTP(c, &user)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

// Login authenticates with email and password. Only verified, active
// accounts may log in.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, "email = ?", req.Email).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
		return
	}

	if user.Status != models.AccountStatusActive {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Account is not active"})
		return
	}

	if !user.MobileVerified {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Verify your mobile number first"})
		return
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("auth: failed to record login time for %s: %v", user.ID, err)
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data":    gin.H{"tokens": tokens, "user": user},
	})
}

// deliverOTP generates the current code and sends it. Delivery failure is
// logged, not surfaced: the user can always request a resend.
func (h *AuthHandler) deliverOTP(c *gin.Context, user *models.User) {
	code, err := utils.GenerateOTP(user.OTPSecret)
	if err != nil {
		log.Printf("auth: failed to generate OTP for %s: %v", user.ID, err)
		return
	}
	if err := h.sms.SendOTP(c.Request.Context(), user.MobileNumber, code); err != nil {
		log.Printf("auth: failed to deliver OTP to %s: %v", user.MobileNumber, err)
	}
}
