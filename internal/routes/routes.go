package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradskill/backend/internal/handlers"
	"github.com/gradskill/backend/internal/middleware"
)

// Handlers bundles every handler the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Payment  *handlers.PaymentHandler
	Referral *handlers.ReferralHandler
	Wallet   *handlers.WalletHandler
	KYC      *handlers.KYCHandler
	Course   *handlers.CourseHandler
}

// Register mounts all API routes on the router
func Register(router *gin.Engine, h Handlers, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(rateLimiter.IPRateLimiterMiddleware())

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/verify-otp", h.Auth.VerifyOTP)
		authGroup.POST("/resend-otp", h.Auth.ResendOTP)
		authGroup.POST("/login", h.Auth.Login)
	}

	// The webhook authenticates with its signature, not a JWT
	api.POST("/payments/webhook", h.Payment.Webhook)

	api.GET("/referral/validate/:code", h.Referral.ValidateCode)
	api.GET("/referral/leaderboard", h.Referral.Leaderboard)
	api.GET("/courses", h.Course.List)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware())
	{
		authed.POST("/payments/create-order", h.Payment.CreateOrder)
		authed.POST("/payments/verify", h.Payment.VerifyOrder)
		authed.GET("/payments/history", h.Payment.History)

		authed.GET("/referral/tree", h.Referral.Tree)
		authed.GET("/referral/earnings", h.Referral.EarningsSummary)
		authed.GET("/referral/earnings/history", h.Referral.EarningsHistory)

		authed.GET("/wallet", h.Wallet.Details)
		authed.POST("/wallet/withdraw", h.Wallet.RequestWithdrawal)
		authed.GET("/wallet/withdrawals", h.Wallet.History)

		authed.POST("/kyc/documents", h.KYC.UploadDocument)
		authed.POST("/kyc/submit", h.KYC.Submit)
		authed.GET("/kyc/status", h.KYC.Status)

		authed.GET("/courses/my", h.Course.MyCourses)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/withdrawals", h.Wallet.ListWithdrawals)
		admin.PUT("/withdrawals/:id", h.Wallet.DecideWithdrawal)

		admin.GET("/kyc/pending", h.KYC.ListPending)
		admin.PUT("/kyc/:userId/approve", h.KYC.Approve)
		admin.PUT("/kyc/:userId/reject", h.KYC.Reject)
		admin.DELETE("/kyc/:userId", h.KYC.Reset)

		admin.POST("/payments/refund", h.Payment.Refund)
	}
}
