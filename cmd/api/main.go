package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/gradskill/backend/internal/config"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/handlers"
	"github.com/gradskill/backend/internal/jobs"
	"github.com/gradskill/backend/internal/middleware"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/routes"
	"github.com/gradskill/backend/internal/services/kyc"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/payment/cashfree"
	"github.com/gradskill/backend/internal/services/referral"
	"github.com/gradskill/backend/internal/services/sms"
	"github.com/gradskill/backend/internal/services/storage"
	"github.com/gradskill/backend/internal/services/wallet"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var store storage.ObjectStore
	if cfg.Cloudinary.URL != "" {
		store, err = storage.NewCloudinaryStore(cfg.Cloudinary.URL)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
	}

	var smsSender sms.Sender = sms.LogSender{}
	if cfg.SMS.APIKey != "" {
		smsSender = sms.NewClient(cfg.SMS)
	}

	gateway := cashfree.NewClient(cfg.Cashfree)
	jobQueue := queue.NewQueue(db)

	graph := referral.NewService(db)
	rewardEngine := referral.NewRewardEngine(db, graph)
	earnings := referral.NewEarningsService(db, rdb)
	reconciler := payment.NewReconciler(db, gateway, jobQueue, cfg.FrontendURL, cfg.BackendURL)
	walletSvc := wallet.NewService(db)
	kycSvc := kyc.NewService(db, store)

	jobs.RegisterAllJobHandlers(jobQueue, rewardEngine)
	scheduler, err := jobs.ScheduleRecurringJobs(jobQueue, reconciler)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	rateLimiter := middleware.NewRateLimiter(20, 40)
	defer rateLimiter.Stop()

	routes.Register(router, routes.Handlers{
		Auth:     handlers.NewAuthHandler(db, graph, smsSender),
		Payment:  handlers.NewPaymentHandler(db, reconciler, gateway),
		Referral: handlers.NewReferralHandler(graph, earnings),
		Wallet:   handlers.NewWalletHandler(walletSvc),
		KYC:      handlers.NewKYCHandler(kycSvc, store),
		Course:   handlers.NewCourseHandler(db),
	}, rateLimiter)

	log.Printf("GradSkill API server running on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
