package database

import (
	"fmt"
	"time"

	"github.com/gradskill/backend/internal/config"
	"github.com/gradskill/backend/internal/database/migrations"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/queue"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate runs versioned migrations first, then auto-migrates all models to
// pick up column additions
func Migrate(db *gorm.DB) error {
	if err := migrations.Run(db); err != nil {
		return err
	}
	return AutoMigrate(db)
}

// AutoMigrate migrates every model schema. Also used by tests against sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Users and courses
		&models.User{},
		&models.Course{},
		&models.Enrollment{},

		// Referral graph and earnings ledger
		&models.ReferralLevel{},
		&models.EarningEntry{},

		// Payments
		&models.Payment{},
		&models.PaymentCourse{},

		// Withdrawals and KYC
		&models.Withdrawal{},
		&models.KYCDetail{},

		// Background jobs
		&queue.Job{},
	)
}
