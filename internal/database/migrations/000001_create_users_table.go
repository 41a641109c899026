package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreateUsersTable creates the users and courses tables
func CreateUsersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_users_table",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					mobile_number VARCHAR(20) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					referral_code VARCHAR(20) NOT NULL UNIQUE,
					referred_by_id UUID REFERENCES users(id),
					wallet_balance DECIMAL(20,2) NOT NULL DEFAULT 0,
					wallet_total_earned DECIMAL(20,2) NOT NULL DEFAULT 0,
					wallet_total_withdrawn DECIMAL(20,2) NOT NULL DEFAULT 0,
					package_type VARCHAR(20) NOT NULL DEFAULT 'No Course',
					kyc_status VARCHAR(20) NOT NULL DEFAULT 'not_submitted',
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					mobile_verified BOOLEAN DEFAULT FALSE,
					otp_secret VARCHAR(64),
					otp_expires_at TIMESTAMP WITH TIME ZONE,
					is_admin BOOLEAN DEFAULT FALSE,
					last_login_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_users_referral_code ON users(referral_code);
				CREATE INDEX IF NOT EXISTS idx_users_referred_by_id ON users(referred_by_id);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS courses (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					title VARCHAR(255) NOT NULL,
					category VARCHAR(100),
					plan VARCHAR(50),
					price DECIMAL(20,2) DEFAULT 0,
					slug VARCHAR(255) UNIQUE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS courses; DROP TABLE IF EXISTS users;`).Error
		},
	}
}
