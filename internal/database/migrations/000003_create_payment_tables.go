package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreatePaymentTables creates payments, withdrawals, KYC and job tables
func CreatePaymentTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_payment_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS payments (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					order_id VARCHAR(100) NOT NULL UNIQUE,
					user_id UUID NOT NULL REFERENCES users(id),
					package_type VARCHAR(20) NOT NULL,
					amount DECIMAL(20,2) NOT NULL,
					currency VARCHAR(3) NOT NULL DEFAULT 'INR',
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					transaction_id VARCHAR(100),
					payment_method JSONB,
					first_package_purchase BOOLEAN DEFAULT FALSE,
					response_data JSONB,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
				CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

				CREATE TABLE IF NOT EXISTS payment_courses (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					payment_id UUID NOT NULL REFERENCES payments(id),
					course_id UUID NOT NULL,
					course_title VARCHAR(255),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE TABLE IF NOT EXISTS enrollments (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					user_id UUID NOT NULL REFERENCES users(id),
					course_id UUID NOT NULL REFERENCES courses(id),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE,
					UNIQUE(user_id, course_id)
				);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS withdrawals (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					user_id UUID NOT NULL REFERENCES users(id),
					amount DECIMAL(20,2) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'In Progress',
					admin_remarks TEXT,
					requested_at TIMESTAMP WITH TIME ZONE,
					processed_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_withdrawals_user_id ON withdrawals(user_id);

				CREATE TABLE IF NOT EXISTS kyc_details (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					user_id UUID NOT NULL UNIQUE REFERENCES users(id),
					whats_app_number VARCHAR(20),
					document_type VARCHAR(50),
					document_number VARCHAR(100),
					address_proof_url TEXT,
					address_proof_storage_id VARCHAR(255),
					pan_number VARCHAR(20),
					pan_card_url TEXT,
					pan_card_storage_id VARCHAR(255),
					bank_name VARCHAR(100),
					account_holder_name VARCHAR(255),
					account_number VARCHAR(50),
					ifsc_code VARCHAR(20),
					upi_id VARCHAR(100),
					bank_document_type VARCHAR(50),
					bank_document_url TEXT,
					bank_document_storage_id VARCHAR(255),
					submission_date TIMESTAMP WITH TIME ZONE,
					approval_date TIMESTAMP WITH TIME ZONE,
					rejection_reason TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE TABLE IF NOT EXISTS jobs (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					type VARCHAR(100) NOT NULL,
					payload JSONB,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					retry_count INT DEFAULT 0,
					max_retries INT DEFAULT 3,
					next_retry TIMESTAMP WITH TIME ZONE,
					error TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TABLE IF EXISTS jobs;
				DROP TABLE IF EXISTS kyc_details;
				DROP TABLE IF EXISTS withdrawals;
				DROP TABLE IF EXISTS enrollments;
				DROP TABLE IF EXISTS payment_courses;
				DROP TABLE IF EXISTS payments;
			`).Error
		},
	}
}
