package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreateReferralTables creates the downline index and the earnings ledger.
// The unique indexes back the idempotency guarantees of the reward engine.
func CreateReferralTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_referral_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS referral_levels (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					ancestor_id UUID NOT NULL REFERENCES users(id),
					level INT NOT NULL,
					descendant_id UUID NOT NULL REFERENCES users(id),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_levels_edge
					ON referral_levels(ancestor_id, level, descendant_id);
				CREATE INDEX IF NOT EXISTS idx_referral_levels_descendant_id
					ON referral_levels(descendant_id);
			`).Error; err != nil {
				return err
			}

			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS earning_entries (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					user_id UUID NOT NULL REFERENCES users(id),
					amount DECIMAL(20,2) NOT NULL,
					package_type VARCHAR(20) NOT NULL,
					purchased_by_id UUID NOT NULL REFERENCES users(id),
					level INT NOT NULL,
					payment_id UUID NOT NULL,
					purchased_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_earning_entries_reward_key
					ON earning_entries(purchased_by_id, level, package_type, payment_id);
				CREATE INDEX IF NOT EXISTS idx_earning_entries_user_id
					ON earning_entries(user_id);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS earning_entries; DROP TABLE IF EXISTS referral_levels;`).Error
		},
	}
}
