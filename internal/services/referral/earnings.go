package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"gorm.io/gorm"
)

const (
	leaderboardCacheKey = "referral:leaderboard"
	leaderboardCacheTTL = time.Minute
	leaderboardSize     = 10
)

// EarningsSummary is the rolled-up earnings view for a user
type EarningsSummary struct {
	Today          float64 `json:"today"`
	Last7Days      float64 `json:"last7Days"`
	Last30Days     float64 `json:"last30Days"`
	TotalEarned    float64 `json:"totalEarned"`
	CurrentBalance float64 `json:"currentBalance"`
}

// LeaderboardEntry is one row of the referral leaderboard
type LeaderboardEntry struct {
	UserID             uuid.UUID `json:"user_id"`
	Name               string    `json:"name"`
	ReferralCode       string    `json:"referral_code"`
	TotalEarned        float64   `json:"total_earned"`
	Level1Count        int64     `json:"level1_count"`
	TotalReferralCount int64     `json:"total_referral_count"`
	RegisteredAt       time.Time `json:"registered_at"`
}

// EarningsService reads the earnings ledger and leaderboard. The leaderboard
// is cached in Redis because it joins and sorts the whole user base.
type EarningsService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewEarningsService creates a new earnings service. The redis client may be
// nil, in which case leaderboard queries always hit the database.
func NewEarningsService(db *gorm.DB, rdb *redis.Client) *EarningsService {
	return &EarningsService{db: db, redis: rdb}
}

// Summary rolls up a user's ledger into today / 7 day / 30 day windows
func (s *EarningsService) Summary(userID uuid.UUID) (*EarningsSummary, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var entries []models.EarningEntry
	now := time.Now()
	monthAgo := now.Add(-30 * 24 * time.Hour)
	if err := s.db.Where("user_id = ? AND purchased_at >= ?", userID, monthAgo).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load earning entries: %w", err)
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	summary := &EarningsSummary{
		TotalEarned:    user.Wallet.TotalEarned,
		CurrentBalance: user.Wallet.Balance,
	}
	for _, entry := range entries {
		if !entry.PurchasedAt.Before(todayStart) {
			summary.Today += entry.Amount
		}
		if !entry.PurchasedAt.Before(weekAgo) {
			summary.Last7Days += entry.Amount
		}
		summary.Last30Days += entry.Amount
	}

	return summary, nil
}

// History returns a user's full earnings ledger, newest first, with the
// referred buyer preloaded
func (s *EarningsService) History(userID uuid.UUID) ([]models.EarningEntry, error) {
	var entries []models.EarningEntry
	err := s.db.
		Preload("PurchasedBy").
		Where("user_id = ?", userID).
		Order("purchased_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load earning history: %w", err)
	}
	return entries, nil
}

// Leaderboard returns the top referrers ordered by total earnings, then
// direct referral count, then seniority
func (s *EarningsService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, leaderboardCacheKey).Bytes()
		if err == nil {
			var entries []LeaderboardEntry
			if jsonErr := json.Unmarshal(cached, &entries); jsonErr == nil {
				return entries, nil
			}
		} else if err != redis.Nil {
			log.Printf("leaderboard: redis read failed: %v", err)
		}
	}

	var entries []LeaderboardEntry
	err := s.db.Raw(`
		SELECT u.id AS user_id,
		       u.name,
		       u.referral_code,
		       u.wallet_total_earned AS total_earned,
		       COUNT(CASE WHEN rl.level = 1 THEN 1 END) AS level1_count,
		       COUNT(rl.id) AS total_referral_count,
		       u.created_at AS registered_at
		FROM users u
		LEFT JOIN referral_levels rl ON rl.ancestor_id = u.id
		WHERE u.deleted_at IS NULL
		GROUP BY u.id, u.name, u.referral_code, u.wallet_total_earned, u.created_at
		ORDER BY u.wallet_total_earned DESC, level1_count DESC, u.created_at ASC
		LIMIT ?`, leaderboardSize).Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	if s.redis != nil {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.redis.Set(ctx, leaderboardCacheKey, payload, leaderboardCacheTTL).Err(); err != nil {
				log.Printf("leaderboard: redis write failed: %v", err)
			}
		}
	}

	return entries, nil
}
