package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/database"
	"github.com/gradskill/backend/internal/models"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/referral"
	"github.com/gradskill/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, referredBy *uuid.UUID) *models.User {
	t.Helper()
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")
	user := &models.User{
		Name:         "user",
		Email:        "user-" + unique[:8] + "@example.com",
		MobileNumber: "+91" + unique[:10],
		PasswordHash: "x",
		ReferralCode: "GS" + strings.ToUpper(unique[:6]),
		ReferredByID: referredBy,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// End to end through the queue: a settled first purchase enqueued as a reward
// job credits the upline when the pump runs.
func TestRewardJobThroughQueue(t *testing.T) {
	db := setupTestDB(t)

	q := queue.NewQueue(db)
	graph := referral.NewService(db)
	engine := referral.NewRewardEngine(db, graph)
	RegisterAllJobHandlers(q, engine)

	referrer := createUser(t, db, nil)
	buyer := createUser(t, db, &referrer.ID)

	settled := &models.Payment{
		OrderID:              utils.GenerateOrderID(),
		UserID:               buyer.ID,
		PackageType:          models.PackageTypeCareerBooster,
		Amount:               9999,
		Currency:             "INR",
		Status:               models.PaymentStatusSuccess,
		FirstPackagePurchase: true,
	}
	require.NoError(t, db.Create(settled).Error)

	_, err := q.Enqueue(payment.RewardJobType, payment.RewardJobPayload{PaymentID: settled.ID})
	require.NoError(t, err)

	require.NoError(t, q.ProcessPending(context.Background(), 10))

	var credited models.User
	require.NoError(t, db.First(&credited, "id = ?", referrer.ID).Error)
	assert.Equal(t, 1250.0, credited.Wallet.Balance)

	var job queue.Job
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, queue.JobStatusCompleted, job.Status)
}

func TestRewardJobBadPayloadFails(t *testing.T) {
	db := setupTestDB(t)

	q := queue.NewQueue(db)
	engine := referral.NewRewardEngine(db, referral.NewService(db))
	RegisterAllJobHandlers(q, engine)

	job := &RewardJob{engine: engine}
	err := job.Process(context.Background(), &queue.Job{Payload: []byte(`{notjson`)})
	assert.Error(t, err)
}
