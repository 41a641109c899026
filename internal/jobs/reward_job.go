package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/referral"
)

// RewardJob runs referral reward distribution for settled orders
type RewardJob struct {
	engine *referral.RewardEngine
}

// NewRewardJob creates a new reward job handler
func NewRewardJob(engine *referral.RewardEngine) *RewardJob {
	return &RewardJob{engine: engine}
}

// RegisterRewardJobHandler registers the reward distribution handler
func RegisterRewardJobHandler(q queue.QueueInterface, engine *referral.RewardEngine) {
	handler := NewRewardJob(engine)
	q.RegisterHandler(payment.RewardJobType, handler.Process)
}

// Process distributes rewards for the payment named in the job payload.
// Distribution is idempotent, so queue retries after partial failure are safe.
func (j *RewardJob) Process(_ context.Context, job *queue.Job) error {
	var payload payment.RewardJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal reward job payload: %w", err)
	}

	return j.engine.DistributeForPayment(payload.PaymentID)
}
