package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gradskill/backend/internal/queue"
	"github.com/gradskill/backend/internal/services/payment"
	"github.com/gradskill/backend/internal/services/referral"
)

const (
	queuePumpInterval  = 5 * time.Second
	queuePumpBatchSize = 10

	pendingSweepInterval = 10 * time.Minute
	pendingSweepMaxAge   = 30 * time.Minute
)

// RegisterAllJobHandlers registers every queue job handler
func RegisterAllJobHandlers(q queue.QueueInterface, engine *referral.RewardEngine) {
	RegisterRewardJobHandler(q, engine)
}

// ScheduleRecurringJobs starts the scheduler that pumps the job queue and
// sweeps stale pending orders. The returned scheduler is already running.
func ScheduleRecurringJobs(q queue.QueueInterface, reconciler *payment.Reconciler) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(queuePumpInterval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := q.ProcessPending(ctx, queuePumpBatchSize); err != nil {
			log.Printf("jobs: queue pump failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = scheduler.Every(pendingSweepInterval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := reconciler.SweepPending(ctx, pendingSweepMaxAge); err != nil {
			log.Printf("jobs: pending order sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	return scheduler, nil
}
