package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ClaimCleanupJobName is the name of the stale claim attempt cleanup job
const ClaimCleanupJobName = "claim-attempt-cleanup"

// AttemptPurger drops stale unverified claim attempts.
// It is satisfied by service.ClaimService.
type AttemptPurger interface {
	PurgeStaleAttempts(ctx context.Context) (int64, error)
}

// ClaimCleanupJob removes attempt logs nobody will come back to
type ClaimCleanupJob struct {
	purger  AttemptPurger
	logger  *zap.Logger
	timeout time.Duration
}

func NewClaimCleanupJob(purger AttemptPurger, logger *zap.Logger, timeout time.Duration) *ClaimCleanupJob {
	return &ClaimCleanupJob{
		purger:  purger,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one purge
func (j *ClaimCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	purged, err := j.purger.PurgeStaleAttempts(ctx)
	if err != nil {
		j.logger.Error("claim attempt cleanup failed", zap.Error(err))
		return
	}
	if purged > 0 {
		j.logger.Info("stale claim attempts purged", zap.Int64("purged", purged))
	}
}

// RegisterClaimCleanupJob registers the claim attempt cleanup job with the scheduler.
func RegisterClaimCleanupJob(scheduler *Scheduler, purger AttemptPurger, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewClaimCleanupJob(purger, logger, timeout)
	return scheduler.AddJob(ClaimCleanupJobName, cronExpr, job.Run)
}
