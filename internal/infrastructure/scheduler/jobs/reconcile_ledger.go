// Package jobs contains the scheduled maintenance jobs of the progress
// engine.
package jobs

import (
	"context"
	"fmt"

	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/pkg/logger"
)

// ReconcileLedgerJob rewrites drifted profile totals from the XP ledger.
// The ledger is the source of truth; the profile is a cache that can lag
// when an award partially fails after the completion latch has fired. This
// job settles those cases.
type ReconcileLedgerJob struct {
	rewardRepo reward.Repository
	levels     *reward.LevelTable
	log        *logger.Logger
}

// NewReconcileLedgerJob creates the job.
func NewReconcileLedgerJob(rewardRepo reward.Repository, levels *reward.LevelTable, log *logger.Logger) *ReconcileLedgerJob {
	return &ReconcileLedgerJob{
		rewardRepo: rewardRepo,
		levels:     levels,
		log:        log.With(logger.Component("jobs.reconcile_ledger")),
	}
}

// Name returns the unique name of the job.
func (j *ReconcileLedgerJob) Name() string {
	return "reconcile-ledger"
}

// Description returns a human-readable description of the job.
func (j *ReconcileLedgerJob) Description() string {
	return "Rebuilds profile XP totals and levels from the transaction ledger"
}

// Run executes one reconciliation pass.
func (j *ReconcileLedgerJob) Run(ctx context.Context) error {
	repaired, err := j.rewardRepo.Reconcile(ctx, j.levels)
	if err != nil {
		return fmt.Errorf("reconcile ledger: %w", err)
	}

	if repaired > 0 {
		j.log.Warn("profile totals repaired from ledger", logger.Int("profiles", repaired))
	} else {
		j.log.Info("ledger and profiles consistent")
	}
	return nil
}
