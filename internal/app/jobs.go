/**
 * @description
 * Scheduled job implementations for the portal-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/store"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo store.Repository, logger *slog.Logger) *Jobs {
	return &Jobs{repo: repo, logger: logger}
}

// CaptureStatsSnapshot persists a point-in-time copy of the admin dashboard
// figures so reporting can trend client growth and savings over time.
func (j *Jobs) CaptureStatsSnapshot() {
	j.logger.Info("starting stats snapshot job")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	totalClients, err := j.repo.CountAccounts(ctx)
	if err != nil {
		j.logger.Error("failed to count clients", "error", err)
		return
	}
	totalSavings, err := j.repo.SumAccountBalances(ctx)
	if err != nil {
		j.logger.Error("failed to sum balances", "error", err)
		return
	}
	pending, err := j.repo.CountPendingTransactions(ctx)
	if err != nil {
		j.logger.Error("failed to count pending transactions", "error", err)
		return
	}

	snapshot := &domain.StatsSnapshot{
		TotalClients:        totalClients,
		TotalSavings:        totalSavings,
		PendingTransactions: pending,
	}
	if err := j.repo.InsertStatsSnapshot(ctx, snapshot); err != nil {
		j.logger.Error("failed to persist stats snapshot", "error", err)
		return
	}

	j.logger.Info("stats snapshot job finished",
		"total_clients", totalClients,
		"total_savings", totalSavings,
		"pending_transactions", pending,
	)
}
