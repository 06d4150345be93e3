package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/nsefeed/pkg/logger"
)

// SymbolUpdater refreshes every index membership list
type SymbolUpdater interface {
	UpdateSymbolList(ctx context.Context) (map[string]int, error)
}

// SymbolRefreshJob re-downloads the symbol lists
type SymbolRefreshJob struct {
	updater  SymbolUpdater
	schedule string
	logger   *logger.Logger
}

// NewSymbolRefreshJob creates the job
func NewSymbolRefreshJob(updater SymbolUpdater, schedule string, log *logger.Logger) *SymbolRefreshJob {
	return &SymbolRefreshJob{
		updater:  updater,
		schedule: schedule,
		logger:   log.Component("symbol_refresh"),
	}
}

// Name returns the job name
func (j *SymbolRefreshJob) Name() string {
	return "symbol_refresh"
}

// Schedule returns the cron schedule
func (j *SymbolRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *SymbolRefreshJob) Run(ctx context.Context) error {
	counts, err := j.updater.UpdateSymbolList(ctx)
	if err != nil {
		return fmt.Errorf("update symbol list (%d lists refreshed): %w", len(counts), err)
	}

	j.logger.WithField("lists", len(counts)).Info("Symbol lists refreshed")
	return nil
}
