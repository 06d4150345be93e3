package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/logger"
)

// EODSource is the part of the NSE client the end-of-day snapshot needs
type EODSource interface {
	LatestTradingDay(ctx context.Context) (time.Time, error)
	Bhavcopy(ctx context.Context, date time.Time, series string) (*table.Table, error)
	BhavcopyFnO(ctx context.Context, date time.Time) (*table.Table, error)
	DailyDelivery(ctx context.Context, date time.Time) (*table.Table, error)
	FiiDii(ctx context.Context) (*nse.FlowRecord, error)
}

// Exporter receives every table the snapshot downloads
type Exporter interface {
	WriteTable(ctx context.Context, name, snapshot string, t *table.Table) (int64, error)
}

// EODSnapshotJob downloads the end-of-day archives of the latest trading day
// ⭐ SSOT: the end-of-day download schedule lives only in this job
type EODSnapshotJob struct {
	source   EODSource
	exporter Exporter // optional
	schedule string
	logger   *logger.Logger
}

// NewEODSnapshotJob creates the job; exporter may be nil
func NewEODSnapshotJob(source EODSource, exporter Exporter, schedule string, log *logger.Logger) *EODSnapshotJob {
	return &EODSnapshotJob{
		source:   source,
		exporter: exporter,
		schedule: schedule,
		logger:   log.Component("eod_snapshot"),
	}
}

// Name returns the job name
func (j *EODSnapshotJob) Name() string {
	return "eod_snapshot"
}

// Schedule returns the cron schedule
func (j *EODSnapshotJob) Schedule() string {
	return j.schedule
}

// Run refreshes the calendar, then downloads (or reads) each archive of the
// latest trading day. Archives already on disk cost nothing, so retries are cheap.
func (j *EODSnapshotJob) Run(ctx context.Context) error {
	day, err := j.source.LatestTradingDay(ctx)
	if err != nil {
		return fmt.Errorf("latest trading day: %w", err)
	}
	snapshot := cache.Date(day)
	j.logger.WithField("date", snapshot).Info("Starting end-of-day snapshot")

	steps := []struct {
		name  string
		fetch func(ctx context.Context) (*table.Table, error)
	}{
		{"bhavcopy_eq", func(ctx context.Context) (*table.Table, error) { return j.source.Bhavcopy(ctx, day, "ALL") }},
		{"bhavcopy_fno", func(ctx context.Context) (*table.Table, error) { return j.source.BhavcopyFnO(ctx, day) }},
		{"daily_delivery", func(ctx context.Context) (*table.Table, error) { return j.source.DailyDelivery(ctx, day) }},
		{"fii_dii", func(ctx context.Context) (*table.Table, error) {
			rec, err := j.source.FiiDii(ctx)
			if err != nil {
				return nil, err
			}
			return nse.FlowTable([]nse.FlowRecord{*rec})
		}},
	}

	for _, step := range steps {
		t, err := step.fetch(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}

		fields := map[string]interface{}{"step": step.name, "rows": t.Len()}
		if j.exporter != nil {
			n, err := j.exporter.WriteTable(ctx, step.name, snapshot, t)
			if err != nil {
				return fmt.Errorf("export %s: %w", step.name, err)
			}
			fields["exported"] = n
		}
		j.logger.WithFields(fields).Info("Snapshot step completed")
	}

	j.logger.WithField("date", snapshot).Info("End-of-day snapshot completed")
	return nil
}
