// Package calendar keeps the persisted list of exchange trading days and answers
// "what is the latest trading day" without touching the network when it can.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/logger"
)

const (
	day = 24 * time.Hour

	// refreshOverlap re-reads a few days before the last known one
	refreshOverlap = 7 * day
	// bootstrapLookback seeds an empty calendar
	bootstrapLookback = 100 * day
)

// DateSource returns the dates on which symbol traded within [from, to]
type DateSource func(ctx context.Context, symbol string, from, to time.Time) ([]time.Time, error)

type dayRow struct {
	Date string `csv:"date"`
}

var daysFile = cache.RowFile[dayRow]{
	Name: "trading_days.csv",
	Key:  func(r dayRow) string { return r.Date },
	Less: func(a, b dayRow) bool { return a.Date < b.Date },
}

// Options configures a Tracker
type Options struct {
	Location        *time.Location
	Cutoff          time.Duration // time of day until which yesterday still counts as current
	ReferenceSymbol string
	Now             func() time.Time
}

// Tracker maintains trading_days.csv
type Tracker struct {
	store  *cache.Store
	source DateSource
	opts   Options
	logger *logger.Logger

	mu sync.Mutex
}

// New creates a tracker; source is consulted only when the persisted list is stale
func New(store *cache.Store, source DateSource, opts Options, log *logger.Logger) *Tracker {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		store:  store,
		source: source,
		opts:   opts,
		logger: log.Component("calendar"),
	}
}

// Now is the current time in the exchange timezone
func (t *Tracker) Now() time.Time {
	return t.opts.Now().In(t.opts.Location)
}

// Today is the current exchange date as a civil (UTC midnight) date
func (t *Tracker) Today() time.Time {
	return Civil(t.Now())
}

// Civil drops the clock and zone of t, keeping its calendar date
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SinceMidnight is the clock time of t as an offset from midnight
func SinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// Days returns the persisted trading days, ascending
func (t *Tracker) Days() ([]time.Time, error) {
	rows, err := daysFile.Read(t.store)
	if err != nil {
		return nil, err
	}
	return toDates(rows)
}

// LatestTradingDay returns the last known trading day, refreshing the list first
// unless it ends today, or ends yesterday and the cutoff has not passed yet.
func (t *Tracker) LatestTradingDay(ctx context.Context) (time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	days, err := t.Days()
	if err != nil {
		return time.Time{}, err
	}

	now := t.Now()
	today := Civil(now)

	from := today.Add(-bootstrapLookback - refreshOverlap)
	if len(days) > 0 {
		last := days[len(days)-1]
		if last.Equal(today) || (last.Equal(today.Add(-day)) && SinceMidnight(now) <= t.opts.Cutoff) {
			return last, nil
		}
		from = last.Add(-refreshOverlap)
	}

	t.logger.WithFields(map[string]interface{}{
		"from":   from.Format("2006-01-02"),
		"to":     today.Format("2006-01-02"),
		"symbol": t.opts.ReferenceSymbol,
	}).Info("refreshing trading calendar")

	fetched, err := t.source(ctx, t.opts.ReferenceSymbol, from, today)
	if err != nil {
		return time.Time{}, fmt.Errorf("refresh trading calendar: %w", err)
	}

	rows := make([]dayRow, len(fetched))
	for i, d := range fetched {
		rows[i] = dayRow{Date: Civil(d).Format("2006-01-02")}
	}

	merged, err := daysFile.Append(t.store, rows...)
	if err != nil {
		return time.Time{}, err
	}
	if len(merged) == 0 {
		return time.Time{}, fmt.Errorf("%w: no trading days between %s and %s", apperrors.ErrNotFound, from.Format("2006-01-02"), today.Format("2006-01-02"))
	}

	all, err := toDates(merged)
	if err != nil {
		return time.Time{}, err
	}
	return all[len(all)-1], nil
}

func toDates(rows []dayRow) ([]time.Time, error) {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("trading_days.csv row %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}
