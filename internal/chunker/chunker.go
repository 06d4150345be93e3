// Package chunker splits a date range into request-sized windows, fetches them
// one after another at a steady pace and stitches the pages together.
package chunker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/logger"
)

const day = 24 * time.Hour

// Window is an inclusive [From, To] range of civil dates
type Window struct {
	From time.Time
	To   time.Time
}

// Days is the inclusive number of calendar days in the window
func (w Window) Days() int {
	return int(w.To.Sub(w.From)/day) + 1
}

// Split cuts [from, to] into contiguous windows whose To-From gap is at most maxSpan days.
// The cursor moves maxSpan+1 days per window, the final window ends at to.
func Split(from, to time.Time, maxSpan int) ([]Window, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s after %s", apperrors.ErrInvalidDateRange, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	if maxSpan < 1 {
		return nil, fmt.Errorf("%w: window of %d days", apperrors.ErrInvalidArgument, maxSpan)
	}

	span := time.Duration(maxSpan) * day
	var windows []Window
	cursor := from
	for to.Sub(cursor) > span {
		windows = append(windows, Window{From: cursor, To: cursor.Add(span)})
		cursor = cursor.Add(span + day)
	}
	windows = append(windows, Window{From: cursor, To: to})
	return windows, nil
}

// FetchFunc fetches one window
type FetchFunc func(ctx context.Context, w Window) (*table.Table, error)

// Chunker runs paced sequential window fetches
type Chunker struct {
	limiter *rate.Limiter
	logger  *logger.Logger
}

// New creates a chunker that waits pause between physical fetches.
// A zero pause disables pacing.
func New(pause time.Duration, log *logger.Logger) *Chunker {
	limit := rate.Inf
	if pause > 0 {
		limit = rate.Every(pause)
	}
	return &Chunker{
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.Component("chunker"),
	}
}

// Request describes one ranged fetch
type Request struct {
	From        time.Time
	To          time.Time
	MaxSpan     int
	DateColumn  string
	NewestFirst bool // pages arrive newest-first and are reversed before stitching
}

// Fetch fetches every window in order and returns one table sorted ascending by
// DateColumn with duplicate dates removed. Any failing window fails the whole range.
func (c *Chunker) Fetch(ctx context.Context, req Request, fetch FetchFunc) (*table.Table, error) {
	windows, err := Split(req.From, req.To, req.MaxSpan)
	if err != nil {
		return nil, err
	}

	pages := make([]*table.Table, 0, len(windows))
	var empty *table.Table
	for i, w := range windows {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.logger.WithFields(map[string]interface{}{
			"window": fmt.Sprintf("%d/%d", i+1, len(windows)),
			"from":   w.From.Format("2006-01-02"),
			"to":     w.To.Format("2006-01-02"),
		}).Debug("fetching window")

		page, err := fetch(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("window %s..%s: %w", w.From.Format("2006-01-02"), w.To.Format("2006-01-02"), err)
		}
		// a window without rows (holidays only) may not carry typed columns
		if page.Len() == 0 {
			if empty == nil {
				empty = page
			}
			continue
		}
		if req.NewestFirst {
			page = page.Reverse()
		}
		pages = append(pages, page)
	}

	if len(pages) == 0 {
		if empty == nil {
			return &table.Table{}, nil
		}
		return empty, nil
	}

	merged, err := table.Concat(pages...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
	}
	if merged.Len() == 0 {
		return merged, nil
	}

	sorted, err := merged.SortBy(req.DateColumn, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaMismatch, err)
	}
	return sorted.DedupeBy(req.DateColumn)
}
