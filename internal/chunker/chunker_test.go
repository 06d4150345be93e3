package chunker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/logger"
)

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		maxSpan int
		want    int
	}{
		{"single day", "2020-06-17", "2020-06-17", 480, 1},
		{"exactly one window", "2019-01-01", "2020-04-25", 480, 1},
		{"one day over", "2019-01-01", "2020-04-26", 480, 2},
		{"index short window", "2020-01-01", "2020-06-30", 100, 2},
		{"long equity range", "2015-01-01", "2020-06-17", 480, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := date(tt.from), date(tt.to)
			windows, err := Split(from, to, tt.maxSpan)
			require.NoError(t, err)
			assert.Len(t, windows, tt.want)

			// contiguous, non-overlapping, covering [from, to]
			assert.Equal(t, from, windows[0].From)
			assert.Equal(t, to, windows[len(windows)-1].To)
			total := 0
			for i, w := range windows {
				assert.LessOrEqual(t, w.Days(), tt.maxSpan+1)
				total += w.Days()
				if i > 0 {
					assert.Equal(t, windows[i-1].To.Add(24*time.Hour), w.From)
				}
			}
			assert.Equal(t, int(to.Sub(from).Hours()/24)+1, total)
		})
	}
}

func TestSplitInvalidRange(t *testing.T) {
	_, err := Split(date("2020-06-17"), date("2020-06-01"), 480)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidDateRange))
}

func page(t *testing.T, dates ...string) *table.Table {
	ds := make([]time.Time, len(dates))
	closes := make([]float64, len(dates))
	for i, d := range dates {
		ds[i] = date(d)
		closes[i] = float64(i)
	}
	tbl, err := table.New(table.DateColumn("Date", ds), table.NumberColumn("Close", closes))
	require.NoError(t, err)
	return tbl
}

func TestFetchStitchesPages(t *testing.T) {
	c := New(0, logger.NewNop())

	var windows []Window
	fetch := func(ctx context.Context, w Window) (*table.Table, error) {
		windows = append(windows, w)
		if len(windows) == 1 {
			return page(t, "2020-01-03", "2020-01-02", "2020-01-01"), nil
		}
		// overlapping boundary row appears twice
		return page(t, "2020-01-05", "2020-01-04", "2020-01-03"), nil
	}

	got, err := c.Fetch(context.Background(), Request{
		From:        date("2020-01-01"),
		To:          date("2020-01-05"),
		MaxSpan:     2,
		DateColumn:  "Date",
		NewestFirst: true,
	}, fetch)
	require.NoError(t, err)

	assert.Len(t, windows, 2)
	col, _ := got.Col("Date")
	assert.Equal(t, []time.Time{
		date("2020-01-01"), date("2020-01-02"), date("2020-01-03"), date("2020-01-04"), date("2020-01-05"),
	}, col.Dates)
}

func TestFetchAbortsOnFailedWindow(t *testing.T) {
	c := New(0, logger.NewNop())

	calls := 0
	boom := errors.New("upstream down")
	fetch := func(ctx context.Context, w Window) (*table.Table, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return page(t, w.From.Format("2006-01-02")), nil
	}

	got, err := c.Fetch(context.Background(), Request{
		From: date("2020-01-01"), To: date("2020-01-10"), MaxSpan: 2, DateColumn: "Date",
	}, fetch)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "no window after the failing one is requested")
}

func TestFetchPaces(t *testing.T) {
	c := New(20*time.Millisecond, logger.NewNop())

	var stamps []time.Time
	fetch := func(ctx context.Context, w Window) (*table.Table, error) {
		stamps = append(stamps, time.Now())
		return page(t, w.From.Format("2006-01-02")), nil
	}

	_, err := c.Fetch(context.Background(), Request{
		From: date("2020-01-01"), To: date("2020-01-09"), MaxSpan: 2, DateColumn: "Date",
	}, fetch)
	require.NoError(t, err)
	require.Len(t, stamps, 3)

	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 15*time.Millisecond)
	}
}

func TestFetchSkipsEmptyWindows(t *testing.T) {
	c := New(0, logger.NewNop())

	calls := 0
	fetch := func(ctx context.Context, w Window) (*table.Table, error) {
		calls++
		if calls == 2 {
			// header-only page: no typed values
			return table.New(table.StringColumn("Date", []string{}))
		}
		return page(t, w.From.Format("2006-01-02")), nil
	}

	got, err := c.Fetch(context.Background(), Request{
		From: date("2020-01-01"), To: date("2020-01-09"), MaxSpan: 2, DateColumn: "Date",
	}, fetch)
	require.NoError(t, err)

	col, _ := got.Col("Date")
	assert.Equal(t, []time.Time{date("2020-01-01"), date("2020-01-07")}, col.Dates)
}
