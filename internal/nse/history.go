package nse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/chunker"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

const defaultHistoryDays = 30

var (
	equityHistoryColumns = map[string]string{
		"OPEN":   "Open",
		"HIGH":   "High",
		"LOW":    "Low",
		"close":  "Close",
		"VOLUME": "Volume",
	}
	indexHistoryColumns = []string{"Date", "Open", "High", "Low", "Close", "SharesTraded", "Turnover(Cr)"}
)

// History returns daily history of an equity or an index between from and to
// inclusive, indexed by Date. Zero dates default to the last 30 days. Windows
// that end before today are cached; the window touching today is always fetched.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) (*table.Table, error) {
	encoded, err := universe.Validate(symbol, c.symbols.EquitySymbols())
	if err != nil {
		return nil, err
	}
	return c.history(ctx, strings.ToUpper(symbol), encoded, from, to)
}

func (c *Client) history(ctx context.Context, symbol, encoded string, from, to time.Time) (*table.Table, error) {
	today := c.today()
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = today.Add(-defaultHistoryDays * day)
	}
	from, to = calendar.Civil(from), calendar.Civil(to)

	resource := ResourceHistoryEquity
	parse := parseEquityHistory
	if strings.Contains(encoded, "NIFTY") {
		resource = ResourceHistoryIndex
		parse = parseIndexHistory
	}
	spec, _ := resource.Spec()

	fetchWindow := func(ctx context.Context, w chunker.Window) (*table.Table, error) {
		produce := func(ctx context.Context) (*table.Table, error) {
			body, err := c.fetch(ctx, resource, map[string]string{
				"symbol": encoded,
				"from":   w.From.Format("02-01-2006"),
				"to":     w.To.Format("02-01-2006"),
			})
			if err != nil {
				return nil, err
			}
			return parse(body)
		}
		if w.To.Before(today) {
			return c.cachedTable(ctx, cache.HistoryKey(symbol, w.From, w.To), produce)
		}
		return produce(ctx)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"from":   cache.Date(from),
		"to":     cache.Date(to),
	}).Debug("loading history")

	return c.chunker.Fetch(ctx, chunker.Request{
		From:        from,
		To:          to,
		MaxSpan:     spec.MaxSpan,
		DateColumn:  "Date",
		NewestFirst: resource == ResourceHistoryEquity,
	}, fetchWindow)
}

func parseEquityHistory(body []byte) (*table.Table, error) {
	raw, err := parser.ParseCSV(body, parser.CSVOptions{
		Rename: equityHistoryColumns,
		Dates:  map[string]string{"Date": parser.LayoutDay},
	})
	if err != nil {
		return nil, err
	}
	if raw.Len() == 0 {
		return raw, nil
	}

	tbl, err := raw.Select("Date", "Open", "High", "Low", "Close", "Volume")
	if err != nil {
		return nil, fmt.Errorf("%w: equity history: %v", apperrors.ErrSchemaMismatch, err)
	}
	if err := tbl.SetIndex("Date"); err != nil {
		return nil, err
	}
	return tbl, nil
}

func parseIndexHistory(body []byte) (*table.Table, error) {
	return parser.ParseHTMLTable(body, parser.HTMLOptions{
		SkipRows: 3,
		Columns:  indexHistoryColumns,
		Dates:    map[string]string{"Date": parser.LayoutDay},
		Index:    []string{"Date"},
	})
}

// tradedDates feeds the trading calendar from the reference symbol's history
func (c *Client) tradedDates(ctx context.Context, symbol string, from, to time.Time) ([]time.Time, error) {
	encoded := universe.Quote(strings.ToUpper(symbol))
	tbl, err := c.history(ctx, strings.ToUpper(symbol), encoded, from, to)
	if err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return nil, nil
	}

	col, ok := tbl.Col("Date")
	if !ok || col.Kind != table.KindDate {
		return nil, fmt.Errorf("%w: history of %s has no Date column", apperrors.ErrSchemaMismatch, symbol)
	}
	return append([]time.Time(nil), col.Dates...), nil
}
