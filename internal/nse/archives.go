package nse

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
)

// cachedTable serves k from the store, running produce on a miss
func (c *Client) cachedTable(ctx context.Context, k cache.Key, produce func(ctx context.Context) (*table.Table, error)) (*table.Table, error) {
	tbl, err := cache.GetOrSet(ctx, c.store, k, func(ctx context.Context) (table.Table, error) {
		t, err := produce(ctx)
		if err != nil {
			return table.Table{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, err
	}
	return &tbl, nil
}

// Bhavcopy returns the equity bhavcopy of date (zero: latest trading day),
// indexed by (SYMBOL, SERIES). series "ALL" keeps every series; empty means EQ.
// The whole file is cached, the series filter applies on every read.
func (c *Client) Bhavcopy(ctx context.Context, date time.Time, series string) (*table.Table, error) {
	series = strings.ToUpper(series)
	if series == "" {
		series = "EQ"
	}

	date, err := c.dateOrLatest(ctx, date)
	if err != nil {
		return nil, err
	}

	tbl, err := c.cachedTable(ctx, cache.BhavcopyKey(date), func(ctx context.Context) (*table.Table, error) {
		c.logger.WithField("date", cache.Date(date)).Info("downloading bhavcopy")
		body, err := c.fetch(ctx, ResourceBhavcopy, map[string]string{"date": date.Format("02012006")})
		if err != nil {
			return nil, err
		}
		return parser.ParseCSV(body, parser.CSVOptions{
			Dates: map[string]string{"DATE1": parser.LayoutDay},
			Index: []string{"SYMBOL", "SERIES"},
		})
	})
	if err != nil {
		return nil, err
	}

	if series == "ALL" {
		return tbl, nil
	}
	col, ok := tbl.Col("SERIES")
	if !ok {
		return tbl, nil
	}
	return tbl.Filter(func(row int) bool { return col.StringAt(row) == series }), nil
}

// BhavcopyFnO returns the derivatives bhavcopy of date (zero: latest trading day), indexed by SYMBOL
func (c *Client) BhavcopyFnO(ctx context.Context, date time.Time) (*table.Table, error) {
	date, err := c.dateOrLatest(ctx, date)
	if err != nil {
		return nil, err
	}

	return c.cachedTable(ctx, cache.BhavcopyFnOKey(date), func(ctx context.Context) (*table.Table, error) {
		c.logger.WithField("date", cache.Date(date)).Info("downloading F&O bhavcopy")
		body, err := c.fetch(ctx, ResourceBhavcopyFnO, map[string]string{
			"date":  strings.ToUpper(date.Format("02Jan2006")),
			"month": strings.ToUpper(date.Format("Jan")),
			"year":  date.Format("2006"),
		})
		if err != nil {
			return nil, err
		}
		return parser.ParseZipCSV(body, parser.CSVOptions{
			Dates: map[string]string{"EXPIRY_DT": parser.LayoutDay},
			Index: []string{"SYMBOL"},
		})
	})
}

// DailyDelivery returns the security-wise delivery position of date (zero: latest trading day)
func (c *Client) DailyDelivery(ctx context.Context, date time.Time) (*table.Table, error) {
	date, err := c.dateOrLatest(ctx, date)
	if err != nil {
		return nil, err
	}

	return c.cachedTable(ctx, cache.DailyDeliveryKey(date), func(ctx context.Context) (*table.Table, error) {
		c.logger.WithField("date", cache.Date(date)).Info("downloading daily delivery")
		body, err := c.fetch(ctx, ResourceDailyDelivery, map[string]string{"date": date.Format("02012006")})
		if err != nil {
			return nil, err
		}
		return parser.ParseCSV(body, parser.CSVOptions{
			SkipRows:  3,
			Rename:    map[string]string{"NameofSecurity": "SYMBOL"},
			DropEmpty: true,
			Index:     []string{"SYMBOL"},
		})
	})
}

// EqStockWatch returns the F&O equity stock watch of the latest trading day
func (c *Client) EqStockWatch(ctx context.Context) (*table.Table, error) {
	date, err := c.calendar.LatestTradingDay(ctx)
	if err != nil {
		return nil, err
	}

	return c.cachedTable(ctx, cache.StockWatchKey(date), func(ctx context.Context) (*table.Table, error) {
		c.logger.WithField("date", cache.Date(date)).Info("downloading equity stock watch")
		body, err := c.fetch(ctx, ResourceStockWatch, nil)
		if err != nil {
			return nil, err
		}
		return parser.ParseCSV(body, parser.CSVOptions{
			Header:    func(h string) string { return strings.TrimSpace(strings.ReplaceAll(h, "\n", " ")) },
			DropEmpty: true,
			Index:     []string{"SYMBOL"},
		})
	})
}
