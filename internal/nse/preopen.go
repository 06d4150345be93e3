package nse

import (
	"context"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
)

// PreOpen returns the pre-open session, indexed by metadata.symbol. A stored
// snapshot for today is reused; a fresh one is stored under the session date
// the payload reports.
func (c *Client) PreOpen(ctx context.Context) (*table.Table, error) {
	var cached table.Table
	found, err := c.store.Get(cache.PreOpenKey(c.today()), &cached)
	if err != nil {
		return nil, err
	}
	if found {
		c.logger.Debug("pre-open read from disk")
		return &cached, nil
	}

	c.logger.Info("downloading pre-open data")
	doc, err := c.fetchJSON(ctx, ResourcePreOpen, nil)
	if err != nil {
		return nil, err
	}

	stamp, err := parser.LookupString(doc, "timestamp")
	if err != nil {
		return nil, err
	}
	ts, err := parser.ParseDate(parser.LayoutTimestamp, stamp)
	if err != nil {
		return nil, err
	}

	records, err := parser.LookupRecords(doc, "data")
	if err != nil {
		return nil, err
	}
	tbl, err := parser.RecordsTable(records, parser.JSONOptions{
		Dates: map[string]string{"detail.preOpenMarket.lastUpdateTime": parser.LayoutTimestamp},
		Index: []string{"metadata.symbol"},
	})
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(cache.PreOpenKey(calendar.Civil(ts)), tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}
