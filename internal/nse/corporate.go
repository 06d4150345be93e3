package nse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

const defaultInsiderDays = 100

var insiderDropColumns = []string{"xbrl", "tkdAcqm", "anex", "derivativeType", "remarks"}

// InsiderTrading returns insider trading disclosures filed between from and to.
// Zero dates default to the last 100 days.
func (c *Client) InsiderTrading(ctx context.Context, from, to time.Time) (*table.Table, error) {
	today := c.today()
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = today.Add(-defaultInsiderDays * day)
	}
	from, to = calendar.Civil(from), calendar.Civil(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s after %s", apperrors.ErrInvalidDateRange, cache.Date(from), cache.Date(to))
	}

	return c.cachedTable(ctx, cache.InsiderTradingKey(from, to), func(ctx context.Context) (*table.Table, error) {
		c.logger.WithFields(map[string]interface{}{
			"from": cache.Date(from),
			"to":   cache.Date(to),
		}).Info("downloading insider trading")

		doc, err := c.fetchJSON(ctx, ResourceInsiderTrading, map[string]string{
			"from": from.Format("02-01-2006"),
			"to":   to.Format("02-01-2006"),
		})
		if err != nil {
			return nil, err
		}
		records, err := parser.LookupRecords(doc, "data")
		if err != nil {
			return nil, err
		}
		return parser.RecordsTable(records, parser.JSONOptions{Drop: insiderDropColumns})
	})
}

// CorpInfo is the corporate information of one company
type CorpInfo struct {
	ShareHoldingPatterns *table.Table `json:"share_holding_patterns"`
	FinancialResults     *table.Table `json:"financial_results"`
	PledgeDetails        *table.Table `json:"pledge_details"`
	SastRegulations29    *table.Table `json:"sast_regulations_29"`
}

// Tables returns the four tables keyed by name
func (ci *CorpInfo) Tables() map[string]*table.Table {
	return map[string]*table.Table{
		"share_holding_patterns": ci.ShareHoldingPatterns,
		"financial_results":      ci.FinancialResults,
		"pledge_details":         ci.PledgeDetails,
		"sast_regulations_29":    ci.SastRegulations29,
	}
}

var corpInfoSections = []struct {
	path string
	set  func(ci *CorpInfo, t *table.Table)
}{
	{"corporate.shareholdingPatterns.data", func(ci *CorpInfo, t *table.Table) { ci.ShareHoldingPatterns = t }},
	{"corporate.financialResults", func(ci *CorpInfo, t *table.Table) { ci.FinancialResults = t }},
	{"corporate.pledgedetails", func(ci *CorpInfo, t *table.Table) { ci.PledgeDetails = t }},
	{"corporate.sastRegulations_29", func(ci *CorpInfo, t *table.Table) { ci.SastRegulations29 = t }},
}

// CorpInfo returns the corporate information of symbol. Snapshots are kept per
// month (full month name, default the current one); useCache false always
// downloads and leaves the store untouched.
func (c *Client) CorpInfo(ctx context.Context, symbol, month string, useCache bool) (*CorpInfo, error) {
	encoded, err := universe.Validate(symbol, c.symbols.EquitySymbols())
	if err != nil {
		return nil, err
	}
	if month == "" {
		month = c.today().Format("January")
	}

	produce := func(ctx context.Context) (CorpInfo, error) {
		c.logger.WithField("symbol", symbol).Info("downloading corp info")
		doc, err := c.fetchJSON(ctx, ResourceCorpInfo, map[string]string{"symbol": encoded})
		if err != nil {
			return CorpInfo{}, err
		}

		var ci CorpInfo
		for _, s := range corpInfoSections {
			records, err := parser.LookupRecords(doc, s.path)
			if err != nil {
				return CorpInfo{}, err
			}
			t, err := parser.RecordsTable(records, parser.JSONOptions{})
			if err != nil {
				return CorpInfo{}, fmt.Errorf("%s: %w", s.path, err)
			}
			s.set(&ci, t)
		}
		return ci, nil
	}

	if !useCache {
		ci, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		return &ci, nil
	}

	ci, err := cache.GetOrSet(ctx, c.store, cache.CorpInfoKey(strings.ToUpper(symbol), month), produce)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}
