package nse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// FlowRecord is one day of FII/FPI and DII cash market activity, in crores
type FlowRecord struct {
	Date    string  `csv:"date" json:"date"` // YYYY-MM-DD
	FIIBuy  float64 `csv:"fii_buy_value" json:"fiiBuyValue"`
	FIISell float64 `csv:"fii_sell_value" json:"fiiSellValue"`
	FIINet  float64 `csv:"fii_net_value" json:"fiiNetValue"`
	DIIBuy  float64 `csv:"dii_buy_value" json:"diiBuyValue"`
	DIISell float64 `csv:"dii_sell_value" json:"diiSellValue"`
	DIINet  float64 `csv:"dii_net_value" json:"diiNetValue"`
}

var flowsFile = cache.RowFile[FlowRecord]{
	Name: "fii_dii/fii_dii.csv",
	Key:  func(r FlowRecord) string { return r.Date },
	Less: func(a, b FlowRecord) bool { return a.Date < b.Date },
}

// FiiDii returns the latest published FII/DII flows. The stored history is
// used while it is current: it ends today, or yesterday before the market close.
func (c *Client) FiiDii(ctx context.Context) (*FlowRecord, error) {
	rows, err := flowsFile.Read(c.store)
	if err != nil {
		return nil, err
	}

	now := c.now()
	today := c.today()
	var last time.Time
	if len(rows) > 0 {
		last, err = time.Parse("2006-01-02", rows[len(rows)-1].Date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", flowsFile.Name, err)
		}
		if last.Equal(today) || (last.Equal(today.Add(-day)) && !c.afterClose(now)) {
			c.logger.Debug("fii/dii read from disk")
			rec := rows[len(rows)-1]
			return &rec, nil
		}
	}

	doc, err := c.fetchJSON(ctx, ResourceFiiDii, nil)
	if err != nil {
		return nil, err
	}
	records, err := parser.Records(doc)
	if err != nil {
		return nil, err
	}

	rec, err := flowFromRecords(records)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 || rec.Date != last.Format("2006-01-02") {
		if _, err := flowsFile.Append(c.store, *rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func flowFromRecords(records []map[string]any) (*FlowRecord, error) {
	var fii, dii map[string]any
	for _, r := range records {
		category := strings.TrimSpace(parser.Text(r["category"]))
		switch {
		case strings.HasPrefix(category, "FII"):
			fii = r
		case strings.HasPrefix(category, "DII"):
			dii = r
		}
	}
	if fii == nil || dii == nil {
		return nil, fmt.Errorf("%w: FII/FPI or DII category missing", apperrors.ErrSchemaMismatch)
	}

	date, err := parser.ParseDate(parser.LayoutDay, parser.Text(fii["date"]))
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, 6)
	for _, r := range []map[string]any{fii, dii} {
		for _, field := range []string{"buyValue", "sellValue", "netValue"} {
			v, err := parser.Float(r[field])
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", parser.Text(r["category"]), field, err)
			}
			values = append(values, v)
		}
	}

	return &FlowRecord{
		Date:    date.Format("2006-01-02"),
		FIIBuy:  values[0],
		FIISell: values[1],
		FIINet:  values[2],
		DIIBuy:  values[3],
		DIISell: values[4],
		DIINet:  values[5],
	}, nil
}

// FlowHistory returns every stored FII/DII day, oldest first
func (c *Client) FlowHistory() ([]FlowRecord, error) {
	return flowsFile.Read(c.store)
}

// FlowTable renders flow records as a table indexed by date
func FlowTable(rows []FlowRecord) (*table.Table, error) {
	dates := make([]time.Time, len(rows))
	values := make([][]float64, 6)
	for i := range values {
		values[i] = make([]float64, len(rows))
	}
	for i, r := range rows {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: flow date %q", apperrors.ErrSchemaMismatch, r.Date)
		}
		dates[i] = d
		for j, v := range []float64{r.FIIBuy, r.FIISell, r.FIINet, r.DIIBuy, r.DIISell, r.DIINet} {
			values[j][i] = v
		}
	}

	t, err := table.New(
		table.DateColumn("date", dates),
		table.NumberColumn("fii_buy_value", values[0]),
		table.NumberColumn("fii_sell_value", values[1]),
		table.NumberColumn("fii_net_value", values[2]),
		table.NumberColumn("dii_buy_value", values[3]),
		table.NumberColumn("dii_sell_value", values[4]),
		table.NumberColumn("dii_net_value", values[5]),
	)
	if err != nil {
		return nil, err
	}
	if err := t.SetIndex("date"); err != nil {
		return nil, err
	}
	return t, nil
}
