package nse

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

var chartColumns = []string{"chart365dPath", "chartTodayPath", "chart30dPath"}

// MarketStatus returns the market status payload as received
func (c *Client) MarketStatus(ctx context.Context) (map[string]any, error) {
	doc, err := c.fetchJSON(ctx, ResourceMarketStatus, nil)
	if err != nil {
		return nil, err
	}
	return parser.LookupMap(doc, "")
}

// Info returns the equity information payload of symbol
func (c *Client) Info(ctx context.Context, symbol string) (map[string]any, error) {
	encoded, err := universe.Validate(symbol, c.symbols.Symbols(universe.All))
	if err != nil {
		return nil, err
	}

	doc, err := c.fetchJSON(ctx, ResourceInfo, map[string]string{"symbol": encoded})
	if err != nil {
		return nil, err
	}
	return parser.LookupMap(doc, "")
}

// Indices returns the live value of every index, or only of index when it is not empty
func (c *Client) Indices(ctx context.Context, index string) (*table.Table, error) {
	var only universe.Index
	if index != "" {
		idx, err := universe.ParseIndex(index)
		if err != nil {
			return nil, err
		}
		only = idx
	}

	doc, err := c.fetchJSON(ctx, ResourceIndices, nil)
	if err != nil {
		return nil, err
	}
	records, err := parser.LookupRecords(doc, "data")
	if err != nil {
		return nil, err
	}

	tbl, err := parser.RecordsTable(records, parser.JSONOptions{
		Drop:  chartColumns,
		Index: []string{"indexSymbol"},
	})
	if err != nil {
		return nil, err
	}

	if only.Value == "" {
		return tbl, nil
	}
	col, _ := tbl.Col("indexSymbol")
	return tbl.Filter(func(row int) bool { return col.StringAt(row) == only.Value }), nil
}

// gainersLosers fetches the constituents payload of index
func (c *Client) gainersLosers(ctx context.Context, index string) (any, error) {
	idx, err := universe.ParseIndex(index)
	if err != nil {
		return nil, err
	}
	if idx == universe.All {
		return nil, fmt.Errorf("%w: %s has no constituents page", apperrors.ErrInvalidSymbol, idx.Value)
	}

	param := idx.Encoded()
	if idx == universe.FnO {
		param = "SECURITIES%20IN%20F%26O"
	}
	return c.fetchJSON(ctx, ResourceGainersLosers, map[string]string{"index": param})
}

func (c *Client) constituents(ctx context.Context, index string) (*table.Table, error) {
	doc, err := c.gainersLosers(ctx, index)
	if err != nil {
		return nil, err
	}
	records, err := parser.LookupRecords(doc, "data")
	if err != nil {
		return nil, err
	}
	return parser.RecordsTable(records, parser.JSONOptions{
		Drop:  append([]string{"meta", "identifier"}, chartColumns...),
		Index: []string{"symbol"},
	})
}

// TopGainers returns up to n constituents of index with a positive change, best first
func (c *Client) TopGainers(ctx context.Context, index string, n int) (*table.Table, error) {
	return c.movers(ctx, index, n, true)
}

// TopLosers returns up to n constituents of index with a negative change, worst first
func (c *Client) TopLosers(ctx context.Context, index string, n int) (*table.Table, error) {
	return c.movers(ctx, index, n, false)
}

func (c *Client) movers(ctx context.Context, index string, n int, gainers bool) (*table.Table, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: length must be positive, got %d", apperrors.ErrInvalidArgument, n)
	}

	tbl, err := c.constituents(ctx, index)
	if err != nil {
		return nil, err
	}
	if tbl.Len() == 0 {
		return tbl, nil
	}

	change, ok := tbl.Col("pChange")
	if !ok || change.Kind != table.KindNumber {
		return nil, fmt.Errorf("%w: numeric pChange column missing", apperrors.ErrSchemaMismatch)
	}

	sorted, err := tbl.SortBy("pChange", gainers)
	if err != nil {
		return nil, err
	}
	top := sorted.Head(n)
	pc, _ := top.Col("pChange")
	return top.Filter(func(row int) bool {
		if gainers {
			return pc.Numbers[row] > 0
		}
		return pc.Numbers[row] < 0
	}), nil
}

// Advances returns the advance/decline counts of index
func (c *Client) Advances(ctx context.Context, index string) (map[string]any, error) {
	doc, err := c.gainersLosers(ctx, index)
	if err != nil {
		return nil, err
	}
	return parser.LookupMap(doc, "advance")
}

// MostActive selects one of the most-active lists. The value is the
// derivatives snapshot query; the equity list has its own endpoint.
type MostActive string

const (
	MostActiveAllFnO  MostActive = "contracts&limit=10"
	MostActiveEQ      MostActive = ""
	MostActiveOptions MostActive = "options"
	MostActiveFutures MostActive = "futures"
	MostActiveCalls   MostActive = "calls"
	MostActivePuts    MostActive = "puts"
	MostActiveOI      MostActive = "oi"
)

var mostActiveNames = map[string]MostActive{
	"allfno":  MostActiveAllFnO,
	"eq":      MostActiveEQ,
	"options": MostActiveOptions,
	"futures": MostActiveFutures,
	"calls":   MostActiveCalls,
	"puts":    MostActivePuts,
	"oi":      MostActiveOI,
}

// ParseMostActive maps a list name (AllFnO, EQ, Options, ...) to its kind
func ParseMostActive(s string) (MostActive, error) {
	kind, ok := mostActiveNames[strings.ToLower(s)]
	if !ok {
		return "", fmt.Errorf("%w: unknown most-active list %q", apperrors.ErrInvalidArgument, s)
	}
	return kind, nil
}

// MostActive returns the most active securities or contracts of kind
func (c *Client) MostActive(ctx context.Context, kind MostActive) (*table.Table, error) {
	var (
		doc  any
		path string
		err  error
	)
	if kind == MostActiveEQ {
		doc, err = c.fetchJSON(ctx, ResourceMostActiveEquity, nil)
		path = "data"
	} else {
		doc, err = c.fetchJSON(ctx, ResourceMostActiveDerivative, map[string]string{"kind": string(kind)})
		path = "volume.data"
	}
	if err != nil {
		return nil, err
	}

	records, err := parser.LookupRecords(doc, path)
	if err != nil {
		return nil, err
	}
	return parser.RecordsTable(records, parser.JSONOptions{})
}
