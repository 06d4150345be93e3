package nse

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// RefreshSymbols downloads the member list of index and replaces its snapshot.
// All comes from the latest EQ bhavcopy, FnO from the F&O master list plus the
// two index futures, every other index from its constituents page.
func (c *Client) RefreshSymbols(ctx context.Context, index string) ([]string, error) {
	idx, err := universe.ParseIndex(index)
	if err != nil {
		return nil, err
	}

	var symbols []string
	switch idx {
	case universe.All:
		symbols, err = c.bhavcopySymbols(ctx)
	case universe.FnO:
		symbols, err = c.fnoSymbols(ctx)
	default:
		symbols, err = c.constituentSymbols(ctx, idx)
	}
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", idx.Name, err)
	}

	if err := c.symbols.Replace(idx, symbols); err != nil {
		return nil, err
	}
	return c.symbols.Symbols(idx), nil
}

// UpdateSymbolList refreshes every index in turn, pausing between them.
// It stops at the first failure; lists refreshed before it are kept.
func (c *Client) UpdateSymbolList(ctx context.Context) (map[string]int, error) {
	limiter := newLimiter(c.opts.RefreshDelay)
	counts := make(map[string]int)

	start := time.Now()
	for _, idx := range universe.Indices() {
		if err := limiter.Wait(ctx); err != nil {
			return counts, err
		}
		symbols, err := c.RefreshSymbols(ctx, idx.Name)
		if err != nil {
			return counts, err
		}
		counts[idx.Name] = len(symbols)
	}

	c.logger.WithFields(map[string]interface{}{
		"indices":  len(counts),
		"duration": time.Since(start),
	}).Info("symbol lists updated")
	return counts, nil
}

func (c *Client) bhavcopySymbols(ctx context.Context) ([]string, error) {
	tbl, err := c.Bhavcopy(ctx, time.Time{}, "EQ")
	if err != nil {
		return nil, err
	}
	col, ok := tbl.Col("SYMBOL")
	if !ok {
		return nil, fmt.Errorf("%w: bhavcopy has no SYMBOL column", apperrors.ErrSchemaMismatch)
	}

	out := make([]string, tbl.Len())
	for i := range out {
		out[i] = col.StringAt(i)
	}
	return out, nil
}

func (c *Client) fnoSymbols(ctx context.Context) ([]string, error) {
	doc, err := c.fetchJSON(ctx, ResourceFnOSymbols, nil)
	if err != nil {
		return nil, err
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: F&O master list is %T", apperrors.ErrSchemaMismatch, doc)
	}

	out := make([]string, 0, len(list)+2)
	for _, v := range list {
		out = append(out, parser.Text(v))
	}
	return append(out, "NIFTY", "BANKNIFTY"), nil
}

func (c *Client) constituentSymbols(ctx context.Context, idx universe.Index) ([]string, error) {
	doc, err := c.fetchJSON(ctx, ResourceSymbolList, map[string]string{"index": idx.Encoded()})
	if err != nil {
		return nil, err
	}
	records, err := parser.LookupRecords(doc, "data")
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for i, r := range records {
		if parser.Text(r["identifier"]) == idx.Value {
			continue
		}
		symbol, err := parser.LookupString(r, "meta.symbol")
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		out = append(out, symbol)
	}
	return out, nil
}
