package nse

import (
	"context"
	"fmt"

	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/pkg/httputil"
)

// Resource enumerates the upstream endpoints the accessors read
type Resource int

const (
	ResourceMarketStatus Resource = iota
	ResourceInfo
	ResourceQuoteEquity
	ResourceTradeInfo
	ResourceQuoteDerivative
	ResourceBhavcopy
	ResourceBhavcopyFnO
	ResourcePreOpen
	ResourceOptionChainIndex
	ResourceOptionChainEquity
	ResourceFiiDii
	ResourceHistoryEquity
	ResourceHistoryIndex
	ResourceIndices
	ResourceGainersLosers
	ResourceFnOSymbols
	ResourceSymbolList
	ResourceStockWatch
	ResourceDailyDelivery
	ResourceInsiderTrading
	ResourceCorpInfo
	ResourceMostActiveEquity
	ResourceMostActiveDerivative

	resourceCount
)

// Format is the wire format of a resource body
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatZipCSV Format = "zip"
	FormatHTML   Format = "html"
)

// ResourceSpec describes how one resource is fetched and cached
type ResourceSpec struct {
	Name      string
	Endpoint  string // key in the endpoint table
	Format    Format
	Namespace string // cache directory; empty when never cached
	MaxSpan   int    // chunk window in days; zero when not ranged
}

// ⭐ SSOT: resource -> endpoint, format, cache namespace and window
var resources = map[Resource]ResourceSpec{
	ResourceMarketStatus:         {Name: "market_status", Endpoint: "marketStatus", Format: FormatJSON},
	ResourceInfo:                 {Name: "info", Endpoint: "info", Format: FormatJSON},
	ResourceQuoteEquity:          {Name: "quote_eq", Endpoint: "quote_eq", Format: FormatJSON},
	ResourceTradeInfo:            {Name: "trade_info", Endpoint: "trade_info", Format: FormatJSON},
	ResourceQuoteDerivative:      {Name: "quote_derivative", Endpoint: "quote_derivative", Format: FormatJSON},
	ResourceBhavcopy:             {Name: "bhavcopy", Endpoint: "bhavcopy", Format: FormatCSV, Namespace: "bhavcopy_eq"},
	ResourceBhavcopyFnO:          {Name: "bhavcopy_fno", Endpoint: "bhavcopy_derivatives", Format: FormatZipCSV, Namespace: "bhavcopy_fno"},
	ResourcePreOpen:              {Name: "pre_open", Endpoint: "preOpen", Format: FormatJSON, Namespace: "pre_open"},
	ResourceOptionChainIndex:     {Name: "option_chain_index", Endpoint: "option_chain_index", Format: FormatJSON, Namespace: "option_chain"},
	ResourceOptionChainEquity:    {Name: "option_chain_equity", Endpoint: "option_chain_equities", Format: FormatJSON, Namespace: "option_chain"},
	ResourceFiiDii:               {Name: "fii_dii", Endpoint: "fii_dii", Format: FormatJSON, Namespace: "fii_dii"},
	ResourceHistoryEquity:        {Name: "hist_equity", Endpoint: "hist", Format: FormatCSV, Namespace: "hist", MaxSpan: 480},
	ResourceHistoryIndex:         {Name: "hist_index", Endpoint: "indices_hist_base", Format: FormatHTML, Namespace: "hist", MaxSpan: 100},
	ResourceIndices:              {Name: "indices", Endpoint: "indices", Format: FormatJSON},
	ResourceGainersLosers:        {Name: "gainers_losers", Endpoint: "gainer_loser", Format: FormatJSON},
	ResourceFnOSymbols:           {Name: "fno_symbols", Endpoint: "fnoSymbols", Format: FormatJSON, Namespace: "symbol_list"},
	ResourceSymbolList:           {Name: "symbol_list", Endpoint: "symbol_list", Format: FormatJSON, Namespace: "symbol_list"},
	ResourceStockWatch:           {Name: "eq_stock_watch", Endpoint: "equity_stock_watch", Format: FormatCSV, Namespace: "eq_stock_watch"},
	ResourceDailyDelivery:        {Name: "daily_delivery", Endpoint: "daily_delivery", Format: FormatCSV, Namespace: "daily_delivery"},
	ResourceInsiderTrading:       {Name: "insider_trading", Endpoint: "insider_trading", Format: FormatJSON, Namespace: "insider_trading"},
	ResourceCorpInfo:             {Name: "corp_info", Endpoint: "corp_info", Format: FormatJSON, Namespace: "corp_info"},
	ResourceMostActiveEquity:     {Name: "most_active_eq", Endpoint: "most_active_eq", Format: FormatJSON},
	ResourceMostActiveDerivative: {Name: "most_active_derivatives", Endpoint: "most_active_derivatives", Format: FormatJSON},
}

// Resources returns every resource in declaration order
func Resources() []Resource {
	out := make([]Resource, 0, resourceCount)
	for r := Resource(0); r < resourceCount; r++ {
		out = append(out, r)
	}
	return out
}

// Spec returns the lookup entry of r
func (r Resource) Spec() (ResourceSpec, bool) {
	s, ok := resources[r]
	return s, ok
}

func (r Resource) String() string {
	if s, ok := resources[r]; ok {
		return s.Name
	}
	return fmt.Sprintf("resource(%d)", int(r))
}

// url renders the endpoint of r
func (c *Client) url(r Resource, params map[string]string) (string, error) {
	spec, ok := r.Spec()
	if !ok {
		return "", fmt.Errorf("unknown resource %d", int(r))
	}
	return c.endpoints.URL(spec.Endpoint, params)
}

// fetch renders and GETs the endpoint of r
func (c *Client) fetch(ctx context.Context, r Resource, params map[string]string) ([]byte, error) {
	u, err := c.url(r, params)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"resource": r.String(),
		"url":      u,
	}).Debug("fetching resource")

	body, err := c.fetcher.Fetch(ctx, u, httputil.FetchOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r, err)
	}
	return body, nil
}

// fetchJSON fetches r and decodes the body
func (c *Client) fetchJSON(ctx context.Context, r Resource, params map[string]string) (any, error) {
	body, err := c.fetch(ctx, r, params)
	if err != nil {
		return nil, err
	}
	doc, err := parser.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r, err)
	}
	return doc, nil
}
