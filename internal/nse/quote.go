package nse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

// Segment is the market segment of a quote
type Segment string

const (
	SegmentEQ  Segment = "EQ"
	SegmentFUT Segment = "FUT"
	SegmentOPT Segment = "OPT"
)

// ParseSegment accepts EQ, FUT or OPT in any case; empty means EQ
func ParseSegment(s string) (Segment, error) {
	switch strings.ToUpper(s) {
	case "", "EQ":
		return SegmentEQ, nil
	case "FUT":
		return SegmentFUT, nil
	case "OPT":
		return SegmentOPT, nil
	}
	return "", fmt.Errorf("%w: unknown segment %q", apperrors.ErrInvalidArgument, s)
}

// OptionType is the option side as the exchange names it
type OptionType string

const (
	OptionCall OptionType = "Call" // CE
	OptionPut  OptionType = "Put"  // PE
)

// ParseOptionType accepts CE/PE or Call/Put; empty means Call
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(s) {
	case "", "CE", "CALL":
		return OptionCall, nil
	case "PE", "PUT":
		return OptionPut, nil
	}
	return "", fmt.Errorf("%w: unknown option type %q", apperrors.ErrInvalidArgument, s)
}

// QuoteRequest selects one instrument. Zero Expiry and Strike pick the first
// listed contract.
type QuoteRequest struct {
	Symbol     string
	Segment    Segment
	Expiry     time.Time
	OptionType OptionType
	Strike     float64
}

// Quote is a live quote. Derivative quotes also carry the expiries (and for
// options the strikes) they were selected from.
type Quote struct {
	Symbol     string         `json:"symbol"`
	Segment    Segment        `json:"segment"`
	Timestamp  time.Time      `json:"timestamp"`
	Expiry     *time.Time     `json:"expiry,omitempty"`
	OptionType OptionType     `json:"optionType,omitempty"`
	Strike     float64        `json:"strike,omitempty"`
	Expiries   []time.Time    `json:"expiries,omitempty"`
	Strikes    []float64      `json:"strikes,omitempty"`
	Fields     map[string]any `json:"fields"`
}

// GetQuote returns a live quote for an equity, future or option
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Segment == "" {
		req.Segment = SegmentEQ
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":  req.Symbol,
		"segment": req.Segment,
	}).Info("downloading quote")

	switch req.Segment {
	case SegmentEQ:
		return c.equityQuote(ctx, req)
	case SegmentFUT, SegmentOPT:
		return c.derivativeQuote(ctx, req)
	}
	return nil, fmt.Errorf("%w: unknown segment %q", apperrors.ErrInvalidArgument, req.Segment)
}

func (c *Client) equityQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	encoded, err := universe.Validate(req.Symbol, c.symbols.EquitySymbols())
	if err != nil {
		return nil, err
	}
	params := map[string]string{"symbol": encoded}

	doc, err := c.fetchJSON(ctx, ResourceQuoteEquity, params)
	if err != nil {
		return nil, err
	}
	trade, err := c.fetchJSON(ctx, ResourceTradeInfo, params)
	if err != nil {
		return nil, err
	}

	data, err := parser.LookupMap(doc, "")
	if err != nil {
		return nil, err
	}
	tradeData, err := parser.LookupMap(trade, "")
	if err != nil {
		return nil, err
	}
	for k, v := range tradeData {
		data[k] = v
	}

	priceInfo, err := parser.LookupMap(data, "priceInfo")
	if err != nil {
		return nil, err
	}
	updated, err := parser.LookupString(data, "metadata.lastUpdateTime")
	if err != nil {
		return nil, err
	}
	ts, err := parser.ParseDate(parser.LayoutTimestamp, updated)
	if err != nil {
		return nil, err
	}
	series, err := parser.LookupString(data, "metadata.series")
	if err != nil {
		return nil, err
	}
	symbol, err := parser.LookupString(data, "metadata.symbol")
	if err != nil {
		return nil, err
	}
	dp, err := parser.LookupMap(data, "securityWiseDP")
	if err != nil {
		return nil, err
	}
	low, err := parser.Lookup(priceInfo, "intraDayHighLow.min")
	if err != nil {
		return nil, err
	}
	high, err := parser.Lookup(priceInfo, "intraDayHighLow.max")
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(priceInfo)+len(dp)+4)
	for k, v := range priceInfo {
		fields[k] = v
	}
	fields["series"] = series
	fields["symbol"] = symbol
	for k, v := range dp {
		fields[k] = v
	}
	fields["low"] = low
	fields["high"] = high

	return &Quote{
		Symbol:    symbol,
		Segment:   SegmentEQ,
		Timestamp: ts,
		Fields:    fields,
	}, nil
}

// contract is one instrument of the derivative quote payload
type contract struct {
	raw    map[string]any
	expiry time.Time
	strike float64
}

func (c *Client) derivativeQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	encoded, err := universe.Validate(req.Symbol, c.symbols.DerivativeSymbols())
	if err != nil {
		return nil, err
	}

	doc, err := c.fetchJSON(ctx, ResourceQuoteDerivative, map[string]string{"symbol": encoded})
	if err != nil {
		return nil, err
	}

	tsField := "fut_timestamp"
	if req.Segment == SegmentOPT {
		tsField = "opt_timestamp"
		if req.OptionType == "" {
			req.OptionType = OptionCall
		}
	}
	stamp, err := parser.LookupString(doc, tsField)
	if err != nil {
		return nil, err
	}
	ts, err := parser.ParseDate(parser.LayoutTimestamp, stamp)
	if err != nil {
		return nil, err
	}

	stocks, err := parser.LookupRecords(doc, "stocks")
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(string(req.Segment))
	var contracts []contract
	for i, s := range stocks {
		meta, err := parser.LookupMap(s, "metadata")
		if err != nil {
			return nil, fmt.Errorf("stocks[%d]: %w", i, err)
		}
		instrument, _ := meta["instrumentType"].(string)
		if !strings.Contains(strings.ToLower(instrument), want) {
			continue
		}
		if req.Segment == SegmentOPT && meta["optionType"] != string(req.OptionType) {
			continue
		}

		expiryText, _ := meta["expiryDate"].(string)
		expiry, err := parser.ParseDate(parser.LayoutDay, expiryText)
		if err != nil {
			return nil, fmt.Errorf("stocks[%d]: %w", i, err)
		}
		ct := contract{raw: s, expiry: expiry}
		if req.Segment == SegmentOPT {
			ct.strike, err = parser.Float(meta["strikePrice"])
			if err != nil {
				return nil, fmt.Errorf("stocks[%d] strikePrice: %w", i, err)
			}
		}
		contracts = append(contracts, ct)
	}
	if len(contracts) == 0 {
		return nil, fmt.Errorf("%w: no %s contracts for %s", apperrors.ErrNotFound, req.Segment, req.Symbol)
	}

	expiries := make([]time.Time, len(contracts))
	strikes := make([]float64, len(contracts))
	for i, ct := range contracts {
		expiries[i] = ct.expiry
		strikes[i] = ct.strike
	}
	expiries = dedupe(expiries)
	strikes = dedupe(strikes)

	expiry := pick(expiries, calendar.Civil(req.Expiry))
	q := &Quote{
		Symbol:    strings.ToUpper(req.Symbol),
		Segment:   req.Segment,
		Timestamp: ts,
		Expiry:    &expiry,
		Expiries:  expiries,
	}

	strike := 0.0
	if req.Segment == SegmentOPT {
		strike = pick(strikes, req.Strike)
		q.OptionType = req.OptionType
		q.Strike = strike
		q.Strikes = strikes
	}

	var chosen *contract
	for i := range contracts {
		if contracts[i].expiry.Equal(expiry) && contracts[i].strike == strike {
			chosen = &contracts[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: no %s contract for %s expiring %s at strike %v",
			apperrors.ErrNotFound, req.Segment, req.Symbol, expiry.Format("2006-01-02"), strike)
	}

	fields := map[string]any{}
	sections := []string{"marketDeptOrderBook.tradeInfo"}
	if req.Segment == SegmentOPT {
		sections = append(sections, "marketDeptOrderBook.otherInfo")
	}
	sections = append(sections, "metadata")
	for _, path := range sections {
		section, err := parser.LookupMap(chosen.raw, path)
		if err != nil {
			return nil, err
		}
		for k, v := range section {
			fields[k] = v
		}
	}
	fields["expiryDate"] = expiry
	q.Fields = fields

	return q, nil
}

// pick returns want when it is listed, the first element otherwise
func pick[T comparable](list []T, want T) T {
	for _, v := range list {
		if v == want {
			return v
		}
	}
	return list[0]
}
