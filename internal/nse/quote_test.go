package nse

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/pkg/apperrors"
)

const (
	quoteEquityPath     = "/api/quote-equity"
	quoteDerivativePath = "/api/quote-derivative"
)

const equityQuoteJSON = `{
	"info": {"symbol": "SBIN", "companyName": "State Bank of India"},
	"metadata": {"series": "EQ", "symbol": "SBIN", "lastUpdateTime": "%s"},
	"priceInfo": {"lastPrice": 186.5, "change": 2.4, "intraDayHighLow": {"min": 183, "max": 188, "value": 186.5}}
}`

const tradeInfoJSON = `{
	"marketDeptOrderBook": {"totalBuyQuantity": 100},
	"securityWiseDP": {"quantityTraded": 1234567, "deliveryQuantity": 600000, "deliveryToTradedQuantity": 48.6}
}`

// serveEquityQuote answers both the quote and the trade_info section
func serveEquityQuote(s *site, lastUpdate string) {
	s.handle(quoteEquityPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("section") == "trade_info" {
			fmt.Fprint(w, tradeInfoJSON)
			return
		}
		fmt.Fprintf(w, equityQuoteJSON, lastUpdate)
	})
}

const derivativeQuoteJSON = `{
	"fut_timestamp": "17-Jun-2020 15:30:00",
	"opt_timestamp": "17-Jun-2020 15:30:00",
	"stocks": [
		{"metadata": {"instrumentType": "Stock Futures", "expiryDate": "25-Jun-2020", "optionType": "-", "strikePrice": 0, "lastPrice": 2080.5},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 100}, "otherInfo": {}}},
		{"metadata": {"instrumentType": "Stock Futures", "expiryDate": "30-Jul-2020", "optionType": "-", "strikePrice": 0, "lastPrice": 2090},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 50}, "otherInfo": {}}},
		{"metadata": {"instrumentType": "Stock Options", "expiryDate": "25-Jun-2020", "optionType": "Call", "strikePrice": 2100, "lastPrice": 30},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 10}, "otherInfo": {"impliedVolatility": 25.1}}},
		{"metadata": {"instrumentType": "Stock Options", "expiryDate": "25-Jun-2020", "optionType": "Put", "strikePrice": 2000, "lastPrice": 22},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 20}, "otherInfo": {"impliedVolatility": 27}}},
		{"metadata": {"instrumentType": "Stock Options", "expiryDate": "25-Jun-2020", "optionType": "Put", "strikePrice": 2100, "lastPrice": 55},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 8}, "otherInfo": {"impliedVolatility": 29}}},
		{"metadata": {"instrumentType": "Stock Options", "expiryDate": "30-Jul-2020", "optionType": "Put", "strikePrice": 2000, "lastPrice": 60},
		 "marketDeptOrderBook": {"tradeInfo": {"openInterest": 4}, "otherInfo": {"impliedVolatility": 30}}}
	]
}`

func TestGetQuoteEquity(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")
	serveEquityQuote(f.site, "17-Jun-2020 16:00:00")

	q, err := f.client.GetQuote(context.Background(), QuoteRequest{Symbol: "sbin"})
	require.NoError(t, err)

	assert.Equal(t, "SBIN", q.Symbol)
	assert.Equal(t, SegmentEQ, q.Segment)
	assert.Equal(t, time.Date(2020, 6, 17, 16, 0, 0, 0, time.UTC), q.Timestamp)
	assert.Nil(t, q.Expiry)
	assert.Equal(t, 186.5, q.Fields["lastPrice"])
	assert.Equal(t, 183.0, q.Fields["low"])
	assert.Equal(t, 188.0, q.Fields["high"])
	assert.Equal(t, "EQ", q.Fields["series"])
	assert.Equal(t, 48.6, q.Fields["deliveryToTradedQuantity"])
	assert.Equal(t, 2, f.site.hitsOn(quoteEquityPath))
}

func TestGetQuoteFutures(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")
	f.site.serve(quoteDerivativePath, derivativeQuoteJSON)
	ctx := context.Background()

	tests := []struct {
		name   string
		expiry time.Time
		want   time.Time
		price  float64
	}{
		{"nearest expiry by default", time.Time{}, day0("2020-06-25"), 2080.5},
		{"explicit expiry", day0("2020-07-30"), day0("2020-07-30"), 2090},
		{"unlisted expiry falls back to the first", day0("2020-08-27"), day0("2020-06-25"), 2080.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := f.client.GetQuote(ctx, QuoteRequest{Symbol: "TCS", Segment: SegmentFUT, Expiry: tt.expiry})
			require.NoError(t, err)

			require.NotNil(t, q.Expiry)
			assert.Equal(t, tt.want, *q.Expiry)
			assert.Equal(t, tt.price, q.Fields["lastPrice"])
			assert.Equal(t, []time.Time{day0("2020-06-25"), day0("2020-07-30")}, q.Expiries)
			assert.Empty(t, q.Strikes)
			assert.Equal(t, time.Date(2020, 6, 17, 15, 30, 0, 0, time.UTC), q.Timestamp)
		})
	}
}

func TestGetQuoteOptions(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")
	f.site.serve(quoteDerivativePath, derivativeQuoteJSON)
	ctx := context.Background()

	q, err := f.client.GetQuote(ctx, QuoteRequest{Symbol: "TCS", Segment: SegmentOPT, OptionType: OptionPut})
	require.NoError(t, err)
	assert.Equal(t, []float64{2000, 2100}, q.Strikes)
	assert.Equal(t, []time.Time{day0("2020-06-25"), day0("2020-07-30")}, q.Expiries)
	assert.Equal(t, 2000.0, q.Strike)
	assert.Equal(t, OptionPut, q.OptionType)
	assert.Equal(t, 22.0, q.Fields["lastPrice"])
	assert.Equal(t, 27.0, q.Fields["impliedVolatility"])

	q, err = f.client.GetQuote(ctx, QuoteRequest{Symbol: "TCS", Segment: SegmentOPT, OptionType: OptionPut, Strike: 2100})
	require.NoError(t, err)
	assert.Equal(t, 55.0, q.Fields["lastPrice"])

	q, err = f.client.GetQuote(ctx, QuoteRequest{Symbol: "TCS", Segment: SegmentOPT})
	require.NoError(t, err)
	assert.Equal(t, OptionCall, q.OptionType)
	assert.Equal(t, []float64{2100}, q.Strikes)
	assert.Equal(t, 30.0, q.Fields["lastPrice"])

	_, err = f.client.GetQuote(ctx, QuoteRequest{
		Symbol: "TCS", Segment: SegmentOPT, OptionType: OptionPut, Strike: 2100, Expiry: day0("2020-07-30"),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "no July put at 2100")
}

func TestGetQuoteInvalidSymbol(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")

	_, err := f.client.GetQuote(context.Background(), QuoteRequest{Symbol: "NOPE"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol)

	_, err = f.client.GetQuote(context.Background(), QuoteRequest{Symbol: "HDFC", Segment: SegmentFUT})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol, "HDFC is not in the F&O list")

	assert.Equal(t, 0, f.site.total())
}

func TestParseSegmentAndOptionType(t *testing.T) {
	seg, err := ParseSegment("fut")
	require.NoError(t, err)
	assert.Equal(t, SegmentFUT, seg)

	seg, err = ParseSegment("")
	require.NoError(t, err)
	assert.Equal(t, SegmentEQ, seg)

	_, err = ParseSegment("CASH")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	ot, err := ParseOptionType("pe")
	require.NoError(t, err)
	assert.Equal(t, OptionPut, ot)

	ot, err = ParseOptionType("Call")
	require.NoError(t, err)
	assert.Equal(t, OptionCall, ot)

	_, err = ParseOptionType("XX")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
