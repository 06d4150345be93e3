package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/internal/api/handlers"
	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/database"
	"github.com/wonny/nsefeed/pkg/logger"
)

// fakeClient answers every accessor with a one-row table and records the arguments
type fakeClient struct {
	err   error
	panic bool

	quote    nse.QuoteRequest
	index    string
	n        int
	date     time.Time
	from, to time.Time
	series   string
	useCache bool
	month    string
}

func (f *fakeClient) tbl() (*table.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, _ := table.New(table.StringColumn("symbol", []string{"SBIN"}), table.NumberColumn("close", []float64{186.5}))
	return t, nil
}

func (f *fakeClient) MarketStatus(ctx context.Context) (map[string]any, error) {
	if f.panic {
		panic("boom")
	}
	return map[string]any{"marketState": "Closed"}, f.err
}

func (f *fakeClient) Info(ctx context.Context, symbol string) (map[string]any, error) {
	return map[string]any{"symbol": symbol}, f.err
}

func (f *fakeClient) GetQuote(ctx context.Context, req nse.QuoteRequest) (*nse.Quote, error) {
	f.quote = req
	if f.err != nil {
		return nil, f.err
	}
	return &nse.Quote{Symbol: req.Symbol, Segment: req.Segment, Fields: map[string]any{"lastPrice": 22.0}}, nil
}

func (f *fakeClient) Bhavcopy(ctx context.Context, date time.Time, series string) (*table.Table, error) {
	f.date, f.series = date, series
	return f.tbl()
}

func (f *fakeClient) BhavcopyFnO(ctx context.Context, date time.Time) (*table.Table, error) {
	f.date = date
	return f.tbl()
}

func (f *fakeClient) PreOpen(ctx context.Context) (*table.Table, error) { return f.tbl() }

func (f *fakeClient) OptionChain(ctx context.Context, symbol string, date time.Time) (*nse.OptionChain, error) {
	f.date = date
	t, err := f.tbl()
	if err != nil {
		return nil, err
	}
	return &nse.OptionChain{Timestamp: "17-Jun-2020 15:30:00", Data: t, Expiries: []string{"25-Jun-2020"}}, nil
}

func (f *fakeClient) History(ctx context.Context, symbol string, from, to time.Time) (*table.Table, error) {
	f.from, f.to = from, to
	return f.tbl()
}

func (f *fakeClient) Indices(ctx context.Context, index string) (*table.Table, error) {
	f.index = index
	return f.tbl()
}

func (f *fakeClient) TopGainers(ctx context.Context, index string, n int) (*table.Table, error) {
	f.index, f.n = index, n
	return f.tbl()
}

func (f *fakeClient) TopLosers(ctx context.Context, index string, n int) (*table.Table, error) {
	f.index, f.n = index, n
	return f.tbl()
}

func (f *fakeClient) Advances(ctx context.Context, index string) (map[string]any, error) {
	f.index = index
	return map[string]any{"advances": "3"}, f.err
}

func (f *fakeClient) MostActive(ctx context.Context, kind nse.MostActive) (*table.Table, error) {
	f.index = string(kind)
	return f.tbl()
}

func (f *fakeClient) FiiDii(ctx context.Context) (*nse.FlowRecord, error) {
	return &nse.FlowRecord{Date: "2020-06-17", FIINet: -999.5}, f.err
}

func (f *fakeClient) FlowHistory() ([]nse.FlowRecord, error) {
	return []nse.FlowRecord{{Date: "2020-06-16"}, {Date: "2020-06-17", FIINet: -999.5}}, f.err
}

func (f *fakeClient) EqStockWatch(ctx context.Context) (*table.Table, error) { return f.tbl() }

func (f *fakeClient) DailyDelivery(ctx context.Context, date time.Time) (*table.Table, error) {
	f.date = date
	return f.tbl()
}

func (f *fakeClient) InsiderTrading(ctx context.Context, from, to time.Time) (*table.Table, error) {
	f.from, f.to = from, to
	return f.tbl()
}

func (f *fakeClient) CorpInfo(ctx context.Context, symbol, month string, useCache bool) (*nse.CorpInfo, error) {
	f.month, f.useCache = month, useCache
	t, err := f.tbl()
	if err != nil {
		return nil, err
	}
	return &nse.CorpInfo{ShareHoldingPatterns: t, FinancialResults: t, PledgeDetails: t, SastRegulations29: t}, nil
}

func (f *fakeClient) TradingDays(ctx context.Context) ([]time.Time, error) {
	return []time.Time{time.Date(2020, 6, 16, 0, 0, 0, 0, time.UTC), time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC)}, f.err
}

type fakeDB struct{ err error }

func (d fakeDB) HealthCheck(ctx context.Context) (*database.HealthStatus, error) {
	return &database.HealthStatus{Healthy: d.err == nil}, d.err
}

func newTestRouter(c *fakeClient, db handlers.HealthChecker) http.Handler {
	log := logger.NewNop()
	return NewRouter(handlers.NewNSEHandler(c, log), handlers.NewHealthHandler(db), log)
}

func get(t *testing.T, h http.Handler, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := get(t, newTestRouter(&fakeClient{}, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, newTestRouter(&fakeClient{}, fakeDB{err: errors.New("down")}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestTableResponse(t *testing.T) {
	c := &fakeClient{}
	rec, body := get(t, newTestRouter(c, nil), "/api/bhavcopy?date=2020-06-17&series=ALL")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []any{"symbol", "close"}, body["columns"])
	assert.Equal(t, []any{[]any{"SBIN", 186.5}}, body["rows"])
	assert.Equal(t, time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC), c.date)
	assert.Equal(t, "ALL", c.series)
}

func TestQuoteParameters(t *testing.T) {
	c := &fakeClient{}
	rec, body := get(t, newTestRouter(c, nil), "/api/quote/TCS?segment=opt&type=PE&strike=2000&expiry=2020-06-25")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, nse.QuoteRequest{
		Symbol:     "TCS",
		Segment:    nse.SegmentOPT,
		Expiry:     time.Date(2020, 6, 25, 0, 0, 0, 0, time.UTC),
		OptionType: nse.OptionPut,
		Strike:     2000,
	}, c.quote)
	assert.Equal(t, "TCS", body["symbol"])

	rec, _ = get(t, newTestRouter(c, nil), "/api/quote/TCS?segment=swap")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoversDefaults(t *testing.T) {
	c := &fakeClient{}
	h := newTestRouter(c, nil)

	rec, _ := get(t, h, "/api/gainers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FnO", c.index)
	assert.Equal(t, 10, c.n)

	rec, _ = get(t, h, "/api/losers?index=NiftyBank&n=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NiftyBank", c.index)
	assert.Equal(t, 3, c.n)

	rec, _ = get(t, h, "/api/losers?n=many")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", apperrors.ErrInvalidSymbol), http.StatusBadRequest},
		{apperrors.ErrInvalidDateRange, http.StatusBadRequest},
		{apperrors.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("bhavcopy: %w", apperrors.ErrSchemaMismatch), http.StatusBadGateway},
		{fmt.Errorf("hist: %w", apperrors.ErrConnectivity), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec, body := get(t, newTestRouter(&fakeClient{err: tt.err}, nil), "/api/history/SBIN")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestBadDateIsRejected(t *testing.T) {
	rec, body := get(t, newTestRouter(&fakeClient{}, nil), "/api/history/SBIN?from=17-06-2020")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "YYYY-MM-DD")
}

func TestFiiDiiHistory(t *testing.T) {
	h := newTestRouter(&fakeClient{}, nil)

	rec, body := get(t, h, "/api/fii-dii")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -999.5, body["fiiNetValue"])

	rec, body = get(t, h, "/api/fii-dii?history=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["rows"], 2)
	assert.Equal(t, []any{"date"}, body["index"])
}

func TestCorpInfoAndTradingDays(t *testing.T) {
	c := &fakeClient{}
	h := newTestRouter(c, nil)

	rec, body := get(t, h, "/api/corp-info/TCS?month=May&cache=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 4)
	assert.Equal(t, "May", c.month)
	assert.False(t, c.useCache)

	rec, body = get(t, h, "/api/trading-days")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2020-06-16", "2020-06-17"}, body["days"])
}

func TestOptionChainAndMostActive(t *testing.T) {
	c := &fakeClient{}
	h := newTestRouter(c, nil)

	rec, body := get(t, h, "/api/option-chain/NIFTY")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "17-Jun-2020 15:30:00", body["timestamp"])
	assert.True(t, c.date.IsZero())

	rec, _ = get(t, h, "/api/most-active/puts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "puts", c.index)

	rec, _ = get(t, h, "/api/most-active/bonds")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteAndPanic(t *testing.T) {
	rec, _ := get(t, newTestRouter(&fakeClient{}, nil), "/api/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := get(t, newTestRouter(&fakeClient{panic: true}, nil), "/api/market-status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}
