package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
)

// GetBhavcopy returns the equity bhavcopy of a day (default: latest trading day)
// GET /api/bhavcopy?date=2020-06-17&series=EQ
func (h *NSEHandler) GetBhavcopy(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	t, err := h.client.Bhavcopy(r.Context(), date, r.URL.Query().Get("series"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetBhavcopyFnO returns the F&O bhavcopy of a day
// GET /api/bhavcopy/fno?date=2020-06-17
func (h *NSEHandler) GetBhavcopyFnO(w http.ResponseWriter, r *http.Request) {
	h.daily(w, r, h.client.BhavcopyFnO)
}

// GetDelivery returns the security-wise delivery position of a day
// GET /api/delivery?date=2020-06-17
func (h *NSEHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	h.daily(w, r, h.client.DailyDelivery)
}

func (h *NSEHandler) daily(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, date time.Time) (*table.Table, error)) {
	date, err := dateParam(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	t, err := get(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetHistory returns daily OHLCV of a symbol or index
// GET /api/history/{symbol}?from=2020-01-01&to=2020-06-17
func (h *NSEHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	t, err := h.client.History(r.Context(), mux.Vars(r)["symbol"], from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetInsiderTrading returns insider trading disclosures
// GET /api/insider-trading?from=2020-03-01&to=2020-06-17
func (h *NSEHandler) GetInsiderTrading(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	t, err := h.client.InsiderTrading(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

func (h *NSEHandler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := dateParam(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return time.Time{}, time.Time{}, false
	}
	to, err := dateParam(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// GetFiiDii returns the latest FII/DII flows, or every stored day with history=true
// GET /api/fii-dii?history=true
func (h *NSEHandler) GetFiiDii(w http.ResponseWriter, r *http.Request) {
	history, err := boolParam(r, "history", false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if !history {
		rec, err := h.client.FiiDii(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
		return
	}

	rows, err := h.client.FlowHistory()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := nse.FlowTable(rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetStockWatch returns the F&O securities stock watch
// GET /api/stock-watch
func (h *NSEHandler) GetStockWatch(w http.ResponseWriter, r *http.Request) {
	t, err := h.client.EqStockWatch(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetCorpInfo returns the corporate information of a company
// GET /api/corp-info/{symbol}?month=June&cache=false
func (h *NSEHandler) GetCorpInfo(w http.ResponseWriter, r *http.Request) {
	useCache, err := boolParam(r, "cache", true)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ci, err := h.client.CorpInfo(r.Context(), mux.Vars(r)["symbol"], r.URL.Query().Get("month"), useCache)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make(map[string]interface{}, 4)
	for name, t := range ci.Tables() {
		out[name] = t.Frame()
	}
	respondJSON(w, http.StatusOK, out)
}

// GetTradingDays returns the known trading days
// GET /api/trading-days
func (h *NSEHandler) GetTradingDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.client.TradingDays(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format("2006-01-02")
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(out),
		"days":  out,
	})
}
