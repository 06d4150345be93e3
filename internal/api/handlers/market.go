package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
)

const defaultMoversLength = 10

// GetMarketStatus returns the market status payload
// GET /api/market-status
func (h *NSEHandler) GetMarketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.client.MarketStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetInfo returns the equity information of a symbol
// GET /api/info/{symbol}
func (h *NSEHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.client.Info(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// GetQuote returns a live quote
// GET /api/quote/{symbol}?segment=EQ|FUT|OPT&expiry=2020-06-25&type=CE|PE&strike=2000
func (h *NSEHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	req, err := quoteRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	quote, err := h.client.GetQuote(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func quoteRequest(r *http.Request) (nse.QuoteRequest, error) {
	segment, err := nse.ParseSegment(r.URL.Query().Get("segment"))
	if err != nil {
		return nse.QuoteRequest{}, err
	}
	req := nse.QuoteRequest{Symbol: mux.Vars(r)["symbol"], Segment: segment}

	if req.Expiry, err = dateParam(r, "expiry"); err != nil {
		return nse.QuoteRequest{}, err
	}
	if req.Strike, err = floatParam(r, "strike"); err != nil {
		return nse.QuoteRequest{}, err
	}
	if segment == nse.SegmentOPT {
		if req.OptionType, err = nse.ParseOptionType(r.URL.Query().Get("type")); err != nil {
			return nse.QuoteRequest{}, err
		}
	}
	return req, nil
}

// GetOptionChain returns the option chain of an underlying
// GET /api/option-chain/{symbol}?date=2020-06-17
func (h *NSEHandler) GetOptionChain(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	oc, err := h.client.OptionChain(r.Context(), mux.Vars(r)["symbol"], date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp": oc.Timestamp,
		"expiries":  oc.Expiries,
		"data":      oc.Data.Frame(),
	})
}

// GetPreOpen returns the pre-open session
// GET /api/pre-open
func (h *NSEHandler) GetPreOpen(w http.ResponseWriter, r *http.Request) {
	t, err := h.client.PreOpen(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetIndices returns live index values
// GET /api/indices?index=NiftyBank
func (h *NSEHandler) GetIndices(w http.ResponseWriter, r *http.Request) {
	t, err := h.client.Indices(r.Context(), r.URL.Query().Get("index"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetGainers returns the top gainers of an index
// GET /api/gainers?index=FnO&n=10
func (h *NSEHandler) GetGainers(w http.ResponseWriter, r *http.Request) {
	h.movers(w, r, h.client.TopGainers)
}

// GetLosers returns the top losers of an index
// GET /api/losers?index=FnO&n=10
func (h *NSEHandler) GetLosers(w http.ResponseWriter, r *http.Request) {
	h.movers(w, r, h.client.TopLosers)
}

func (h *NSEHandler) movers(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, index string, n int) (*table.Table, error)) {
	n, err := intParam(r, "n", defaultMoversLength)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	t, err := get(r.Context(), queryOr(r, "index", universe.FnO.Name), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}

// GetAdvances returns the advance/decline counts of an index
// GET /api/advances?index=Nifty50
func (h *NSEHandler) GetAdvances(w http.ResponseWriter, r *http.Request) {
	adv, err := h.client.Advances(r.Context(), queryOr(r, "index", universe.FnO.Name))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, adv)
}

// GetMostActive returns a most-active list
// GET /api/most-active/{kind}
func (h *NSEHandler) GetMostActive(w http.ResponseWriter, r *http.Request) {
	kind, err := nse.ParseMostActive(strings.TrimSpace(mux.Vars(r)["kind"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	t, err := h.client.MostActive(r.Context(), kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondTable(w, t)
}
