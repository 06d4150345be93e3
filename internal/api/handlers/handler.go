package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/logger"
)

// Client is the NSE accessor surface served over HTTP; *nse.Client implements it
type Client interface {
	MarketStatus(ctx context.Context) (map[string]any, error)
	Info(ctx context.Context, symbol string) (map[string]any, error)
	GetQuote(ctx context.Context, req nse.QuoteRequest) (*nse.Quote, error)
	Bhavcopy(ctx context.Context, date time.Time, series string) (*table.Table, error)
	BhavcopyFnO(ctx context.Context, date time.Time) (*table.Table, error)
	PreOpen(ctx context.Context) (*table.Table, error)
	OptionChain(ctx context.Context, symbol string, date time.Time) (*nse.OptionChain, error)
	History(ctx context.Context, symbol string, from, to time.Time) (*table.Table, error)
	Indices(ctx context.Context, index string) (*table.Table, error)
	TopGainers(ctx context.Context, index string, n int) (*table.Table, error)
	TopLosers(ctx context.Context, index string, n int) (*table.Table, error)
	Advances(ctx context.Context, index string) (map[string]any, error)
	MostActive(ctx context.Context, kind nse.MostActive) (*table.Table, error)
	FiiDii(ctx context.Context) (*nse.FlowRecord, error)
	FlowHistory() ([]nse.FlowRecord, error)
	EqStockWatch(ctx context.Context) (*table.Table, error)
	DailyDelivery(ctx context.Context, date time.Time) (*table.Table, error)
	InsiderTrading(ctx context.Context, from, to time.Time) (*table.Table, error)
	CorpInfo(ctx context.Context, symbol, month string, useCache bool) (*nse.CorpInfo, error)
	TradingDays(ctx context.Context) ([]time.Time, error)
}

// NSEHandler serves the exchange resources
// ⭐ SSOT: NSE API handlers live only on this struct
type NSEHandler struct {
	client Client
	logger *logger.Logger
}

// NewNSEHandler creates a new handler
func NewNSEHandler(client Client, log *logger.Logger) *NSEHandler {
	return &NSEHandler{
		client: client,
		logger: log.Component("api"),
	}
}

// fail logs err and answers with the status its kind maps to
func (h *NSEHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	log := h.logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}
	respondError(w, status, err.Error())
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidSymbol),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrSchemaMismatch):
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrConnectivity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondTable(w http.ResponseWriter, t *table.Table) {
	respondJSON(w, http.StatusOK, t.Frame())
}

// dateParam reads a YYYY-MM-DD query parameter; absent means zero
func dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", apperrors.ErrInvalidArgument, name, v)
	}
	return d, nil
}

// intParam reads a positive integer query parameter
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", apperrors.ErrInvalidArgument, name, v)
	}
	return n, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", apperrors.ErrInvalidArgument, name, v)
	}
	return f, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false, got %q", apperrors.ErrInvalidArgument, name, v)
	}
	return b, nil
}

func queryOr(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}
