package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/nsefeed/internal/api/handlers"
	"github.com/wonny/nsefeed/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are only configured in this function
func NewRouter(nseHandler *handlers.NSEHandler, healthHandler *handlers.HealthHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthHandler.GetHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Live market
	api.HandleFunc("/market-status", nseHandler.GetMarketStatus).Methods("GET")
	api.HandleFunc("/info/{symbol}", nseHandler.GetInfo).Methods("GET")
	api.HandleFunc("/quote/{symbol}", nseHandler.GetQuote).Methods("GET")
	api.HandleFunc("/option-chain/{symbol}", nseHandler.GetOptionChain).Methods("GET")
	api.HandleFunc("/pre-open", nseHandler.GetPreOpen).Methods("GET")
	api.HandleFunc("/indices", nseHandler.GetIndices).Methods("GET")
	api.HandleFunc("/gainers", nseHandler.GetGainers).Methods("GET")
	api.HandleFunc("/losers", nseHandler.GetLosers).Methods("GET")
	api.HandleFunc("/advances", nseHandler.GetAdvances).Methods("GET")
	api.HandleFunc("/most-active/{kind}", nseHandler.GetMostActive).Methods("GET")
	api.HandleFunc("/stock-watch", nseHandler.GetStockWatch).Methods("GET")

	// Reports and archives
	api.HandleFunc("/bhavcopy", nseHandler.GetBhavcopy).Methods("GET")
	api.HandleFunc("/bhavcopy/fno", nseHandler.GetBhavcopyFnO).Methods("GET")
	api.HandleFunc("/delivery", nseHandler.GetDelivery).Methods("GET")
	api.HandleFunc("/history/{symbol}", nseHandler.GetHistory).Methods("GET")
	api.HandleFunc("/fii-dii", nseHandler.GetFiiDii).Methods("GET")
	api.HandleFunc("/insider-trading", nseHandler.GetInsiderTrading).Methods("GET")
	api.HandleFunc("/corp-info/{symbol}", nseHandler.GetCorpInfo).Methods("GET")
	api.HandleFunc("/trading-days", nseHandler.GetTradingDays).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "no route for " + r.URL.Path,
	})
}

// statusRecorder captures the status written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
