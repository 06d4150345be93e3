// Package nse exposes one accessor per exchange resource. Each accessor works out
// its cache key, serves a hit from the store, and otherwise fetches, parses,
// post-processes and stores the result.
package nse

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/chunker"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/config"
	"github.com/wonny/nsefeed/pkg/httputil"
	"github.com/wonny/nsefeed/pkg/logger"
)

const day = 24 * time.Hour

// Fetcher is the transport the accessors depend on
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts httputil.FetchOptions) ([]byte, error)
}

// Options holds the clock and pacing settings of a Client
type Options struct {
	Location        *time.Location
	MarketClose     time.Duration // offset from midnight
	CalendarCutoff  time.Duration
	ReferenceSymbol string
	ChunkDelay      time.Duration
	RefreshDelay    time.Duration
	Now             func() time.Time
}

// OptionsFromConfig resolves timezone and clock strings of cfg
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.NSE.Location()
	if err != nil {
		return Options{}, err
	}
	closeAt, err := config.ParseClock(cfg.NSE.MarketClose)
	if err != nil {
		return Options{}, fmt.Errorf("market close: %w", err)
	}
	cutoff, err := config.ParseClock(cfg.NSE.CalendarCutoff)
	if err != nil {
		return Options{}, fmt.Errorf("calendar cutoff: %w", err)
	}

	return Options{
		Location:        loc,
		MarketClose:     closeAt,
		CalendarCutoff:  cutoff,
		ReferenceSymbol: cfg.NSE.ReferenceSymbol,
		ChunkDelay:      cfg.NSE.ChunkDelay,
		RefreshDelay:    cfg.NSE.RefreshDelay,
		Now:             time.Now,
	}, nil
}

// Client is the resource accessor
// ⭐ SSOT: every exchange resource is read through this client
type Client struct {
	fetcher   Fetcher
	endpoints *config.Endpoints
	store     *cache.Store
	symbols   *universe.Universe
	chunker   *chunker.Chunker
	calendar  *calendar.Tracker
	opts      Options
	logger    *logger.Logger
}

// New wires a client. The trading calendar is kept with this client's own
// equity history of the reference symbol.
func New(fetcher Fetcher, endpoints *config.Endpoints, store *cache.Store, symbols *universe.Universe, opts Options, log *logger.Logger) *Client {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReferenceSymbol == "" {
		opts.ReferenceSymbol = "SBIN"
	}

	c := &Client{
		fetcher:   fetcher,
		endpoints: endpoints,
		store:     store,
		symbols:   symbols,
		chunker:   chunker.New(opts.ChunkDelay, log),
		opts:      opts,
		logger:    log.Component("nse"),
	}
	c.calendar = calendar.New(store, c.tradedDates, calendar.Options{
		Location:        opts.Location,
		Cutoff:          opts.CalendarCutoff,
		ReferenceSymbol: opts.ReferenceSymbol,
		Now:             opts.Now,
	}, log)
	return c
}

// Universe returns the symbol lists used for validation
func (c *Client) Universe() *universe.Universe {
	return c.symbols
}

// now is the current exchange-local time
func (c *Client) now() time.Time {
	return c.calendar.Now()
}

// today is the current exchange date as a civil date
func (c *Client) today() time.Time {
	return c.calendar.Today()
}

// afterClose reports whether t (exchange-local) is past the market close
func (c *Client) afterClose(t time.Time) bool {
	return calendar.SinceMidnight(t) > c.opts.MarketClose
}

// dateOrLatest defaults an unset date to the latest trading day
func (c *Client) dateOrLatest(ctx context.Context, date time.Time) (time.Time, error) {
	if !date.IsZero() {
		return calendar.Civil(date), nil
	}
	return c.calendar.LatestTradingDay(ctx)
}

// TradingDays returns the persisted trading days after bringing them up to date
func (c *Client) TradingDays(ctx context.Context) ([]time.Time, error) {
	if _, err := c.calendar.LatestTradingDay(ctx); err != nil {
		return nil, err
	}
	return c.calendar.Days()
}

// LatestTradingDay is the most recent trading day known to the calendar
func (c *Client) LatestTradingDay(ctx context.Context) (time.Time, error) {
	return c.calendar.LatestTradingDay(ctx)
}

// newLimiter allows one request per delay; zero disables pacing
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// dedupe keeps the first occurrence of every value, preserving order
func dedupe[T comparable](items []T) []T {
	seen := make(map[T]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
