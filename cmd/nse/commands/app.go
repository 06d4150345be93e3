package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/internal/warehouse"
	"github.com/wonny/nsefeed/pkg/config"
	"github.com/wonny/nsefeed/pkg/database"
	"github.com/wonny/nsefeed/pkg/httputil"
	"github.com/wonny/nsefeed/pkg/logger"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *cache.Store
	client *nse.Client
	db     *database.DB    // nil without DATABASE_URL
	sink   *warehouse.Sink // nil without DATABASE_URL
	format OutputFormat
}

// newApp loads config and wires fetcher, cache, universe and client.
// The warehouse is connected when DATABASE_URL is set, and required by --export.
func newApp(ctx context.Context) (*app, error) {
	format, err := ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Endpoint table
	endpoints, err := config.LoadEndpoints(cfg.NSE.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}

	// 4. Store and symbol universe
	store := cache.NewStore(cfg.NSE.DataRoot, log)
	symbols, err := universe.Load(store, log)
	if err != nil {
		return nil, fmt.Errorf("load symbol lists: %w", err)
	}

	// 5. Client
	opts, err := nse.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := httputil.New(cfg, endpoints, log)
	client := nse.New(fetcher, endpoints, store, symbols, opts, log)

	a := &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		client: client,
		format: format,
	}

	// 6. Optional warehouse
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			if export {
				return nil, fmt.Errorf("connect to database: %w", err)
			}
			log.WithError(err).Warn("warehouse unavailable, continuing without export")
		} else {
			a.db = db
			a.sink = warehouse.New(db.Pool, log)
		}
	} else if export {
		return nil, fmt.Errorf("--export needs DATABASE_URL")
	}

	return a, nil
}

// close releases the database pool
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// emitTable prints t and, with --export, writes it to nse_<name> under snapshot
func (a *app) emitTable(ctx context.Context, name, snapshot string, t *table.Table) error {
	if err := WriteTable(os.Stdout, t, a.format); err != nil {
		return err
	}
	return a.exportTable(ctx, name, snapshot, t)
}

func (a *app) exportTable(ctx context.Context, name, snapshot string, t *table.Table) error {
	if !export || a.sink == nil {
		return nil
	}

	n, err := a.sink.WriteTable(ctx, name, snapshot, t)
	if err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	PrintInfo(os.Stderr, fmt.Sprintf("exported %d rows to %s (%s)", n, warehouse.TableName(name), snapshot))
	return nil
}

// emitValue prints a non-tabular result
func (a *app) emitValue(v any) error {
	return WriteValue(os.Stdout, v, a.format)
}

// liveSnapshot labels live data by the exchange wall clock
func (a *app) liveSnapshot() string {
	loc, err := a.cfg.NSE.Location()
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02T15:04:05")
}

// withApp runs fn with a wired app and releases it afterwards
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// parseDate reads an optional YYYY-MM-DD flag; empty means zero
func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, value)
	}
	return t, nil
}
