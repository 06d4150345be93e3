package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/nse"
	"github.com/wonny/nsefeed/internal/table"
)

// Archive and report commands
var (
	bhavcopyCmd = &cobra.Command{
		Use:   "bhavcopy",
		Short: "Equity bhavcopy of a trading day",
		Long: `Equity bhavcopy (end-of-day prices) of a trading day.

Without --date the latest trading day is used. Archives are stored once and
read from the data directory afterwards.

Example:
  go run ./cmd/nse bhavcopy
  go run ./cmd/nse bhavcopy --date 2024-06-14 --series ALL -o csv`,
		Args: cobra.NoArgs,
		RunE: runBhavcopy,
	}

	bhavcopyFnOCmd = &cobra.Command{
		Use:   "bhavcopy-fno",
		Short: "F&O bhavcopy of a trading day",
		Args:  cobra.NoArgs,
		RunE:  runBhavcopyFnO,
	}

	deliveryCmd = &cobra.Command{
		Use:   "delivery",
		Short: "Security-wise delivery positions of a trading day",
		Args:  cobra.NoArgs,
		RunE:  runDelivery,
	}

	histCmd = &cobra.Command{
		Use:   "hist [symbol]",
		Short: "Daily history of an equity or index",
		Long: `Daily history of an equity or index between --from and --to inclusive.

Long ranges are split into windows the exchange accepts and downloaded with a
pause in between. Without dates the last 30 days are returned.

Example:
  go run ./cmd/nse hist SBIN --from 2023-01-01 --to 2023-12-31
  go run ./cmd/nse hist "NIFTY 50" --from 2024-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: runHist,
	}

	fiiDiiCmd = &cobra.Command{
		Use:   "fii-dii",
		Short: "FII/FPI and DII cash market activity",
		Args:  cobra.NoArgs,
		RunE:  runFiiDii,
	}

	stockWatchCmd = &cobra.Command{
		Use:   "stock-watch",
		Short: "F&O equity stock watch",
		Args:  cobra.NoArgs,
		RunE:  runStockWatch,
	}

	insiderCmd = &cobra.Command{
		Use:   "insider",
		Short: "Insider trading disclosures",
		Args:  cobra.NoArgs,
		RunE:  runInsider,
	}

	corpInfoCmd = &cobra.Command{
		Use:   "corp-info [symbol]",
		Short: "Shareholding, results, pledges and SAST filings of a company",
		Args:  cobra.ExactArgs(1),
		RunE:  runCorpInfo,
	}

	tradingDaysCmd = &cobra.Command{
		Use:   "trading-days",
		Short: "Known trading days, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runTradingDays,
	}
)

var (
	// Date flags
	reportDate string
	fromDate   string
	toDate     string

	bhavcopySeries string
	fiiDiiHistory  bool
	corpInfoMonth  string
	corpInfoFresh  bool
)

func init() {
	rootCmd.AddCommand(bhavcopyCmd, bhavcopyFnOCmd, deliveryCmd, histCmd, fiiDiiCmd,
		stockWatchCmd, insiderCmd, corpInfoCmd, tradingDaysCmd)

	for _, c := range []*cobra.Command{bhavcopyCmd, bhavcopyFnOCmd, deliveryCmd} {
		c.Flags().StringVar(&reportDate, "date", "", "trading day (YYYY-MM-DD, default latest)")
	}
	bhavcopyCmd.Flags().StringVar(&bhavcopySeries, "series", "EQ", "series to keep (ALL for every series)")

	for _, c := range []*cobra.Command{histCmd, insiderCmd} {
		c.Flags().StringVar(&fromDate, "from", "", "first day (YYYY-MM-DD)")
		c.Flags().StringVar(&toDate, "to", "", "last day (YYYY-MM-DD, default today)")
	}

	fiiDiiCmd.Flags().BoolVar(&fiiDiiHistory, "history", false, "print every stored day")

	corpInfoCmd.Flags().StringVar(&corpInfoMonth, "month", "", "snapshot month (e.g. June, default current)")
	corpInfoCmd.Flags().BoolVar(&corpInfoFresh, "no-cache", false, "download without reading or storing a snapshot")
}

// tradingDay resolves an optional --date to a concrete trading day
func (a *app) tradingDay(ctx context.Context, flag string) (time.Time, error) {
	date, err := parseDate("date", flag)
	if err != nil {
		return time.Time{}, err
	}
	if date.IsZero() {
		return a.client.LatestTradingDay(ctx)
	}
	return date, nil
}

// dailyReport runs a per-day archive accessor and emits it labelled by its date
func dailyReport(cmd *cobra.Command, name string, fetch func(ctx context.Context, a *app, date time.Time) (*table.Table, error)) error {
	return withApp(cmd.Context(), func(a *app) error {
		date, err := a.tradingDay(cmd.Context(), reportDate)
		if err != nil {
			return err
		}
		t, err := fetch(cmd.Context(), a, date)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), name, cache.Date(date), t)
	})
}

func runBhavcopy(cmd *cobra.Command, args []string) error {
	return dailyReport(cmd, "bhavcopy_eq", func(ctx context.Context, a *app, date time.Time) (*table.Table, error) {
		return a.client.Bhavcopy(ctx, date, bhavcopySeries)
	})
}

func runBhavcopyFnO(cmd *cobra.Command, args []string) error {
	return dailyReport(cmd, "bhavcopy_fno", func(ctx context.Context, a *app, date time.Time) (*table.Table, error) {
		return a.client.BhavcopyFnO(ctx, date)
	})
}

func runDelivery(cmd *cobra.Command, args []string) error {
	return dailyReport(cmd, "daily_delivery", func(ctx context.Context, a *app, date time.Time) (*table.Table, error) {
		return a.client.DailyDelivery(ctx, date)
	})
}

func runHist(cmd *cobra.Command, args []string) error {
	from, err := parseDate("from", fromDate)
	if err != nil {
		return err
	}
	to, err := parseDate("to", toDate)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.History(cmd.Context(), args[0], from, to)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "history", strings.ToUpper(args[0]), t)
	})
}

func runFiiDii(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		var (
			rows     []nse.FlowRecord
			snapshot string
		)
		if fiiDiiHistory {
			history, err := a.client.FlowHistory()
			if err != nil {
				return err
			}
			rows, snapshot = history, "history"
		} else {
			latest, err := a.client.FiiDii(cmd.Context())
			if err != nil {
				return err
			}
			rows, snapshot = []nse.FlowRecord{*latest}, latest.Date
		}

		t, err := nse.FlowTable(rows)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "fii_dii", snapshot, t)
	})
}

func runStockWatch(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.EqStockWatch(cmd.Context())
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "eq_stock_watch", a.liveSnapshot(), t)
	})
}

func runInsider(cmd *cobra.Command, args []string) error {
	from, err := parseDate("from", fromDate)
	if err != nil {
		return err
	}
	to, err := parseDate("to", toDate)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.InsiderTrading(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "insider_trading", rangeLabel(fromDate, toDate), t)
	})
}

// rangeLabel names a --from/--to pair; unset ends read as "default"
func rangeLabel(from, to string) string {
	if from == "" {
		from = "default"
	}
	if to == "" {
		to = "default"
	}
	return from + ".." + to
}

func runCorpInfo(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		ci, err := a.client.CorpInfo(cmd.Context(), args[0], corpInfoMonth, !corpInfoFresh)
		if err != nil {
			return err
		}

		tables := ci.Tables()
		if a.format == FormatJSON {
			frames := make(map[string]table.Frame, len(tables))
			for name, t := range tables {
				frames[name] = t.Frame()
			}
			return a.emitValue(frames)
		}

		names := make([]string, 0, len(tables))
		for name := range tables {
			names = append(names, name)
		}
		sort.Strings(names)

		snapshot := strings.ToUpper(args[0])
		for _, name := range names {
			PrintSeparator(os.Stdout)
			fmt.Fprintln(os.Stdout, name)
			PrintSeparator(os.Stdout)
			if err := a.emitTable(cmd.Context(), "corp_info_"+name, snapshot, tables[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

func runTradingDays(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		days, err := a.client.TradingDays(cmd.Context())
		if err != nil {
			return err
		}
		t, err := table.New(table.DateColumn("date", days))
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "trading_days", "all", t)
	})
}
