package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/nsefeed/internal/nse"
)

// Live market commands
var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Market status of every segment",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	infoCmd = &cobra.Command{
		Use:   "info [symbol]",
		Short: "Company and listing details of an equity",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	quoteCmd = &cobra.Command{
		Use:   "quote [symbol]",
		Short: "Live quote of an equity, future or option",
		Long: `Live quote of an equity, future or option.

Futures and options pick the first listed expiry (and strike) when none is
given or when the requested one is not listed.

Example:
  go run ./cmd/nse quote SBIN
  go run ./cmd/nse quote TCS --segment fut --expiry 2024-06-27
  go run ./cmd/nse quote NIFTY --segment opt --type pe --strike 22000`,
		Args: cobra.ExactArgs(1),
		RunE: runQuote,
	}

	preOpenCmd = &cobra.Command{
		Use:   "pre-open",
		Short: "Pre-open session of the F&O securities",
		Args:  cobra.NoArgs,
		RunE:  runPreOpen,
	}

	optionChainCmd = &cobra.Command{
		Use:   "option-chain [symbol]",
		Short: "Option chain of an underlying",
		Long: `Option chain of an underlying.

Without --date the freshest chain is downloaded: intraday every call stores a
new timestamped snapshot, after the close the day's eod snapshot is reused.
A past --date is read from the data directory only.`,
		Args: cobra.ExactArgs(1),
		RunE: runOptionChain,
	}

	indicesCmd = &cobra.Command{
		Use:   "indices",
		Short: "Live value of every index",
		Args:  cobra.NoArgs,
		RunE:  runIndices,
	}

	gainersCmd = &cobra.Command{
		Use:   "gainers",
		Short: "Top gainers of an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMovers(cmd, true)
		},
	}

	losersCmd = &cobra.Command{
		Use:   "losers",
		Short: "Top losers of an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMovers(cmd, false)
		},
	}

	advancesCmd = &cobra.Command{
		Use:   "advances",
		Short: "Advance/decline counts of an index",
		Args:  cobra.NoArgs,
		RunE:  runAdvances,
	}

	mostActiveCmd = &cobra.Command{
		Use:   "most-active [eq|allfno|options|futures|calls|puts|oi]",
		Short: "Most active securities or contracts",
		Args:  cobra.ExactArgs(1),
		RunE:  runMostActive,
	}
)

var (
	// Quote flags
	quoteSegment string
	quoteExpiry  string
	quoteType    string
	quoteStrike  float64

	// Option chain flags
	optionChainDate string

	// Index flags
	indicesOnly string
	indexName   string
	moversN     int
)

func init() {
	rootCmd.AddCommand(statusCmd, infoCmd, quoteCmd, preOpenCmd, optionChainCmd,
		indicesCmd, gainersCmd, losersCmd, advancesCmd, mostActiveCmd)

	quoteCmd.Flags().StringVar(&quoteSegment, "segment", "eq", "eq, fut or opt")
	quoteCmd.Flags().StringVar(&quoteExpiry, "expiry", "", "contract expiry (YYYY-MM-DD)")
	quoteCmd.Flags().StringVar(&quoteType, "type", "ce", "option side (ce|pe)")
	quoteCmd.Flags().Float64Var(&quoteStrike, "strike", 0, "option strike price")

	optionChainCmd.Flags().StringVar(&optionChainDate, "date", "", "stored session to read (YYYY-MM-DD)")

	indicesCmd.Flags().StringVar(&indicesOnly, "index", "", "only this index (e.g. NiftyBank)")
	for _, c := range []*cobra.Command{gainersCmd, losersCmd, advancesCmd} {
		c.Flags().StringVar(&indexName, "index", "FnO", "index (e.g. Nifty50, NiftyBank)")
	}
	gainersCmd.Flags().IntVarP(&moversN, "number", "n", 10, "number of rows")
	losersCmd.Flags().IntVarP(&moversN, "number", "n", 10, "number of rows")
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		status, err := a.client.MarketStatus(cmd.Context())
		if err != nil {
			return err
		}
		return a.emitValue(status)
	})
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		info, err := a.client.Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.emitValue(info)
	})
}

func runQuote(cmd *cobra.Command, args []string) error {
	req, err := buildQuoteRequest(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		q, err := a.client.GetQuote(cmd.Context(), req)
		if err != nil {
			return err
		}
		if a.format != FormatTable {
			return a.emitValue(q)
		}

		PrintKeyValue(os.Stdout, "symbol", q.Symbol, 10)
		PrintKeyValue(os.Stdout, "segment", string(q.Segment), 10)
		PrintKeyValue(os.Stdout, "timestamp", q.Timestamp.Format("2006-01-02 15:04:05"), 10)
		if q.Expiry != nil {
			PrintKeyValue(os.Stdout, "expiry", q.Expiry.Format("2006-01-02"), 10)
		}
		if q.Segment == nse.SegmentOPT {
			PrintKeyValue(os.Stdout, "option", fmt.Sprintf("%s %g", q.OptionType, q.Strike), 10)
		}
		PrintSeparator(os.Stdout)
		return a.emitValue(q.Fields)
	})
}

func buildQuoteRequest(symbol string) (nse.QuoteRequest, error) {
	segment, err := nse.ParseSegment(quoteSegment)
	if err != nil {
		return nse.QuoteRequest{}, err
	}
	expiry, err := parseDate("expiry", quoteExpiry)
	if err != nil {
		return nse.QuoteRequest{}, err
	}

	req := nse.QuoteRequest{Symbol: symbol, Segment: segment, Expiry: expiry}
	if segment == nse.SegmentOPT {
		if req.OptionType, err = nse.ParseOptionType(quoteType); err != nil {
			return nse.QuoteRequest{}, err
		}
		req.Strike = quoteStrike
	}
	return req, nil
}

func runPreOpen(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.PreOpen(cmd.Context())
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "pre_open", a.liveSnapshot(), t)
	})
}

func runOptionChain(cmd *cobra.Command, args []string) error {
	date, err := parseDate("date", optionChainDate)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		oc, err := a.client.OptionChain(cmd.Context(), args[0], date)
		if err != nil {
			return err
		}
		PrintInfo(os.Stderr, fmt.Sprintf("%s as of %s, expiries: %s",
			strings.ToUpper(args[0]), oc.Timestamp, strings.Join(oc.Expiries, ", ")))

		snapshot := strings.ToUpper(args[0]) + " " + oc.Timestamp
		return a.emitTable(cmd.Context(), "option_chain", snapshot, oc.Data)
	})
}

func runIndices(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.Indices(cmd.Context(), indicesOnly)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), "indices", a.liveSnapshot(), t)
	})
}

func runMovers(cmd *cobra.Command, gainers bool) error {
	return withApp(cmd.Context(), func(a *app) error {
		fetch, name := a.client.TopLosers, "top_losers"
		if gainers {
			fetch, name = a.client.TopGainers, "top_gainers"
		}

		t, err := fetch(cmd.Context(), indexName, moversN)
		if err != nil {
			return err
		}
		return a.emitTable(cmd.Context(), name, indexName+" "+a.liveSnapshot(), t)
	})
}

func runAdvances(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		adv, err := a.client.Advances(cmd.Context(), indexName)
		if err != nil {
			return err
		}
		return a.emitValue(adv)
	})
}

func runMostActive(cmd *cobra.Command, args []string) error {
	kind, err := nse.ParseMostActive(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		t, err := a.client.MostActive(cmd.Context(), kind)
		if err != nil {
			return err
		}
		name := "most_active_" + strings.ToLower(args[0])
		return a.emitTable(cmd.Context(), name, a.liveSnapshot(), t)
	})
}
