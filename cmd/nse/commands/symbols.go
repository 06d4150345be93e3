package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/nsefeed/internal/universe"
)

// symbolsCmd represents the symbols command
var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Index membership lists",
	Long: `Index membership lists used to validate symbols.

Subcommands:
  refresh  - download one list, or every list when no index is given
  list     - print a stored list

Example:
  go run ./cmd/nse symbols refresh
  go run ./cmd/nse symbols refresh NiftyBank
  go run ./cmd/nse symbols list FnO`,
}

var (
	symbolsRefreshCmd = &cobra.Command{
		Use:   "refresh [index]",
		Short: "Download index membership lists",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSymbolsRefresh,
	}

	symbolsListCmd = &cobra.Command{
		Use:   "list [index]",
		Short: "Print a stored membership list (default All)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSymbolsList,
	}
)

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.AddCommand(symbolsRefreshCmd)
	symbolsCmd.AddCommand(symbolsListCmd)
}

func runSymbolsRefresh(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		if len(args) == 1 {
			symbols, err := a.client.RefreshSymbols(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			PrintSuccess(os.Stdout, fmt.Sprintf("%s: %d symbols", args[0], len(symbols)))
			return nil
		}

		counts, err := a.client.UpdateSymbolList(cmd.Context())
		printCounts(counts)
		if err != nil {
			return fmt.Errorf("symbol refresh stopped after %d of %d lists: %w", len(counts), len(universe.Indices()), err)
		}
		PrintSuccess(os.Stdout, fmt.Sprintf("%d lists refreshed", len(counts)))
		return nil
	})
}

func printCounts(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		PrintKeyValue(os.Stdout, name, fmt.Sprint(counts[name]), 18)
	}
}

func runSymbolsList(cmd *cobra.Command, args []string) error {
	name := universe.All.Name
	if len(args) == 1 {
		name = args[0]
	}
	idx, err := universe.ParseIndex(name)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(universe.IndexValues(), ", "))
	}

	return withApp(cmd.Context(), func(a *app) error {
		symbols := a.client.Universe().Symbols(idx)
		if a.format == FormatTable {
			PrintList(os.Stdout, symbols)
			return nil
		}
		return a.emitValue(symbols)
	})
}
