// Package universe holds the symbol lists behind every index grouping.
// Lists are persisted snapshots; refreshing them is the caller's job.
package universe

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/pkg/logger"
)

//go:embed seed.json
var seedData []byte

// Universe is the in-memory view of the persisted symbol snapshots
// ⭐ SSOT: symbol membership checks read from here
type Universe struct {
	store  *cache.Store
	logger *logger.Logger

	mu    sync.RWMutex
	lists map[string][]string // by Index.Name
}

// Load reads every snapshot from the store. Missing snapshots fall back to the
// embedded seed: seeded lists directly, All as the union of the seeded lists.
func Load(store *cache.Store, log *logger.Logger) (*Universe, error) {
	seed := map[string][]string{}
	if err := json.Unmarshal(seedData, &seed); err != nil {
		return nil, fmt.Errorf("decode symbol seed: %w", err)
	}
	seeds := make([][]string, 0, len(seed))
	for _, list := range seed {
		seeds = append(seeds, list)
	}
	seed[All.Name] = union(seeds...)

	u := &Universe{
		store:  store,
		logger: log.Component("universe"),
		lists:  make(map[string][]string, len(indices)),
	}

	seeded := 0
	for _, idx := range indices {
		var symbols []string
		found, err := store.Get(cache.SymbolListKey(idx.Name), &symbols)
		if err != nil {
			return nil, err
		}
		if !found {
			symbols = seed[idx.Name]
			if len(symbols) > 0 {
				seeded++
			}
		}
		u.lists[idx.Name] = union(symbols)
	}

	if seeded > 0 {
		u.logger.WithField("lists", seeded).Info("using embedded symbol seed, run a refresh for full lists")
	}
	return u, nil
}

// Symbols returns a copy of the list for idx
func (u *Universe) Symbols(idx Index) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]string(nil), u.lists[idx.Name]...)
}

// Replace sorts, persists and swaps in a new list for idx
func (u *Universe) Replace(idx Index, symbols []string) error {
	list := union(symbols)
	if err := u.store.Set(cache.SymbolListKey(idx.Name), list); err != nil {
		return fmt.Errorf("save %s symbols: %w", idx.Name, err)
	}

	u.mu.Lock()
	u.lists[idx.Name] = list
	u.mu.Unlock()

	u.logger.WithFields(map[string]interface{}{
		"index":   idx.Name,
		"symbols": len(list),
	}).Info("symbol list replaced")
	return nil
}

// EquitySymbols is every listed equity plus every index value
func (u *Universe) EquitySymbols() []string {
	return union(u.Symbols(All), IndexValues())
}

// DerivativeSymbols is the FnO list plus the two index futures
func (u *Universe) DerivativeSymbols() []string {
	return union(u.Symbols(FnO), []string{"NIFTY", "BANKNIFTY"})
}

// OptionChainSymbols is the FnO list plus the index option chains
func (u *Universe) OptionChainSymbols() []string {
	return union(u.Symbols(FnO), []string{"NIFTY", "BANKNIFTY", "NIFTYIT"})
}

// union merges lists into one sorted, duplicate-free list
func union(lists ...[]string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, l := range lists {
		for _, s := range l {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
