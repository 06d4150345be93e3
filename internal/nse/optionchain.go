package nse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/internal/calendar"
	"github.com/wonny/nsefeed/internal/parser"
	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/internal/universe"
	"github.com/wonny/nsefeed/pkg/apperrors"
)

const eodSuffix = "eod"

// OptionChain is one snapshot of every listed option of an underlying
type OptionChain struct {
	Timestamp string       `json:"timestamp"`
	Data      *table.Table `json:"data"`
	Expiries  []string     `json:"expiries"`
}

// OptionChain returns the option chain of symbol. A zero date (or today) asks
// for the freshest chain: intraday every call downloads a new timestamped
// snapshot, after the close the day's "eod" snapshot is reused. A past date is
// served from disk only.
func (c *Client) OptionChain(ctx context.Context, symbol string, date time.Time) (*OptionChain, error) {
	encoded, err := universe.Validate(symbol, c.symbols.OptionChainSymbols())
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	resource := ResourceOptionChainEquity
	if strings.Contains(encoded, "NIFTY") {
		resource = ResourceOptionChainIndex
	}

	key, mustExist, err := c.optionChainKey(ctx, symbol, calendar.Civil(date), date.IsZero())
	if err != nil {
		return nil, err
	}

	var body []byte
	if mustExist {
		body, err = c.store.GetRaw(key)
		if errors.Is(err, cache.ErrMiss) {
			return nil, fmt.Errorf("%w: option chain of %s for %s was never downloaded", apperrors.ErrNotFound, symbol, key.Parts[1])
		}
		if err != nil {
			return nil, err
		}
	} else {
		body, err = cache.GetOrSetRaw(ctx, c.store, key, func(ctx context.Context) ([]byte, error) {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"key":    key.String(),
			}).Info("downloading option chain")
			raw, err := c.fetch(ctx, resource, map[string]string{"symbol": encoded})
			if err != nil {
				return nil, err
			}
			if _, err := parser.DecodeJSON(raw); err != nil {
				return nil, err
			}
			return raw, nil
		})
		if err != nil {
			return nil, err
		}
	}

	return parseOptionChain(body)
}

// optionChainKey decides which snapshot serves the request and whether it may be downloaded
func (c *Client) optionChainKey(ctx context.Context, symbol string, date time.Time, latest bool) (cache.Key, bool, error) {
	today := c.today()
	if latest || date.Equal(today) {
		eodToday := cache.OptionChainKey(symbol, today, eodSuffix)
		if c.store.Has(eodToday) {
			return eodToday, false, nil
		}

		ref, err := c.GetQuote(ctx, QuoteRequest{Symbol: c.opts.ReferenceSymbol})
		if err != nil {
			return cache.Key{}, false, fmt.Errorf("market timestamp: %w", err)
		}
		if calendar.Civil(ref.Timestamp).Equal(today) {
			if !c.afterClose(ref.Timestamp) {
				return cache.OptionChainKey(symbol, today, c.now().Format("150405")), false, nil
			}
			return eodToday, false, nil
		}
	}

	prev, err := c.calendar.LatestTradingDay(ctx)
	if err != nil {
		return cache.Key{}, false, err
	}
	if latest || !date.Before(prev) {
		return cache.OptionChainKey(symbol, prev, eodSuffix), false, nil
	}
	return cache.OptionChainKey(symbol, date, eodSuffix), true, nil
}

func parseOptionChain(body []byte) (*OptionChain, error) {
	doc, err := parser.DecodeJSON(body)
	if err != nil {
		return nil, err
	}

	stamp, err := parser.LookupString(doc, "records.timestamp")
	if err != nil {
		return nil, err
	}

	rawExpiries, err := parser.Lookup(doc, "records.expiryDates")
	if err != nil {
		return nil, err
	}
	list, ok := rawExpiries.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: records.expiryDates is not a list", apperrors.ErrSchemaMismatch)
	}
	expiries := make([]string, len(list))
	for i, e := range list {
		expiries[i] = parser.Text(e)
	}

	records, err := parser.LookupRecords(doc, "records.data")
	if err != nil {
		return nil, err
	}
	data, err := parser.RecordsTable(records, parser.JSONOptions{})
	if err != nil {
		return nil, err
	}

	return &OptionChain{Timestamp: stamp, Data: data, Expiries: expiries}, nil
}
