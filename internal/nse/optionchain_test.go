package nse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/pkg/apperrors"
)

const (
	chainEquityPath = "/api/option-chain-equities"
	chainIndexPath  = "/api/option-chain-indices"
)

const optionChainJSON = `{
	"records": {
		"timestamp": "17-Jun-2020 15:30:00",
		"expiryDates": ["25-Jun-2020", "30-Jul-2020"],
		"data": [
			{"strikePrice": 2000, "expiryDate": "25-Jun-2020", "CE": {"lastPrice": 80, "openInterest": 10}, "PE": {"lastPrice": 22, "openInterest": 20}},
			{"strikePrice": 2100, "expiryDate": "25-Jun-2020", "CE": {"lastPrice": 30, "openInterest": 5}, "PE": {"lastPrice": 55, "openInterest": 8}}
		]
	},
	"filtered": {}
}`

func chainFile(root, name string) string {
	return filepath.Join(root, "option_chain", name)
}

func TestOptionChainAfterCloseStoresEOD(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")
	serveEquityQuote(f.site, "17-Jun-2020 16:00:00")
	f.site.serve(chainEquityPath, optionChainJSON)
	ctx := context.Background()

	oc, err := f.client.OptionChain(ctx, "tcs", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "17-Jun-2020 15:30:00", oc.Timestamp)
	assert.Equal(t, []string{"25-Jun-2020", "30-Jul-2020"}, oc.Expiries)
	require.Equal(t, 2, oc.Data.Len())
	assert.Equal(t, 22.0, oc.Data.Row(0)["PE.lastPrice"])
	assert.FileExists(t, chainFile(f.root, "TCS_2020-06-17_eod.raw"))

	before := f.site.total()
	again, err := f.client.OptionChain(ctx, "TCS", evening)
	require.NoError(t, err)
	assert.Equal(t, oc.Expiries, again.Expiries)
	assert.Equal(t, before, f.site.total(), "the day's eod snapshot is reused without asking for the market time")
	assert.Equal(t, 1, f.site.hitsOn(chainEquityPath))
}

func TestOptionChainIntradaySnapshots(t *testing.T) {
	morning := time.Date(2020, 6, 17, 11, 0, 15, 0, ist)
	f := newFixture(t, morning, "2020-06-16", "2020-06-17")
	serveEquityQuote(f.site, "17-Jun-2020 11:00:00")
	f.site.serve(chainEquityPath, optionChainJSON)

	_, err := f.client.OptionChain(context.Background(), "TCS", time.Time{})
	require.NoError(t, err)
	assert.FileExists(t, chainFile(f.root, "TCS_2020-06-17_110015.raw"))
	assert.NoFileExists(t, chainFile(f.root, "TCS_2020-06-17_eod.raw"))
}

func TestOptionChainMarketClosedUsesLastSession(t *testing.T) {
	saturday := time.Date(2020, 6, 20, 10, 0, 0, 0, ist)
	f := newFixture(t, saturday, "2020-06-18", "2020-06-19")
	serveEquityQuote(f.site, "19-Jun-2020 15:59:59")
	f.site.serve(chainIndexPath, optionChainJSON)

	_, err := f.client.OptionChain(context.Background(), "NIFTY", time.Time{})
	require.NoError(t, err)
	assert.FileExists(t, chainFile(f.root, "NIFTY_2020-06-19_eod.raw"))
	assert.Equal(t, 1, f.site.hitsOn(chainIndexPath))
	assert.Equal(t, 0, f.site.hitsOn(chainEquityPath))
}

func TestOptionChainPastDateReadsDiskOnly(t *testing.T) {
	f := newFixture(t, evening, "2020-06-10", "2020-06-17")
	f.site.serve(chainEquityPath, optionChainJSON)
	ctx := context.Background()

	_, err := f.client.OptionChain(ctx, "TCS", day0("2020-06-10"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, f.site.total())

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "option_chain"), 0o755))
	require.NoError(t, os.WriteFile(chainFile(f.root, "TCS_2020-06-10_eod.raw"), []byte(optionChainJSON), 0o644))

	oc, err := f.client.OptionChain(ctx, "TCS", day0("2020-06-10"))
	require.NoError(t, err)
	assert.Equal(t, 2, oc.Data.Len())
	assert.Equal(t, 0, f.site.total())
}

func TestOptionChainPastDateIgnoresTodaysSnapshot(t *testing.T) {
	f := newFixture(t, evening, "2020-06-10", "2020-06-17")
	ctx := context.Background()

	past := strings.Replace(optionChainJSON, "17-Jun-2020 15:30:00", "10-Jun-2020 15:30:00", 1)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "option_chain"), 0o755))
	require.NoError(t, os.WriteFile(chainFile(f.root, "TCS_2020-06-17_eod.raw"), []byte(optionChainJSON), 0o644))
	require.NoError(t, os.WriteFile(chainFile(f.root, "TCS_2020-06-10_eod.raw"), []byte(past), 0o644))

	oc, err := f.client.OptionChain(ctx, "TCS", day0("2020-06-10"))
	require.NoError(t, err)
	assert.Equal(t, "10-Jun-2020 15:30:00", oc.Timestamp)

	oc, err = f.client.OptionChain(ctx, "TCS", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "17-Jun-2020 15:30:00", oc.Timestamp)
	assert.Equal(t, 0, f.site.total())
}

func TestOptionChainUnreadableSnapshotIsNotMissing(t *testing.T) {
	f := newFixture(t, evening, "2020-06-10", "2020-06-17")

	require.NoError(t, os.MkdirAll(chainFile(f.root, "TCS_2020-06-10_eod.raw"), 0o755))

	_, err := f.client.OptionChain(context.Background(), "TCS", day0("2020-06-10"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, f.site.total())
}

func TestOptionChainRejectsUnknownUnderlying(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")

	_, err := f.client.OptionChain(context.Background(), "HDFC", time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol)
	assert.Equal(t, 0, f.site.total())
}

func TestOptionChainInvalidPayloadIsNotStored(t *testing.T) {
	f := newFixture(t, evening, "2020-06-17")
	serveEquityQuote(f.site, "17-Jun-2020 16:00:00")
	f.site.serve(chainEquityPath, `<html>blocked</html>`)

	_, err := f.client.OptionChain(context.Background(), "TCS", time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	assert.NoFileExists(t, chainFile(f.root, "TCS_2020-06-17_eod.raw"))
}
