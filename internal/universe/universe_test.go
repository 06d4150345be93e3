package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/internal/cache"
	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/logger"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SBIN", "SBIN"},
		{"M&M", "M%26M"},
		{"NIFTY 50", "NIFTY%2050"},
		{"BAJAJ-AUTO", "BAJAJ-AUTO"},
		{"A/B_C.D~", "A/B_C.D~"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	allowed := []string{"SBIN", "M&M", "NIFTY 50"}

	got, err := Validate("sbin", allowed)
	require.NoError(t, err)
	assert.Equal(t, "SBIN", got)

	got, err = Validate("m&m", allowed)
	require.NoError(t, err)
	assert.Equal(t, "M%26M", got)

	got, err = Validate("Nifty 50", allowed)
	require.NoError(t, err)
	assert.Equal(t, "NIFTY%2050", got)

	_, err = Validate("XYZ", allowed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol)
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex("nifty50")
	require.NoError(t, err)
	assert.Equal(t, Nifty50, idx)

	idx, err = ParseIndex("NIFTY PSU BANK")
	require.NoError(t, err)
	assert.Equal(t, NiftyPsuBank, idx)
	assert.Equal(t, "NIFTY%20PSU%20BANK", idx.Encoded())

	_, err = ParseIndex("NIFTY 5000")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSymbol)
}

func TestIndicesUnique(t *testing.T) {
	names := map[string]bool{}
	values := map[string]bool{}
	for _, idx := range Indices() {
		assert.False(t, names[idx.Name], "duplicate name %s", idx.Name)
		assert.False(t, values[idx.Value], "duplicate value %s", idx.Value)
		names[idx.Name] = true
		values[idx.Value] = true
	}
	assert.Len(t, IndexValues(), len(Indices()))
}

func TestLoadSeed(t *testing.T) {
	store := cache.NewStore(t.TempDir(), logger.NewNop())

	u, err := Load(store, logger.NewNop())
	require.NoError(t, err)

	assert.Len(t, u.Symbols(Nifty50), 50)
	assert.Contains(t, u.Symbols(NiftyBank), "HDFCBANK")
	assert.Empty(t, u.Symbols(NiftyRealty))
	for _, idx := range []Index{Nifty50, NiftyBank, NiftyIt, FnO} {
		assert.Subset(t, u.Symbols(All), u.Symbols(idx), idx.Name)
	}
	assert.Contains(t, u.Symbols(All), "ACC", "F&O-only names are listed equities")

	assert.Contains(t, u.DerivativeSymbols(), "BANKNIFTY")
	assert.Contains(t, u.OptionChainSymbols(), "NIFTYIT")
	assert.Contains(t, u.EquitySymbols(), "NIFTY 50")
	assert.Contains(t, u.EquitySymbols(), "SBIN")
}

func TestFreshInstallAcceptsStockDerivatives(t *testing.T) {
	store := cache.NewStore(t.TempDir(), logger.NewNop())

	u, err := Load(store, logger.NewNop())
	require.NoError(t, err)

	assert.Greater(t, len(u.Symbols(FnO)), 100)

	got, err := Validate("tcs", u.DerivativeSymbols())
	require.NoError(t, err)
	assert.Equal(t, "TCS", got)

	got, err = Validate("M&M", u.OptionChainSymbols())
	require.NoError(t, err)
	assert.Equal(t, "M%26M", got)

	_, err = Validate("INFY", u.OptionChainSymbols())
	assert.NoError(t, err)
}

func TestReplacePersists(t *testing.T) {
	store := cache.NewStore(t.TempDir(), logger.NewNop())

	u, err := Load(store, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, u.Replace(NiftyBank, []string{"SBIN", "AXISBANK", "SBIN", "HDFCBANK"}))
	assert.Equal(t, []string{"AXISBANK", "HDFCBANK", "SBIN"}, u.Symbols(NiftyBank))

	reloaded, err := Load(store, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"AXISBANK", "HDFCBANK", "SBIN"}, reloaded.Symbols(NiftyBank))
}

func TestSymbolsReturnsCopy(t *testing.T) {
	store := cache.NewStore(t.TempDir(), logger.NewNop())
	u, err := Load(store, logger.NewNop())
	require.NoError(t, err)

	list := u.Symbols(Nifty50)
	list[0] = "CHANGED"
	assert.NotEqual(t, "CHANGED", u.Symbols(Nifty50)[0])
}
