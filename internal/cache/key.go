package cache

import (
	"strings"
	"time"
)

// Format tells how an entry is encoded on disk
type Format string

const (
	FormatJSON Format = "json" // typed value, JSON encoded
	FormatRaw  Format = "raw"  // response bytes as received
)

// Key identifies one cached artifact: a namespace (the resource directory)
// plus ordered parts such as symbol, dates and suffix.
type Key struct {
	Namespace string
	Parts     []string
	Format    Format
}

// NewKey builds a JSON-format key
func NewKey(namespace string, parts ...string) Key {
	return Key{Namespace: namespace, Parts: parts, Format: FormatJSON}
}

// RawKey builds a raw-format key
func RawKey(namespace string, parts ...string) Key {
	return Key{Namespace: namespace, Parts: parts, Format: FormatRaw}
}

// partEscaper makes joined names injective: "%" is escaped first, so "_" and
// path separators can never come from a part.
var partEscaper = strings.NewReplacer(
	"%", "%25",
	"_", "%5F",
	"/", "%2F",
	"\\", "%5C",
	":", "%3A",
	" ", "%20",
)

// FileName is the escaped file name of the key
func (k Key) FileName() string {
	escaped := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		escaped[i] = partEscaper.Replace(p)
	}

	ext := ".json"
	if k.Format == FormatRaw {
		ext = ".raw"
	}
	return strings.Join(escaped, "_") + ext
}

// String is the namespace-qualified file name
func (k Key) String() string {
	return k.Namespace + "/" + k.FileName()
}

// Date renders a key part for a civil date
func Date(t time.Time) string {
	return t.Format("2006-01-02")
}

// Common key generators

func BhavcopyKey(date time.Time) Key {
	return NewKey("bhavcopy_eq", Date(date))
}

func BhavcopyFnOKey(date time.Time) Key {
	return NewKey("bhavcopy_fno", Date(date))
}

func PreOpenKey(date time.Time) Key {
	return NewKey("pre_open", Date(date))
}

func HistoryKey(symbol string, from, to time.Time) Key {
	return NewKey("hist", symbol, Date(from), Date(to))
}

// OptionChainKey uses suffix "eod" after the close, or an HHMMSS stamp intraday
func OptionChainKey(symbol string, date time.Time, suffix string) Key {
	return RawKey("option_chain", symbol, Date(date), suffix)
}

func StockWatchKey(date time.Time) Key {
	return NewKey("eq_stock_watch", Date(date))
}

func DailyDeliveryKey(date time.Time) Key {
	return NewKey("daily_delivery", Date(date))
}

func InsiderTradingKey(from, to time.Time) Key {
	return NewKey("insider_trading", Date(from), Date(to))
}

func CorpInfoKey(symbol, month string) Key {
	return NewKey("corp_info", symbol, month)
}

func SymbolListKey(name string) Key {
	return NewKey("symbol_list", name)
}
