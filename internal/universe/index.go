package universe

import (
	"fmt"
	"strings"

	"github.com/wonny/nsefeed/pkg/apperrors"
)

// Index is one member of the closed set of index groupings
type Index struct {
	Name  string // snapshot file name, e.g. Nifty50
	Value string // exchange name, e.g. NIFTY 50
}

func (i Index) String() string {
	return i.Value
}

// Encoded is the percent-encoded exchange name
func (i Index) Encoded() string {
	return Quote(i.Value)
}

var (
	All              = Index{"All", "ALL"}
	FnO              = Index{"FnO", "FNO"}
	Nifty50          = Index{"Nifty50", "NIFTY 50"}
	NiftyNext50      = Index{"NiftyNext50", "NIFTY NEXT 50"}
	Nifty100         = Index{"Nifty100", "NIFTY 100"}
	Nifty200         = Index{"Nifty200", "NIFTY 200"}
	Nifty500         = Index{"Nifty500", "NIFTY 500"}
	NiftyMidcap50    = Index{"NiftyMidcap50", "NIFTY MIDCAP 50"}
	NiftyMidcap100   = Index{"NiftyMidcap100", "NIFTY MIDCAP 100"}
	NiftySmlcap100   = Index{"NiftySmlcap100", "NIFTY SMLCAP 100"}
	NiftyMidcap150   = Index{"NiftyMidcap150", "NIFTY MIDCAP 150"}
	NiftySmlcap50    = Index{"NiftySmlcap50", "NIFTY SMLCAP 50"}
	NiftySmlcap250   = Index{"NiftySmlcap250", "NIFTY SMLCAP 250"}
	NiftyMidsml400   = Index{"NiftyMidsml400", "NIFTY MIDSML 400"}
	NiftyBank        = Index{"NiftyBank", "NIFTY BANK"}
	NiftyAuto        = Index{"NiftyAuto", "NIFTY AUTO"}
	NiftyFinService  = Index{"NiftyFinService", "NIFTY FIN SERVICE"}
	NiftyFmcg        = Index{"NiftyFmcg", "NIFTY FMCG"}
	NiftyIt          = Index{"NiftyIt", "NIFTY IT"}
	NiftyMedia       = Index{"NiftyMedia", "NIFTY MEDIA"}
	NiftyMetal       = Index{"NiftyMetal", "NIFTY METAL"}
	NiftyPharma      = Index{"NiftyPharma", "NIFTY PHARMA"}
	NiftyPsuBank     = Index{"NiftyPsuBank", "NIFTY PSU BANK"}
	NiftyPvtBank     = Index{"NiftyPvtBank", "NIFTY PVT BANK"}
	NiftyRealty      = Index{"NiftyRealty", "NIFTY REALTY"}
	Nifty50Value20   = Index{"Nifty50Value20", "NIFTY50 VALUE 20"}
	NiftyAlpha50     = Index{"NiftyAlpha50", "NIFTY ALPHA 50"}
	Nifty50EqlWgt    = Index{"Nifty50EqlWgt", "NIFTY50 EQL WGT"}
	Nifty100EqlWgt   = Index{"Nifty100EqlWgt", "NIFTY100 EQL WGT"}
	Nifty100Lowvol30 = Index{"Nifty100Lowvol30", "NIFTY100 LOWVOL30"}
	Nifty200Qualty30 = Index{"Nifty200Qualty30", "NIFTY200 QUALTY30"}
	NiftyCommodities = Index{"NiftyCommodities", "NIFTY COMMODITIES"}
	NiftyConsumption = Index{"NiftyConsumption", "NIFTY CONSUMPTION"}
	NiftyEnergy      = Index{"NiftyEnergy", "NIFTY ENERGY"}
	NiftyInfra       = Index{"NiftyInfra", "NIFTY INFRA"}
	NiftyMnc         = Index{"NiftyMnc", "NIFTY MNC"}
	NiftyPse         = Index{"NiftyPse", "NIFTY PSE"}
	NiftyServSector  = Index{"NiftyServSector", "NIFTY SERV SECTOR"}
)

var indices = []Index{
	All, FnO, Nifty50, NiftyNext50, Nifty100, Nifty200, Nifty500,
	NiftyMidcap50, NiftyMidcap100, NiftySmlcap100, NiftyMidcap150, NiftySmlcap50,
	NiftySmlcap250, NiftyMidsml400, NiftyBank, NiftyAuto, NiftyFinService, NiftyFmcg,
	NiftyIt, NiftyMedia, NiftyMetal, NiftyPharma, NiftyPsuBank, NiftyPvtBank, NiftyRealty,
	Nifty50Value20, NiftyAlpha50, Nifty50EqlWgt, Nifty100EqlWgt, Nifty100Lowvol30,
	Nifty200Qualty30, NiftyCommodities, NiftyConsumption, NiftyEnergy, NiftyInfra,
	NiftyMnc, NiftyPse, NiftyServSector,
}

// Indices returns every index grouping in declaration order
func Indices() []Index {
	return append([]Index(nil), indices...)
}

// IndexValues returns the exchange names of every grouping
func IndexValues() []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = idx.Value
	}
	return out
}

// ParseIndex accepts either the name (Nifty50) or the exchange value (NIFTY 50), any case
func ParseIndex(s string) (Index, error) {
	for _, idx := range indices {
		if strings.EqualFold(s, idx.Name) || strings.EqualFold(s, idx.Value) {
			return idx, nil
		}
	}
	return Index{}, fmt.Errorf("%w: unknown index %q", apperrors.ErrInvalidSymbol, s)
}

// Validate upper-cases symbol, checks membership in allowed and returns it percent-encoded
func Validate(symbol string, allowed []string) (string, error) {
	s := strings.ToUpper(symbol)
	for _, a := range allowed {
		if a == s {
			return Quote(s), nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidSymbol, symbol)
}

// Quote percent-encodes s leaving letters, digits, "_.-~" and "/" as they are
func Quote(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '.', c == '-', c == '~', c == '/':
		return true
	}
	return false
}
