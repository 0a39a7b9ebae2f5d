// Package pairs maps canonical trading-pair symbols onto each venue's native
// symbol format. Normalization is a pure function of (pair, venue): no I/O, no
// state, deterministic output.
package pairs

import "strings"

// Format declares one venue's symbol convention.
type Format struct {
	Separator string
	Lower     bool
	Prefix    string
	Suffix    string
	// Renames maps canonical asset symbols onto the venue's native tickers.
	Renames map[string]string
}

// knownQuotes lists the quote currencies recognised when splitting a canonical
// pair, longest first so USDT wins over USD.
var knownQuotes = []string{
	"USDT", "USDC", "BUSD", "TUSD", "EUR", "GBP", "USD", "BTC", "ETH", "BNB", "ZAR", "JPY", "KRW",
}

var separators = strings.NewReplacer("-", "", "/", "", "_", "")

var formats = map[string]Format{
	"binance":  {},
	"mexc":     {},
	"kucoin":   {Separator: "-"},
	"okx":      {Separator: "-"},
	"kraken":   {Renames: map[string]string{"BTC": "XBT", "DOGE": "XDG"}},
	"bitfinex": {Prefix: "t", Renames: map[string]string{"USDT": "UST"}},
	"luno":     {Renames: map[string]string{"BTC": "XBT"}},
}

// Split derives (base, quote) from a canonical pair symbol by matching a known
// quote-currency suffix. Separators ("BTC-USDT", "BTC/USDT") are tolerated and
// ignored.
func Split(pair string) (base, quote string, ok bool) {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = separators.Replace(p)
	for _, q := range knownQuotes {
		if strings.HasSuffix(p, q) && len(p) > len(q) {
			return p[:len(p)-len(q)], q, true
		}
	}
	return "", "", false
}

// Normalize renders the canonical pair in the venue's native format. Unknown
// venues and unsplittable pairs pass through unchanged: callers are expected to
// supply canonical pairs the normalizer recognises, and passing the input on is
// the documented policy rather than an error.
func Normalize(venue, pair string) string {
	format, ok := formats[strings.ToLower(strings.TrimSpace(venue))]
	if !ok {
		return pair
	}
	base, quote, ok := Split(pair)
	if !ok {
		return pair
	}
	base = rename(format, base)
	quote = rename(format, quote)
	symbol := format.Prefix + base + format.Separator + quote + format.Suffix
	if format.Lower {
		return strings.ToLower(symbol)
	}
	return symbol
}

// NativeAsset renders a canonical asset symbol in the venue's native ticker,
// used when matching balance entries against the base asset of a pair.
func NativeAsset(venue, asset string) string {
	format, ok := formats[strings.ToLower(strings.TrimSpace(venue))]
	if !ok {
		return strings.ToUpper(strings.TrimSpace(asset))
	}
	return rename(format, strings.ToUpper(strings.TrimSpace(asset)))
}

func rename(format Format, asset string) string {
	if format.Renames == nil {
		return asset
	}
	if native, ok := format.Renames[asset]; ok {
		return native
	}
	return asset
}
