package market

import "strings"

// IndexProxy maps a non-tradable index to the ETF that stands in for it.
type IndexProxy struct {
	Symbol string // index symbol, e.g. ^GSPC
	Proxy  string // tradable ETF, e.g. SPY
	Name   string
}

// IndexTable is the fixed set of supported indices, in display order.
// Every index has exactly one proxy.
var IndexTable = []IndexProxy{
	{Symbol: "^GSPC", Proxy: "SPY", Name: "S&P 500"},
	{Symbol: "^IXIC", Proxy: "QQQ", Name: "NASDAQ"},
	{Symbol: "^DJI", Proxy: "DIA", Name: "Dow Jones"},
	{Symbol: "^RUT", Proxy: "IWM", Name: "Russell 2000"},
}

// LookupIndex resolves raw to a table entry. It tolerates case differences
// and a missing or extra leading caret ("gspc", "^gspc", "GSPC").
func LookupIndex(raw string) (IndexProxy, bool) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if sym == "" {
		return IndexProxy{}, false
	}
	candidates := []string{sym, "^" + strings.TrimLeft(sym, "^")}
	for _, c := range candidates {
		for _, e := range IndexTable {
			if e.Symbol == c {
				return e, true
			}
		}
	}
	return IndexProxy{}, false
}

// ProxySymbols returns the proxies in table order.
func ProxySymbols() []string {
	out := make([]string, len(IndexTable))
	for i, e := range IndexTable {
		out[i] = e.Proxy
	}
	return out
}
