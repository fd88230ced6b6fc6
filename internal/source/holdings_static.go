package source

import (
	"strings"

	"market-dashboard/internal/models"
)

type staticHolding struct {
	symbol string
	name   string
	weight float64
}

// Approximate top holdings, used when the live holdings call yields nothing.
var staticHoldings = map[string][]staticHolding{
	"SPY": {
		{"AAPL", "Apple Inc", 7.0},
		{"MSFT", "Microsoft Corp", 6.5},
		{"NVDA", "NVIDIA Corp", 6.2},
		{"AMZN", "Amazon.com Inc", 3.7},
		{"META", "Meta Platforms Inc Class A", 2.5},
		{"GOOGL", "Alphabet Inc Class A", 2.0},
		{"BRK.B", "Berkshire Hathaway Inc Class B", 1.7},
		{"GOOG", "Alphabet Inc Class C", 1.7},
		{"AVGO", "Broadcom Inc", 1.6},
		{"TSLA", "Tesla Inc", 1.4},
		{"JPM", "JPMorgan Chase & Co", 1.3},
		{"LLY", "Eli Lilly and Co", 1.3},
	},
	"QQQ": {
		{"AAPL", "Apple Inc", 8.8},
		{"MSFT", "Microsoft Corp", 8.2},
		{"NVDA", "NVIDIA Corp", 7.9},
		{"AMZN", "Amazon.com Inc", 5.4},
		{"AVGO", "Broadcom Inc", 4.9},
		{"META", "Meta Platforms Inc Class A", 4.8},
		{"COST", "Costco Wholesale Corp", 2.7},
		{"TSLA", "Tesla Inc", 2.6},
		{"GOOGL", "Alphabet Inc Class A", 2.5},
		{"GOOG", "Alphabet Inc Class C", 2.4},
		{"NFLX", "Netflix Inc", 2.0},
		{"AMD", "Advanced Micro Devices Inc", 1.6},
	},
	"DIA": {
		{"UNH", "UnitedHealth Group Inc", 8.0},
		{"GS", "Goldman Sachs Group Inc", 7.9},
		{"MSFT", "Microsoft Corp", 6.2},
		{"HD", "Home Depot Inc", 5.5},
		{"CAT", "Caterpillar Inc", 5.3},
		{"SHW", "Sherwin-Williams Co", 5.0},
		{"V", "Visa Inc Class A", 4.3},
		{"AMGN", "Amgen Inc", 4.2},
		{"MCD", "McDonald's Corp", 4.1},
		{"CRM", "Salesforce Inc", 4.0},
		{"AXP", "American Express Co", 3.9},
		{"TRV", "Travelers Companies Inc", 3.6},
	},
	"IWM": {
		{"FTAI", "FTAI Aviation Ltd", 0.5},
		{"SFM", "Sprouts Farmers Market Inc", 0.5},
		{"INSM", "Insmed Inc", 0.4},
		{"PCVX", "Vaxcyte Inc", 0.4},
		{"CRS", "Carpenter Technology Corp", 0.4},
		{"AIT", "Applied Industrial Technologies Inc", 0.3},
		{"FN", "Fabrinet", 0.3},
		{"ENSG", "Ensign Group Inc", 0.3},
		{"HQY", "HealthEquity Inc", 0.3},
		{"MLI", "Mueller Industries Inc", 0.3},
	},
}

// StaticHoldings returns the bundled holdings for proxy, or false when none
// are bundled. The returned slice is a fresh copy.
func StaticHoldings(proxy string) ([]models.EtfHolding, bool) {
	list, ok := staticHoldings[strings.ToUpper(strings.TrimSpace(proxy))]
	if !ok {
		return nil, false
	}
	out := make([]models.EtfHolding, 0, len(list))
	for _, h := range list {
		w := h.weight
		out = append(out, models.EtfHolding{Symbol: h.symbol, Name: h.name, Weight: &w})
	}
	return out, true
}
