package models

// IndexQuote is the raw (non-tradable) index value as reported by the chart provider.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	PreviousClose float64 `json:"previousClose"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	Timestamp     int64   `json:"timestamp"`
}

// ChartPoint is one sample of an index chart.
type ChartPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// ProxyQuote carries the tradable proxy's figures alongside the raw index.
// Consumers should prefer these for display when present.
type ProxyQuote struct {
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	Up            bool     `json:"up"`
}

// IndexSnapshot is the dashboard card for one supported index.
type IndexSnapshot struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Symbol        string       `json:"symbol"`
	Value         *float64     `json:"value"`
	Change        *float64     `json:"change"`
	ChangePercent *float64     `json:"changePercent"`
	Up            bool         `json:"up"`
	ETF           ProxyQuote   `json:"etf"`
	Data          []ChartPoint `json:"data"`
}

// IndexBundle is the cached set of all index snapshots.
type IndexBundle struct {
	Indices []IndexSnapshot `json:"indices"`
}

// EtfHolding is one constituent of an ETF.
type EtfHolding struct {
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Weight      *float64 `json:"weight,omitempty"`
	Shares      *float64 `json:"shares,omitempty"`
	MarketValue *float64 `json:"marketValue,omitempty"`
}

// WeightOrZero returns the holding weight, treating an unknown weight as zero.
func (h EtfHolding) WeightOrZero() float64 {
	if h.Weight == nil {
		return 0
	}
	return *h.Weight
}

// Constituents is a page of an index's representative holdings.
type Constituents struct {
	Index        string       `json:"index"`
	ETF          string       `json:"etf"`
	Total        int          `json:"total"`
	Constituents []EtfHolding `json:"constituents"`
}
