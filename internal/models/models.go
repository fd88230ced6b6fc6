// Package models provides the canonical market-data entities served by the dashboard.
package models

import (
	"time"
)

// Quote is a point-in-time price snapshot for a tradable symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	Timestamp     string  `json:"timestamp"` // ISO-8601
}

// Bar represents OHLCV data for one resolution interval.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	VWAP      float64   `json:"vwap"`
}

// BarSeries is a chronologically ascending run of bars for one symbol and resolution.
type BarSeries struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Bars      []Bar  `json:"bars"`
}

// Empty reports whether the series carries no bars.
func (s *BarSeries) Empty() bool {
	return s == nil || len(s.Bars) == 0
}

// CompanyProfile is long-lived reference data for a listed company.
type CompanyProfile struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Logo              string  `json:"logo"`
	Industry          string  `json:"industry"`
	Country           string  `json:"country"`
	Exchange          string  `json:"exchange"`
	Currency          string  `json:"currency"`
	MarketCap         float64 `json:"marketCap"`
	SharesOutstanding float64 `json:"sharesOutstanding"`
	Website           string  `json:"website"`
	IPO               string  `json:"ipo"`
}

// Details aggregates profile, quote and history for the stock detail view.
type Details struct {
	Profile *CompanyProfile `json:"profile"`
	Quote   *Quote          `json:"quote"`
	History BarSeries       `json:"history"`
}

// Mover is one entry of the top gainers/losers screener.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Volume        int64   `json:"volume"`
}

// TopMovers groups the screener output.
type TopMovers struct {
	Gainers []Mover `json:"gainers"`
	Losers  []Mover `json:"losers"`
}

// SearchResult is a symbol lookup match.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
}

// NewsItem is a market news headline.
type NewsItem struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// MarketClock reports whether the exchange is open.
type MarketClock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}
