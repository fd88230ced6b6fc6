package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/pkg/utils"
)

// MarketDataClient is the subset of *marketdata.Client the adapter uses.
type MarketDataClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// ClockClient is the subset of *alpaca.Client the adapter uses.
type ClockClient interface {
	GetClock() (*alpaca.Clock, error)
}

// AlpacaConfig holds Alpaca credentials and endpoints.
type AlpacaConfig struct {
	APIKey     string
	APISecret  string
	DataURL    string // e.g. https://data.alpaca.markets
	TradingURL string // e.g. https://api.alpaca.markets
	Feed       string // iex or sip
}

// Alpaca is the price source. Snapshots and bars go through the SDK; the
// movers screener, which the SDK does not cover, is called over HTTP.
type Alpaca struct {
	cfg   AlpacaConfig
	data  MarketDataClient
	clock ClockClient
	c     *caller
}

// NewAlpaca builds the adapter with SDK clients for cfg.
func NewAlpaca(cfg AlpacaConfig, opts Options) *Alpaca {
	if cfg.DataURL == "" {
		cfg.DataURL = "https://data.alpaca.markets"
	}
	if cfg.TradingURL == "" {
		cfg.TradingURL = "https://api.alpaca.markets"
	}
	data := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.DataURL,
	})
	trading := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.TradingURL,
	})
	return NewAlpacaWithClients(cfg, data, trading, opts)
}

// NewAlpacaWithClients builds the adapter over caller-supplied clients.
func NewAlpacaWithClients(cfg AlpacaConfig, data MarketDataClient, clock ClockClient, opts Options) *Alpaca {
	a := &Alpaca{cfg: cfg, data: data, clock: clock, c: newCaller("alpaca", opts)}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		a.c.logger.Warn().Msg("Alpaca credentials not set, price data will be unavailable")
	}
	return a
}

func (a *Alpaca) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return call(ctx, a.c, "snapshot", symbol, func(ctx context.Context) (*models.Quote, error) {
		snap, err := a.data.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(a.cfg.Feed)})
		if err != nil {
			return nil, err
		}
		return quoteFromSnapshot(symbol, snap, a.c.now())
	})
}

// quoteFromSnapshot prefers the latest trade over the daily close, and the
// prior daily close over the price itself as the change baseline.
func quoteFromSnapshot(symbol string, snap *marketdata.Snapshot, now time.Time) (*models.Quote, error) {
	if snap == nil {
		return nil, apperrors.ErrDataNotFound
	}

	var price float64
	if snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		price = snap.LatestTrade.Price
	} else if snap.DailyBar != nil && snap.DailyBar.Close > 0 {
		price = snap.DailyBar.Close
	} else {
		return nil, apperrors.ErrDataNotFound
	}

	prev := price
	if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
		prev = snap.PrevDailyBar.Close
	}

	q := &models.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        utils.Round2(price - prev),
		ChangePercent: utils.Round2(utils.PercentChange(price, prev)),
		Open:          price,
		High:          price,
		Low:           price,
		Close:         price,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
	if d := snap.DailyBar; d != nil {
		q.Open = orDefault(d.Open, price)
		q.High = orDefault(d.High, price)
		q.Low = orDefault(d.Low, price)
		q.Close = orDefault(d.Close, price)
		q.Volume = int64(d.Volume)
	}
	if t := snap.LatestTrade; t != nil && !t.Timestamp.IsZero() {
		q.Timestamp = t.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return q, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func (a *Alpaca) Bars(ctx context.Context, req BarsRequest) ([]models.Bar, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	start := req.Start
	if start.IsZero() {
		start = DefaultStart(a.c.now(), req.Resolution, limit)
	}

	return call(ctx, a.c, "bars", symbol, func(ctx context.Context) ([]models.Bar, error) {
		raw, err := a.data.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  timeFrame(req.Resolution),
			Start:      start,
			End:        req.End,
			TotalLimit: limit,
			Feed:       marketdata.Feed(a.cfg.Feed),
		})
		if err != nil {
			return nil, err
		}
		bars := make([]models.Bar, 0, len(raw))
		for _, b := range raw {
			bars = append(bars, models.Bar{
				Timestamp: b.Timestamp.UTC(),
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    int64(b.Volume),
				VWAP:      b.VWAP,
			})
		}
		return bars, nil
	})
}

func timeFrame(res models.Resolution) marketdata.TimeFrame {
	unit := marketdata.Day
	switch res.Unit {
	case models.UnitMinute:
		unit = marketdata.Min
	case models.UnitHour:
		unit = marketdata.Hour
	case models.UnitWeek:
		unit = marketdata.Week
	case models.UnitMonth:
		unit = marketdata.Month
	}
	amount := res.Amount
	if amount <= 0 {
		amount = 1
	}
	return marketdata.NewTimeFrame(amount, unit)
}

type moversResponse struct {
	Gainers []moverJSON `json:"gainers"`
	Losers  []moverJSON `json:"losers"`
}

type moverJSON struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Volume        int64   `json:"volume"`
}

func (a *Alpaca) TopMovers(ctx context.Context, top int) (*models.TopMovers, error) {
	endpoint := fmt.Sprintf("%s/v1beta1/screener/stocks/movers?top=%s",
		strings.TrimRight(a.cfg.DataURL, "/"), url.QueryEscape(fmt.Sprint(top)))

	return call(ctx, a.c, "movers", "", func(ctx context.Context) (*models.TopMovers, error) {
		var resp moversResponse
		if err := a.c.getJSON(ctx, endpoint, a.authHeader(), &resp); err != nil {
			return nil, err
		}
		return &models.TopMovers{
			Gainers: toMovers(resp.Gainers),
			Losers:  toMovers(resp.Losers),
		}, nil
	})
}

func toMovers(in []moverJSON) []models.Mover {
	out := make([]models.Mover, 0, len(in))
	for _, m := range in {
		if m.Symbol == "" {
			continue
		}
		out = append(out, models.Mover(m))
	}
	return out
}

func (a *Alpaca) authHeader() http.Header {
	h := http.Header{}
	h.Set("APCA-API-KEY-ID", a.cfg.APIKey)
	h.Set("APCA-API-SECRET-KEY", a.cfg.APISecret)
	return h
}

func (a *Alpaca) Clock(ctx context.Context) (*models.MarketClock, error) {
	return call(ctx, a.c, "clock", "", func(ctx context.Context) (*models.MarketClock, error) {
		clk, err := a.clock.GetClock()
		if err != nil {
			return nil, err
		}
		if clk == nil {
			return nil, &shapeError{What: "empty clock"}
		}
		return &models.MarketClock{
			Timestamp: clk.Timestamp,
			IsOpen:    clk.IsOpen,
			NextOpen:  clk.NextOpen,
			NextClose: clk.NextClose,
		}, nil
	})
}
