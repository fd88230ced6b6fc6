package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/internal/resilience"
)

func testOptions() Options {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.IsFailure = TripsBreaker
	return Options{
		Timeout:  time.Second,
		Breakers: resilience.NewCircuitBreakerRegistry(cfg, zerolog.Nop()),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) },
	}
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFinnhubProfile(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/profile2" || r.URL.Query().Get("token") != "key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			fmt.Fprint(w, `{"name":"Apple Inc","ticker":"AAPL","marketCapitalization":1500,"shareOutstanding":15.5,"finnhubIndustry":"Technology","weburl":"https://apple.com"}`)
		case "ZZZZ":
			fmt.Fprint(w, `{}`)
		case "BAD":
			fmt.Fprint(w, `[1,2,3]`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	f := NewFinnhub(srv.URL, "key", testOptions())
	ctx := context.Background()

	p, err := f.Profile(ctx, "aapl")
	if err != nil {
		t.Fatalf("Profile(AAPL): %v", err)
	}
	if p.MarketCap != 1.5e9 || p.SharesOutstanding != 15.5e6 {
		t.Errorf("units not scaled: marketCap=%v shares=%v", p.MarketCap, p.SharesOutstanding)
	}
	if p.Industry != "Technology" || p.Website != "https://apple.com" {
		t.Errorf("unexpected profile %+v", p)
	}

	if _, err := f.Profile(ctx, "ZZZZ"); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("empty profile: err = %v, want not found", err)
	}
	if _, err := f.Profile(ctx, "BAD"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("malformed body: err = %v, want unavailable", err)
	}
	if _, err := f.Profile(ctx, "FAIL"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("500: err = %v, want unavailable", err)
	}
}

func TestFinnhubWithoutKey(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })
	f := NewFinnhub(srv.URL, "", testOptions())

	if _, err := f.Profile(context.Background(), "AAPL"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if _, err := f.News(context.Background(), ""); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("news err = %v, want unavailable", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("unconfigured adapter made %d requests", hits.Load())
	}
}

func TestFinnhubNewsDropsIncompleteItems(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") != "general" {
			http.Error(w, "category", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `[{"id":1,"headline":"Stocks rally","url":"https://x/1","datetime":1700000000},{"id":2,"headline":"","url":"https://x/2"}]`)
	})
	items, err := NewFinnhub(srv.URL, "key", testOptions()).News(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("items = %+v", items)
	}
}

func TestTimeoutIsUnavailable(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewYahoo(srv.URL, opts).IndexQuote(context.Background(), "^GSPC")
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("call was not bounded by the timeout: %s", time.Since(start))
	}
}

func TestRateLimitBoundsCalls(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `[{"id":1,"headline":"Stocks rally","url":"https://x/1"}]`)
	})
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	opts.RateLimits = map[string]int{"finnhub": 1}
	f := NewFinnhub(srv.URL, "key", opts)

	if _, err := f.News(context.Background(), "general"); err != nil {
		t.Fatal(err)
	}
	_, err := f.News(context.Background(), "general")
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want unavailable while throttled", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("upstream hits = %d, want 1", hits.Load())
	}
}

func TestTransportErrorHidesToken(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := NewFinnhub(srv.URL, "c0ffee1234567890", testOptions()).Profile(context.Background(), "AAPL")
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(err.Error(), "c0ffee1234567890") {
		t.Fatalf("token in error: %v", err)
	}
}

func TestYahooIndexQuote(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/v8/finance/chart/^GSPC":
			fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"^GSPC","shortName":"S&P 500","regularMarketPrice":5010.5,"chartPreviousClose":5000,"regularMarketDayHigh":5020,"regularMarketDayLow":4990,"regularMarketTime":1760450000}}],"error":null}}`)
		case "/v8/finance/chart/^NOPE":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		case "/v8/finance/chart/^SHAPE":
			fmt.Fprint(w, `{"chart":{"result":[{"meta":{"symbol":"^SHAPE"}}],"error":null}}`)
		}
	})
	y := NewYahoo(srv.URL, testOptions())
	ctx := context.Background()

	q, err := y.IndexQuote(ctx, "^gspc")
	if err != nil {
		t.Fatal(err)
	}
	if q.Price != 5010.5 || q.Change != 10.5 || q.ChangePercent != 0.21 {
		t.Errorf("unexpected quote %+v", q)
	}

	if _, err := y.IndexQuote(ctx, "^NOPE"); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("unknown index: err = %v", err)
	}
	if _, err := y.IndexQuote(ctx, "^SHAPE"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("missing price: err = %v", err)
	}
}

func TestYahooSearchFilters(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quotes":[
			{"symbol":"AAPL","shortname":"Apple Inc.","quoteType":"EQUITY","exchange":"NMS"},
			{"symbol":"APC.F","shortname":"Apple Frankfurt","quoteType":"EQUITY","exchange":"FRA"},
			{"symbol":"^GSPC","shortname":"S&P 500","quoteType":"INDEX","exchange":"SNP"},
			{"symbol":"SPY","longname":"SPDR S&P 500 ETF","quoteType":"ETF","exchange":"PCX"},
			{"symbol":"QQQ","quoteType":"ETF","exchange":"nas"},
			{"symbol":"AAPL240119C","quoteType":"OPTION","exchange":"OPR"}
		]}`)
	})
	results, err := NewYahoo(srv.URL, testOptions()).Search(context.Background(), "apple")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Symbol != "AAPL" || results[1].Symbol != "QQQ" || results[1].Name != "QQQ" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestYahooHoldings(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/SPY") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"quoteSummary":{"result":[{"topHoldings":{"holdings":[{"symbol":"MSFT","holdingName":"Microsoft","holdingPercent":{"raw":0.0654}},{"symbol":"AAPL","holdingName":"Apple","holdingPercent":{"raw":0.0712}}]}}],"error":null}}`)
	})
	y := NewYahoo(srv.URL, testOptions())

	holdings, err := y.Holdings(context.Background(), "spy")
	if err != nil {
		t.Fatal(err)
	}
	if len(holdings) != 2 || holdings[1].WeightOrZero() != 7.12 {
		t.Fatalf("holdings = %+v", holdings)
	}
	if _, err := y.Holdings(context.Background(), "QQQ"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("401: err = %v", err)
	}
}

func TestStaticHoldings(t *testing.T) {
	for _, proxy := range []string{"SPY", "qqq", "DIA", "IWM"} {
		h, ok := StaticHoldings(proxy)
		if !ok || len(h) == 0 {
			t.Errorf("no static holdings for %s", proxy)
		}
	}
	if _, ok := StaticHoldings("XYZ"); ok {
		t.Error("unexpected static holdings for XYZ")
	}
}

type fakeMarketData struct {
	snapshot *marketdata.Snapshot
	bars     []marketdata.Bar
	err      error
	lastBars marketdata.GetBarsRequest
}

func (f *fakeMarketData) GetSnapshot(string, marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeMarketData) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.lastBars = req
	return f.bars, f.err
}

type fakeClock struct{}

func (fakeClock) GetClock() (*alpaca.Clock, error) {
	return &alpaca.Clock{IsOpen: true}, nil
}

func TestAlpacaQuoteFromSnapshot(t *testing.T) {
	ts := time.Date(2026, 10, 14, 19, 59, 0, 0, time.UTC)
	md := &fakeMarketData{snapshot: &marketdata.Snapshot{
		LatestTrade:  &marketdata.Trade{Price: 101, Timestamp: ts},
		DailyBar:     &marketdata.Bar{Open: 99, High: 102, Low: 98, Close: 100.5, Volume: 1200},
		PrevDailyBar: &marketdata.Bar{Close: 99},
	}}
	a := NewAlpacaWithClients(AlpacaConfig{APIKey: "k", APISecret: "s"}, md, fakeClock{}, testOptions())

	q, err := a.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatal(err)
	}
	if q.Symbol != "AAPL" || q.Price != 101 || q.Change != 2 || q.ChangePercent != 2.02 {
		t.Errorf("unexpected quote %+v", q)
	}
	if q.Open != 99 || q.Volume != 1200 || q.Timestamp != ts.Format(time.RFC3339Nano) {
		t.Errorf("unexpected daily fields %+v", q)
	}

	// No trade: daily close stands in; no prior bar: change is zero.
	md.snapshot = &marketdata.Snapshot{DailyBar: &marketdata.Bar{Close: 50}}
	q, err = a.Quote(context.Background(), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if q.Price != 50 || q.Change != 0 || q.ChangePercent != 0 {
		t.Errorf("unexpected fallback quote %+v", q)
	}

	md.snapshot = &marketdata.Snapshot{}
	if _, err := a.Quote(context.Background(), "EMPTY"); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("empty snapshot: err = %v", err)
	}

	md.err = errors.New("dial tcp: connection refused")
	if _, err := a.Quote(context.Background(), "AAPL"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("sdk error: err = %v", err)
	}
}

func TestAlpacaBarsDerivesStart(t *testing.T) {
	md := &fakeMarketData{bars: []marketdata.Bar{
		{Timestamp: time.Date(2026, 10, 14, 13, 30, 0, 0, time.UTC), Close: 1, Volume: 7},
	}}
	opts := testOptions()
	a := NewAlpacaWithClients(AlpacaConfig{APIKey: "k", APISecret: "s", Feed: "iex"}, md, fakeClock{}, opts)

	bars, err := a.Bars(context.Background(), BarsRequest{Symbol: "spy", Resolution: models.FiveMinutes, Limit: 78})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || bars[0].Volume != 7 {
		t.Fatalf("bars = %+v", bars)
	}
	wantStart := opts.Now().Add(-78 * 5 * time.Minute)
	if !md.lastBars.Start.Equal(wantStart) || md.lastBars.TotalLimit != 78 {
		t.Fatalf("request = %+v, want start %s", md.lastBars, wantStart)
	}
	if md.lastBars.TimeFrame != marketdata.NewTimeFrame(5, marketdata.Min) {
		t.Fatalf("timeframe = %v", md.lastBars.TimeFrame)
	}
}

func TestAlpacaMovers(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "k" || r.URL.Query().Get("top") != "3" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"gainers":[{"symbol":"UP","price":10,"change":2,"percent_change":25}],"losers":[{"symbol":"DN","price":5,"change":-1,"percent_change":-16.67}]}`)
	})
	a := NewAlpacaWithClients(AlpacaConfig{APIKey: "k", APISecret: "s", DataURL: srv.URL}, &fakeMarketData{}, fakeClock{}, testOptions())

	m, err := a.TopMovers(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Gainers) != 1 || m.Gainers[0].PercentChange != 25 || len(m.Losers) != 1 {
		t.Fatalf("movers = %+v", m)
	}
}

func TestBreakerOpensOnRepeatedFailure(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})
	y := NewYahoo(srv.URL, testOptions())

	for i := 0; i < 10; i++ {
		if _, err := y.IndexQuote(context.Background(), "^DJI"); !errors.Is(err, apperrors.ErrSourceUnavailable) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if got := hits.Load(); got != int32(resilience.DefaultCircuitBreakerConfig().FailureThreshold) {
		t.Fatalf("upstream hit %d times, want breaker to stop at threshold", got)
	}
}
