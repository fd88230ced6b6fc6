package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-dashboard/internal/cache"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/market"
	"market-dashboard/internal/models"
	"market-dashboard/internal/source"
	"market-dashboard/internal/store"
)

type stubPrices struct{}

func (stubPrices) Quote(_ context.Context, symbol string) (*models.Quote, error) {
	if symbol == "AAPL" || symbol == "MSFT" {
		return &models.Quote{Symbol: symbol, Price: 100}, nil
	}
	return nil, apperrors.NotFound("stub", "quote", symbol)
}

func (stubPrices) Bars(_ context.Context, req source.BarsRequest) ([]models.Bar, error) {
	return []models.Bar{{Timestamp: time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), Close: 99}}, nil
}

func (stubPrices) TopMovers(context.Context, int) (*models.TopMovers, error) {
	return &models.TopMovers{Gainers: []models.Mover{}, Losers: []models.Mover{}}, nil
}

func (stubPrices) Clock(context.Context) (*models.MarketClock, error) {
	return nil, apperrors.Unavailable("stub", "clock", "", apperrors.New("down"))
}

type stubFundamentals struct{}

func (stubFundamentals) Profile(_ context.Context, symbol string) (*models.CompanyProfile, error) {
	if symbol == "AAPL" {
		return &models.CompanyProfile{Symbol: symbol, Name: "Apple Inc"}, nil
	}
	return nil, apperrors.NotFound("stub", "profile", symbol)
}

func (stubFundamentals) News(_ context.Context, category string) ([]models.NewsItem, error) {
	return []models.NewsItem{{ID: 7, Category: category}}, nil
}

type stubIndices struct{}

func (stubIndices) IndexQuote(_ context.Context, symbol string) (*models.IndexQuote, error) {
	return &models.IndexQuote{Symbol: symbol, Price: 1000, ChangePercent: 0.5}, nil
}

func (stubIndices) Search(context.Context, string) ([]models.SearchResult, error) {
	return []models.SearchResult{{Symbol: "AAPL"}}, nil
}

func (stubIndices) Holdings(_ context.Context, proxy string) ([]models.EtfHolding, error) {
	return nil, apperrors.NotFound("stub", "holdings", proxy)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newLoggedServer(t, zerolog.Nop())
}

func newLoggedServer(t *testing.T, logger zerolog.Logger) *Server {
	t.Helper()
	svc := market.NewService(cache.NewMemoryStore(), stubPrices{}, stubFundamentals{}, stubIndices{})
	wl, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "wl.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { wl.Close() })
	return New(svc, wl, nil, Config{AllowedOrigins: []string{"http://localhost:3000"}}, logger)
}

func do(t *testing.T, s *Server, method, target, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestRoutes_StatusCodes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method, target, body string
		want                 int
		contains             string
	}{
		{"GET", "/api/stocks/AAPL", "", 200, `"symbol":"AAPL"`},
		{"GET", "/api/stocks/nope", "", 404, "Stock NOPE not found"},
		{"GET", "/api/stocks/AAPL/profile", "", 200, "Apple Inc"},
		{"GET", "/api/stocks/ZZZ/profile", "", 200, "null"},
		{"GET", "/api/stocks/AAPL/history?timeframe=1Day&limit=5", "", 200, `"timeframe":"1Day"`},
		{"GET", "/api/stocks/AAPL/history?timeframe=7Fortnight", "", 400, "Invalid timeframe"},
		{"GET", "/api/stocks/AAPL/history?start=yesterday", "", 400, "Invalid start"},
		{"GET", "/api/stocks/AAPL/details?timeframe=1Day&limit=30", "", 200, `"history"`},
		{"GET", "/api/stocks/market-status", "", 500, "Failed to fetch market status"},
		{"GET", "/api/stocks/search?q=apple", "", 200, "AAPL"},
		{"GET", "/api/stocks/search", "", 200, "[]"},
		{"GET", "/api/stocks/movers?top=3", "", 200, `"gainers":[]`},
		{"GET", "/api/stocks/indices", "", 200, `"indices"`},
		{"GET", "/api/stocks/indices/%5EGSPC/constituents?limit=2", "", 200, `"etf":"SPY"`},
		{"GET", "/api/stocks/indices/FTSE/constituents", "", 404, "Unknown index symbol"},
		{"POST", "/api/stocks/indices/refresh", "", 401, "not authenticated"},
		{"POST", "/api/stocks/quotes", `{"symbols":["AAPL","NOPE","msft"]}`, 200, `"quotes"`},
		{"POST", "/api/stocks/quotes", `{"symbols":[]}`, 400, "Symbols array is required"},
		{"GET", "/api/news", "", 200, `"category":"general"`},
		{"GET", "/api/watchlist", "", 401, "not authenticated"},
		{"GET", "/healthz", "", 200, `"cache"`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			resp, body := do(t, s, tt.method, tt.target, tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.want, body)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Fatalf("body %s does not contain %q", body, tt.contains)
			}
		})
	}
}

func TestQuotes_BatchLimit(t *testing.T) {
	s := newTestServer(t)
	symbols := make([]string, MaxBatchQuotes+1)
	for i := range symbols {
		symbols[i] = fmt.Sprintf(`"S%d"`, i)
	}
	resp, body := do(t, s, "POST", "/api/stocks/quotes", `{"symbols":[`+strings.Join(symbols, ",")+`]}`, nil)
	if resp.StatusCode != 400 || !strings.Contains(string(body), "Maximum 50") {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = do(t, s, "POST", "/api/stocks/quotes", `{"symbols":["AAPL","NOPE","msft"]}`, nil)
	var out struct {
		Quotes []models.Quote `json:"quotes"`
	}
	if err := json.Unmarshal(body, &out); err != nil || resp.StatusCode != 200 {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(out.Quotes) != 2 || out.Quotes[0].Symbol != "AAPL" || out.Quotes[1].Symbol != "MSFT" {
		t.Fatalf("quotes = %+v", out.Quotes)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	resp, _ := do(t, s, "GET", "/healthz", "", nil)
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatal("no request id assigned")
	}
	resp, _ = do(t, s, "GET", "/healthz", "", map[string]string{RequestIDHeader: "abc-123"})
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want the caller's", got)
	}
}

func TestIndicesSnapshotShape(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, "GET", "/api/stocks/indices", "", nil)

	var bundle models.IndexBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		t.Fatal(err)
	}
	if len(bundle.Indices) != 4 {
		t.Fatalf("indices = %d", len(bundle.Indices))
	}
	if bundle.Indices[0].Value == nil || *bundle.Indices[0].Value != 1000 {
		t.Fatalf("^GSPC = %+v", bundle.Indices[0])
	}
}

func TestWatchlistRoutes(t *testing.T) {
	s := newTestServer(t)
	user := map[string]string{DefaultUserHeader: "user_42"}

	resp, body := do(t, s, "GET", "/api/watchlist", "", user)
	if resp.StatusCode != 200 || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("empty list: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, s, "POST", "/api/watchlist", `{"symbol":"nvda"}`, user)
	if resp.StatusCode != 201 || !strings.Contains(string(body), `"symbol":"NVDA"`) {
		t.Fatalf("add: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, s, "POST", "/api/watchlist", `{}`, user)
	if resp.StatusCode != 400 {
		t.Fatalf("add without symbol: %d", resp.StatusCode)
	}
	resp, body = do(t, s, "POST", "/api/watchlist", `{"symbol":"AAPL","list":"../etc"}`, user)
	if resp.StatusCode != 400 || !strings.Contains(string(body), "invalid characters") {
		t.Fatalf("add to malformed list: %d %s", resp.StatusCode, body)
	}

	_, body = do(t, s, "GET", "/api/watchlist", "", user)
	var items []models.WatchlistItem
	if err := json.Unmarshal(body, &items); err != nil || len(items) != 1 {
		t.Fatalf("items = %s (%v)", body, err)
	}

	resp, _ = do(t, s, "DELETE", "/api/watchlist/NVDA", "", user)
	if resp.StatusCode != 204 {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp, _ = do(t, s, "DELETE", "/api/watchlist", `{"symbol":"NVDA"}`, user)
	if resp.StatusCode != 404 {
		t.Fatalf("second delete: %d", resp.StatusCode)
	}
}

func TestRefreshIndices_Authenticated(t *testing.T) {
	s := newTestServer(t)
	resp, body := do(t, s, "POST", "/api/stocks/indices/refresh", "", map[string]string{DefaultUserHeader: "admin"})
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"indices"`) {
		t.Fatalf("refresh: %d %s", resp.StatusCode, body)
	}
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(t, zerolog.New(&buf).Level(zerolog.InfoLevel))

	resp, body := do(t, s, "GET", "/api/stocks/market-status", "", map[string]string{RequestIDHeader: "req-42"})
	if resp.StatusCode != 500 || !strings.Contains(string(body), "Failed to fetch market status") {
		t.Fatalf("market status: %d %s", resp.StatusCode, body)
	}
	logs := buf.String()
	if !strings.Contains(logs, "Market status unavailable") || !strings.Contains(logs, `"request_id":"req-42"`) {
		t.Fatalf("logs = %s", logs)
	}

	buf.Reset()
	do(t, s, "POST", "/api/stocks/indices/refresh", "", map[string]string{DefaultUserHeader: "admin", RequestIDHeader: "req-43"})
	logs = buf.String()
	if !strings.Contains(logs, "Index refresh requested") || !strings.Contains(logs, `"user":"admin"`) || !strings.Contains(logs, `"request_id":"req-43"`) {
		t.Fatalf("logs = %s", logs)
	}
}

func TestInternalErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(t, zerolog.New(&buf).Level(zerolog.InfoLevel))
	s.watchlists.Close()

	resp, body := do(t, s, "GET", "/api/watchlist", "", map[string]string{DefaultUserHeader: "u1", RequestIDHeader: "req-44"})
	if resp.StatusCode != 500 || !strings.Contains(string(body), "Internal server error") {
		t.Fatalf("closed store: %d %s", resp.StatusCode, body)
	}
	logs := buf.String()
	if !strings.Contains(logs, "Request failed") || !strings.Contains(logs, `"path":"/api/watchlist"`) || !strings.Contains(logs, `"request_id":"req-44"`) {
		t.Fatalf("logs = %s", logs)
	}
}
