// Package source adapts the third-party market-data providers to the
// dashboard's canonical models.
//
// Adapters never return raw transport errors. Every failure surfaces as an
// errors.SourceError classified as ErrSourceUnavailable (the provider could
// not answer) or ErrDataNotFound (the provider answered that it has nothing).
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/models"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/security"
)

// PriceSource serves tradable-symbol prices and bars.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	// Bars returns bars in ascending time order. An empty slice with a nil
	// error means the provider has no bars for the window.
	Bars(ctx context.Context, req BarsRequest) ([]models.Bar, error)
	TopMovers(ctx context.Context, top int) (*models.TopMovers, error)
	Clock(ctx context.Context) (*models.MarketClock, error)
}

// FundamentalsSource serves company reference data and news.
type FundamentalsSource interface {
	Profile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
	News(ctx context.Context, category string) ([]models.NewsItem, error)
}

// IndexSource serves raw index values, symbol search and ETF holdings.
type IndexSource interface {
	IndexQuote(ctx context.Context, symbol string) (*models.IndexQuote, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	Holdings(ctx context.Context, proxy string) ([]models.EtfHolding, error)
}

// BarsRequest selects a bar window. A zero Start is derived with DefaultStart.
type BarsRequest struct {
	Symbol     string
	Resolution models.Resolution
	Limit      int
	Start      time.Time
	End        time.Time
}

// MaxLookback caps how far back a derived start may reach.
const MaxLookback = 365 * 24 * time.Hour

// DefaultStart derives the window start for "latest limit bars at res":
// now minus resolution x limit, capped at MaxLookback.
func DefaultStart(now time.Time, res models.Resolution, limit int) time.Time {
	if limit <= 0 {
		limit = 1
	}
	per := res.Duration()
	if per <= 0 || time.Duration(limit) > MaxLookback/per {
		return now.Add(-MaxLookback)
	}
	return now.Add(-per * time.Duration(limit))
}

// Options carries what every adapter needs.
type Options struct {
	Timeout    time.Duration
	Breakers   *resilience.CircuitBreakerRegistry
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
	// RateLimits caps calls per minute by provider name. Absent or
	// non-positive entries are unlimited.
	RateLimits map[string]int
}

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 10 * time.Second

// caller runs upstream calls under a timeout and the provider's breaker,
// and classifies whatever comes back.
type caller struct {
	name    string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	limiter *resilience.RateLimiter
	http    *http.Client
	logger  zerolog.Logger
	now     func() time.Time
}

func newCaller(name string, opts Options) *caller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Breakers == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.IsFailure = TripsBreaker
		opts.Breakers = resilience.NewCircuitBreakerRegistry(cfg, opts.Logger)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &caller{
		name:    name,
		timeout: opts.Timeout,
		breaker: opts.Breakers.Get(name),
		http:    opts.HTTPClient,
		logger:  logging.WithSource(opts.Logger, name),
		now:     opts.Now,
	}
	if perMinute := opts.RateLimits[name]; perMinute > 0 {
		c.limiter = resilience.NewRateLimiter(perMinute, rateBurst(perMinute))
	}
	return c
}

// rateBurst allows ten seconds' worth of calls at once.
func rateBurst(perMinute int) int {
	if b := perMinute / 6; b > 1 {
		return b
	}
	return 1
}

// TripsBreaker reports whether err reflects provider health. An explicit
// "nothing here" answer does not.
func TripsBreaker(err error) bool {
	return !apperrors.Is(err, apperrors.ErrDataNotFound)
}

func call[T any](ctx context.Context, c *caller, op, symbol string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn().Str("operation", op).Msg("Rate limit wait abandoned")
			return zero, apperrors.Unavailable(c.name, op, symbol, err)
		}
	}

	v, err := resilience.ExecuteWithResult(c.breaker, ctx, fn)
	if err == nil {
		logging.LogAPICall(c.logger, "GET", op, time.Since(start), nil)
		return v, nil
	}

	classified := c.classify(op, symbol, err)
	if apperrors.Is(classified, apperrors.ErrDataNotFound) {
		c.logger.Debug().Str("operation", op).Str("symbol", symbol).Msg("No data from provider")
	} else {
		logging.LogAPICall(c.logger.With().Str("symbol", symbol).Logger(), "GET", op, time.Since(start), err)
	}
	return zero, classified
}

func (c *caller) classify(op, symbol string, err error) error {
	var se *apperrors.SourceError
	if apperrors.As(err, &se) {
		return se
	}
	if apperrors.Is(err, apperrors.ErrDataNotFound) {
		return apperrors.NotFound(c.name, op, symbol)
	}
	return apperrors.Unavailable(c.name, op, symbol, err)
}

// statusError is a non-2xx answer.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// shapeError is a response that decoded but lacks required fields.
type shapeError struct {
	What string
}

func (e *shapeError) Error() string {
	return "unexpected response shape: " + e.What
}

// getJSON issues GET url and decodes a 2xx body into out. A 404 is
// reported as ErrDataNotFound.
func (c *caller) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return security.RedactError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrDataNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &shapeError{What: err.Error()}
	}
	return nil
}
