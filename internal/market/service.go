// Package market is the read-through orchestrator in front of the upstream
// sources. Every operation derives a cache key, returns a hit verbatim, and
// on a miss fans out to the sources and writes the assembled value back.
//
// Upstream failures never escape as errors from batch operations; they show
// up as missing entries or empty collections.
package market

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"market-dashboard/internal/cache"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/models"
	"market-dashboard/internal/source"
)

// TTLs are the cache lifetimes per entity.
type TTLs struct {
	Quote            time.Duration
	Profile          time.Duration
	Bars             time.Duration
	Search           time.Duration
	Movers           time.Duration
	Indices          time.Duration
	Details          time.Duration
	Holdings         time.Duration
	HoldingsFallback time.Duration
	News             time.Duration
	Clock            time.Duration
}

// DefaultTTLs returns the standard lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Quote:            60 * time.Second,
		Profile:          24 * time.Hour,
		Bars:             15 * time.Minute,
		Search:           time.Hour,
		Movers:           60 * time.Second,
		Indices:          60 * time.Second,
		Details:          30 * time.Second,
		Holdings:         6 * time.Hour,
		HoldingsFallback: time.Hour,
		News:             15 * time.Minute,
		Clock:            30 * time.Second,
	}
}

// Defaults applied by the operations themselves.
const (
	DefaultBarsLimit        = 100
	DefaultMoversCount      = 5
	MaxMoversCount          = 50
	DefaultConstituentLimit = 20
	MaxConstituentLimit     = 100
	DefaultNewsCategory     = "general"
)

// DefaultResolution is used when a bars or details query names none.
var DefaultResolution = models.OneDay

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// Service orchestrates cached reads over the three upstream sources.
type Service struct {
	store        cache.Store
	prices       source.PriceSource
	fundamentals source.FundamentalsSource
	indices      source.IndexSource
	ttl          TTLs
	logger       zerolog.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTLs overrides the cache lifetimes.
func WithTTLs(t TTLs) Option {
	return func(s *Service) { s.ttl = t }
}

// WithClock replaces the time source used for window derivation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the orchestrator. A nil store disables caching.
func NewService(store cache.Store, prices source.PriceSource, fundamentals source.FundamentalsSource, indices source.IndexSource, opts ...Option) *Service {
	if store == nil {
		store = cache.NopStore{}
	}
	s := &Service{
		store:        store,
		prices:       prices,
		fundamentals: fundamentals,
		indices:      indices,
		ttl:          DefaultTTLs(),
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing cache store.
func (s *Service) Store() cache.Store {
	return s.store
}

func (s *Service) cacheEvent(event, key string) {
	logging.LogCacheEvent(s.logger, event, key)
}

// readThrough returns the cached T at key or runs fetch and stores its
// result when keep approves it. The fetch runs detached from ctx's
// cancellation so an abandoned request still fills the cache.
func readThrough[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error), keep func(T) bool) (T, error) {
	if v, ok := cache.GetJSON[T](ctx, s.store, key); ok && keep(v) {
		s.cacheEvent("hit", key)
		return v, nil
	}
	s.cacheEvent("miss", key)

	fetchCtx := context.WithoutCancel(ctx)
	v, err := fetch(fetchCtx)
	if err != nil {
		return v, err
	}
	if keep(v) {
		cache.SetJSON(fetchCtx, s.store, key, v, ttl)
		s.cacheEvent("set", key)
	}
	return v, nil
}

func notNil[T any](v *T) bool { return v != nil }

func normalizeSymbol(raw string) (string, error) {
	sym := cache.NormalizeSymbol(raw)
	if !symbolPattern.MatchString(sym) {
		return "", apperrors.Wrapf(apperrors.ErrInvalidSymbol, "%q", raw)
	}
	return sym, nil
}

// GetQuote returns the latest quote. A nil quote comes with an error that
// classifies as ErrDataNotFound, ErrSourceUnavailable or ErrInvalidSymbol.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return readThrough(ctx, s, cache.QuoteKey(sym), s.ttl.Quote, func(ctx context.Context) (*models.Quote, error) {
		return s.prices.Quote(ctx, sym)
	}, notNil[models.Quote])
}

// GetQuotes fetches every distinct symbol concurrently and returns the ones
// that resolved, in first-seen order. It never fails as a whole.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) []models.Quote {
	seen := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := cache.NormalizeSymbol(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		unique = append(unique, sym)
	}

	results := make([]*models.Quote, len(unique))
	var g errgroup.Group
	for i, sym := range unique {
		i, sym := i, sym
		g.Go(func() error {
			q, err := s.GetQuote(ctx, sym)
			if err != nil {
				s.logger.Debug().Str("symbol", sym).Err(err).Msg("Dropping quote from batch")
				return nil
			}
			results[i] = q
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]models.Quote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

// BarsQuery selects a bar series. Zero fields take defaults: 100 bars at 1Day.
type BarsQuery struct {
	Symbol     string
	Resolution string
	Limit      int
	Start      time.Time
	End        time.Time
}

// GetBars returns a series, possibly empty. Only caller mistakes are errors.
// A query with explicit bounds is cached apart from the latest-N series.
func (s *Service) GetBars(ctx context.Context, q BarsQuery) (*models.BarSeries, error) {
	sym, err := normalizeSymbol(q.Symbol)
	if err != nil {
		return nil, err
	}
	res := DefaultResolution
	if q.Resolution != "" {
		res, err = models.ParseResolution(q.Resolution)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidResolution, err.Error())
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultBarsLimit
	}

	ranged := !q.Start.IsZero() || !q.End.IsZero()
	key := cache.BarsKey(sym, res, limit)
	start := q.Start
	if ranged {
		key = cache.RangeBarsKey(sym, res, limit, q.Start, q.End)
	} else {
		start = source.DefaultStart(s.now(), res, limit)
	}

	series, _ := readThrough(ctx, s, key, s.ttl.Bars, func(ctx context.Context) (models.BarSeries, error) {
		bars, err := s.prices.Bars(ctx, source.BarsRequest{
			Symbol:     sym,
			Resolution: res,
			Limit:      limit,
			Start:      start,
			End:        q.End,
		})
		if err != nil || bars == nil {
			bars = []models.Bar{}
		}
		return models.BarSeries{Symbol: sym, Timeframe: res.String(), Bars: bars}, nil
	}, func(bs models.BarSeries) bool { return len(bs.Bars) > 0 })

	return &series, nil
}

// GetProfile returns company reference data. Absence is reported like GetQuote.
func (s *Service) GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return readThrough(ctx, s, cache.ProfileKey(sym), s.ttl.Profile, func(ctx context.Context) (*models.CompanyProfile, error) {
		return s.fundamentals.Profile(ctx, sym)
	}, notNil[models.CompanyProfile])
}

// GetDetails aggregates profile, quote and a single-rung history for the
// detail view. Missing parts are nil or empty; the aggregate is still cached.
func (s *Service) GetDetails(ctx context.Context, symbol, resolution string, limit int) (*models.Details, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	res := DefaultResolution
	if resolution != "" {
		res, err = models.ParseResolution(resolution)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidResolution, err.Error())
		}
	}
	if limit <= 0 {
		limit = DefaultBarsLimit
	}

	d, _ := readThrough(ctx, s, cache.DetailsKey(sym, res, limit), s.ttl.Details, func(ctx context.Context) (*models.Details, error) {
		var (
			d models.Details
			g errgroup.Group
		)
		g.Go(func() error {
			d.Profile, _ = s.GetProfile(ctx, sym)
			return nil
		})
		g.Go(func() error {
			d.Quote, _ = s.GetQuote(ctx, sym)
			return nil
		})
		g.Go(func() error {
			d.History = s.ResolveSeries(ctx, sym, Ladder{{res, limit}}, DetailsFallback)
			return nil
		})
		_ = g.Wait()
		return &d, nil
	}, notNil[models.Details])

	return d, nil
}

// GetIndexSnapshots returns one snapshot per entry of IndexTable, in table
// order, whatever the upstreams managed to deliver.
func (s *Service) GetIndexSnapshots(ctx context.Context) *models.IndexBundle {
	b, _ := readThrough(ctx, s, cache.IndicesKey, s.ttl.Indices, func(ctx context.Context) (*models.IndexBundle, error) {
		return s.buildIndexBundle(ctx), nil
	}, func(b *models.IndexBundle) bool {
		return b != nil && len(b.Indices) == len(IndexTable) && bundleHasData(b)
	})
	return b
}

// RefreshIndices drops the cached bundle and rebuilds it.
func (s *Service) RefreshIndices(ctx context.Context) *models.IndexBundle {
	s.store.Delete(ctx, cache.IndicesKey)
	return s.GetIndexSnapshots(ctx)
}

func bundleHasData(b *models.IndexBundle) bool {
	for _, snap := range b.Indices {
		if snap.Value != nil || snap.ETF.Price != nil || len(snap.Data) > 0 {
			return true
		}
	}
	return false
}

func (s *Service) buildIndexBundle(ctx context.Context) *models.IndexBundle {
	n := len(IndexTable)
	for _, e := range IndexTable {
		s.logger.Debug().Str("index", e.Symbol).Str("state", "FetchingQuotes").Msg("Building snapshot")
	}

	var (
		g       errgroup.Group
		raw     = make([]*models.IndexQuote, n)
		proxies []models.Quote
		charts  = make([]models.BarSeries, n)
	)
	for i, e := range IndexTable {
		i, e := i, e
		g.Go(func() error {
			q, err := s.indices.IndexQuote(ctx, e.Symbol)
			if err == nil {
				raw[i] = q
			}
			return nil
		})
		g.Go(func() error {
			charts[i] = s.ResolveSeries(ctx, e.Proxy, IndexLadder, IndexFallback)
			return nil
		})
	}
	g.Go(func() error {
		proxies = s.GetQuotes(ctx, ProxySymbols())
		return nil
	})
	_ = g.Wait()

	byProxy := make(map[string]models.Quote, len(proxies))
	for _, q := range proxies {
		byProxy[q.Symbol] = q
	}

	bundle := &models.IndexBundle{Indices: make([]models.IndexSnapshot, 0, n)}
	for i, e := range IndexTable {
		snap := models.IndexSnapshot{
			ID:     e.Symbol,
			Name:   e.Name,
			Symbol: e.Symbol,
			Up:     true,
			ETF:    models.ProxyQuote{Symbol: e.Proxy, Up: true},
			Data:   chartPoints(charts[i]),
		}
		if q := raw[i]; q != nil {
			snap.Value = ptr(q.Price)
			snap.Change = ptr(q.Change)
			snap.ChangePercent = ptr(q.ChangePercent)
			snap.Up = q.ChangePercent >= 0
		}
		if pq, ok := byProxy[e.Proxy]; ok {
			snap.ETF.Price = ptr(pq.Price)
			snap.ETF.Change = ptr(pq.Change)
			snap.ETF.ChangePercent = ptr(pq.ChangePercent)
			snap.ETF.Up = pq.ChangePercent >= 0
		}

		state := "Assembled"
		if len(snap.Data) == 0 {
			state = "AssembledEmpty"
		}
		s.logger.Debug().Str("index", e.Symbol).Str("state", state).Int("points", len(snap.Data)).Msg("Snapshot built")
		bundle.Indices = append(bundle.Indices, snap)
	}
	return bundle
}

func chartPoints(series models.BarSeries) []models.ChartPoint {
	points := make([]models.ChartPoint, 0, len(series.Bars))
	for _, b := range series.Bars {
		points = append(points, models.ChartPoint{Time: b.Timestamp.UTC().Format(time.RFC3339), Value: b.Close})
	}
	return points
}

func ptr[T any](v T) *T { return &v }

// GetTopMovers returns the screener's top count gainers and losers. count
// defaults to 5 and is clamped to [1, 50].
func (s *Service) GetTopMovers(ctx context.Context, count int) *models.TopMovers {
	if count <= 0 {
		count = DefaultMoversCount
	}
	if count > MaxMoversCount {
		count = MaxMoversCount
	}
	m, err := readThrough(ctx, s, cache.MoversKey(count), s.ttl.Movers, func(ctx context.Context) (*models.TopMovers, error) {
		return s.prices.TopMovers(ctx, count)
	}, notNil[models.TopMovers])
	if err != nil || m == nil {
		return &models.TopMovers{Gainers: []models.Mover{}, Losers: []models.Mover{}}
	}
	return m
}

// RefreshMovers drops the cached screener result for count and refetches it.
func (s *Service) RefreshMovers(ctx context.Context, count int) *models.TopMovers {
	if count <= 0 {
		count = DefaultMoversCount
	}
	if count > MaxMoversCount {
		count = MaxMoversCount
	}
	s.store.Delete(ctx, cache.MoversKey(count))
	return s.GetTopMovers(ctx, count)
}

// SearchSymbols looks up tradable symbols. A blank query returns nothing
// and touches neither the cache nor the upstream.
func (s *Service) SearchSymbols(ctx context.Context, query string) []models.SearchResult {
	key := cache.SearchKey(query)
	if key == cache.SearchKey("") {
		return []models.SearchResult{}
	}
	results, err := readThrough(ctx, s, key, s.ttl.Search, func(ctx context.Context) ([]models.SearchResult, error) {
		r, err := s.indices.Search(ctx, query)
		if err == nil && r == nil {
			r = []models.SearchResult{}
		}
		return r, err
	}, func(r []models.SearchResult) bool { return r != nil })
	if err != nil || results == nil {
		return []models.SearchResult{}
	}
	return results
}

// GetEtfHoldings returns holdings by descending weight. When the live call
// yields nothing a bundled list is served and cached for a shorter time.
func (s *Service) GetEtfHoldings(ctx context.Context, proxy string) []models.EtfHolding {
	sym, err := normalizeSymbol(proxy)
	if err != nil {
		return []models.EtfHolding{}
	}
	key := cache.HoldingsKey(sym)
	if h, ok := cache.GetJSON[[]models.EtfHolding](ctx, s.store, key); ok && len(h) > 0 {
		s.cacheEvent("hit", key)
		return h
	}
	s.cacheEvent("miss", key)

	fetchCtx := context.WithoutCancel(ctx)
	ttl := s.ttl.Holdings
	holdings, err := s.indices.Holdings(fetchCtx, sym)
	if err != nil || len(holdings) == 0 {
		static, ok := source.StaticHoldings(sym)
		if !ok {
			return []models.EtfHolding{}
		}
		s.logger.Debug().Str("proxy", sym).Msg("Serving bundled holdings")
		holdings, ttl = static, s.ttl.HoldingsFallback
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].WeightOrZero() > holdings[j].WeightOrZero()
	})
	cache.SetJSON(fetchCtx, s.store, key, holdings, ttl)
	return holdings
}

// GetIndexConstituents pages through the holdings of the index's proxy.
func (s *Service) GetIndexConstituents(ctx context.Context, index string, limit, offset int) (*models.Constituents, error) {
	entry, ok := LookupIndex(index)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownIndex, "%q", index)
	}
	if limit <= 0 {
		limit = DefaultConstituentLimit
	}
	if limit > MaxConstituentLimit {
		limit = MaxConstituentLimit
	}
	if offset < 0 {
		offset = 0
	}

	holdings := s.GetEtfHoldings(ctx, entry.Proxy)
	page := []models.EtfHolding{}
	if offset < len(holdings) {
		end := offset + limit
		if end > len(holdings) {
			end = len(holdings)
		}
		page = holdings[offset:end]
	}
	return &models.Constituents{
		Index:        entry.Symbol,
		ETF:          entry.Proxy,
		Total:        len(holdings),
		Constituents: page,
	}, nil
}

// GetMarketNews returns headlines for category, "general" by default.
func (s *Service) GetMarketNews(ctx context.Context, category string) []models.NewsItem {
	if cache.NewsKey(category) == cache.NewsKey("") {
		category = DefaultNewsCategory
	}
	items, err := readThrough(ctx, s, cache.NewsKey(category), s.ttl.News, func(ctx context.Context) ([]models.NewsItem, error) {
		n, err := s.fundamentals.News(ctx, category)
		if err == nil && n == nil {
			n = []models.NewsItem{}
		}
		return n, err
	}, func(n []models.NewsItem) bool { return n != nil })
	if err != nil || items == nil {
		return []models.NewsItem{}
	}
	return items
}

// GetMarketStatus returns the exchange clock.
func (s *Service) GetMarketStatus(ctx context.Context) (*models.MarketClock, error) {
	return readThrough(ctx, s, cache.ClockKey, s.ttl.Clock, func(ctx context.Context) (*models.MarketClock, error) {
		return s.prices.Clock(ctx)
	}, notNil[models.MarketClock])
}

// Invalidate deletes the entry addressed by entity and params.
func (s *Service) Invalidate(ctx context.Context, entity cache.Entity, params cache.KeyParams) error {
	key, err := cache.Key(entity, params)
	if err != nil {
		return err
	}
	s.store.Delete(ctx, key)
	s.logger.Info().Str("event", "cache_invalidate").Str("key", key).Msg("Cache entry invalidated")
	return nil
}

// FlushAll clears the whole cache.
func (s *Service) FlushAll(ctx context.Context) error {
	if err := s.store.Flush(ctx); err != nil {
		return err
	}
	s.logger.Info().Str("event", "cache_flush").Msg("Cache flushed")
	return nil
}
