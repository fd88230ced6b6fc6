package market

import (
	"context"
	"strconv"
	"time"

	"market-dashboard/internal/cache"
	"market-dashboard/internal/models"
	"market-dashboard/internal/source"
	"market-dashboard/pkg/utils"
)

// Rung is one (resolution, count) candidate of a ladder.
type Rung struct {
	Resolution models.Resolution
	Limit      int
}

func (r Rung) String() string {
	return r.Resolution.String() + "x" + strconv.Itoa(r.Limit)
}

// Ladder is tried in order, finest first, until a rung yields bars.
type Ladder []Rung

// IndexLadder covers roughly one trading day at each resolution.
var IndexLadder = Ladder{
	{models.OneMinute, 390},
	{models.FiveMinutes, 78},
	{models.FifteenMinutes, 26},
	{models.OneHour, 6},
	{models.OneDay, 1},
}

// FallbackPolicy decides whether an exhausted ladder gets one more fetch
// bounded to the previous session.
type FallbackPolicy struct {
	// Eligible reports whether an empty rung may trigger the fallback.
	// A nil Eligible disables the fallback.
	Eligible func(Rung) bool
	// Window returns the UTC bounds of the fallback fetch.
	Window func(now time.Time) (start, end time.Time)
	// Rung is the resolution and count requested inside Window.
	Rung Rung
}

// SessionFallback re-fetches 5Min x 78 over the last regular session when
// any eligible rung came back empty.
func SessionFallback(eligible func(Rung) bool) FallbackPolicy {
	return FallbackPolicy{
		Eligible: eligible,
		Window:   utils.LastSessionWindow,
		Rung:     Rung{models.FiveMinutes, 78},
	}
}

// IndexFallback is the policy for index charts: hourly and daily rungs are
// the ones that come back empty when the market is closed.
var IndexFallback = SessionFallback(func(r Rung) bool {
	return r.Resolution.IsDailyScale()
})

// DetailsFallback applies only to the short detail views.
var DetailsFallback = SessionFallback(func(r Rung) bool {
	return (r.Resolution == models.OneHour && r.Limit == 24) ||
		(r.Resolution == models.OneDay && r.Limit == 1)
})

// ResolveSeries returns the best available series for symbol. Each rung is
// read through its own latest-N bars key; the first non-empty rung wins and
// is cached under that key. An exhausted ladder may fall back to the last
// session per policy. The result may be empty, which is a valid chart.
func (s *Service) ResolveSeries(ctx context.Context, symbol string, ladder Ladder, policy FallbackPolicy) models.BarSeries {
	symbol = cache.NormalizeSymbol(symbol)
	log := s.logger.With().Str("symbol", symbol).Logger()
	fetchCtx := context.WithoutCancel(ctx)

	eligibleEmpty := false
	for i, rung := range ladder {
		log.Debug().Str("state", "FetchingChart").Int("rung", i).Str("candidate", rung.String()).Msg("Resolving series")

		key := cache.BarsKey(symbol, rung.Resolution, rung.Limit)
		if series, ok := cache.GetJSON[models.BarSeries](ctx, s.store, key); ok && !series.Empty() {
			s.cacheEvent("hit", key)
			return series
		}
		s.cacheEvent("miss", key)

		bars, err := s.prices.Bars(fetchCtx, source.BarsRequest{
			Symbol:     symbol,
			Resolution: rung.Resolution,
			Limit:      rung.Limit,
			Start:      source.DefaultStart(s.now(), rung.Resolution, rung.Limit),
		})
		if err == nil && len(bars) > 0 {
			series := models.BarSeries{Symbol: symbol, Timeframe: rung.Resolution.String(), Bars: bars}
			cache.SetJSON(fetchCtx, s.store, key, series, s.ttl.Bars)
			return series
		}
		if policy.Eligible != nil && policy.Eligible(rung) {
			eligibleEmpty = true
		}
	}

	if eligibleEmpty && policy.Window != nil {
		start, end := policy.Window(s.now())
		rung := policy.Rung
		log.Debug().Str("state", "FallbackFetch").Time("start", start).Time("end", end).Msg("Ladder exhausted")

		key := cache.RangeBarsKey(symbol, rung.Resolution, rung.Limit, start, end)
		if series, ok := cache.GetJSON[models.BarSeries](ctx, s.store, key); ok && !series.Empty() {
			s.cacheEvent("hit", key)
			return series
		}
		bars, err := s.prices.Bars(fetchCtx, source.BarsRequest{
			Symbol:     symbol,
			Resolution: rung.Resolution,
			Limit:      rung.Limit,
			Start:      start,
			End:        end,
		})
		if err == nil && len(bars) > 0 {
			series := models.BarSeries{Symbol: symbol, Timeframe: rung.Resolution.String(), Bars: bars}
			cache.SetJSON(fetchCtx, s.store, key, series, s.ttl.Bars)
			return series
		}
	}

	timeframe := ""
	if len(ladder) > 0 {
		timeframe = ladder[len(ladder)-1].Resolution.String()
	}
	return models.BarSeries{Symbol: symbol, Timeframe: timeframe, Bars: []models.Bar{}}
}
