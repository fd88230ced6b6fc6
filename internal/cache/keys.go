package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Entity names a cached entity kind for invalidation.
type Entity string

const (
	EntityQuote    Entity = "quote"
	EntityBars     Entity = "bars"
	EntityProfile  Entity = "profile"
	EntitySearch   Entity = "search"
	EntityDetails  Entity = "details"
	EntityIndices  Entity = "indices"
	EntityHoldings Entity = "holdings"
	EntityMovers   Entity = "movers"
	EntityNews     Entity = "news"
	EntityClock    Entity = "clock"
)

// Entities lists every addressable entity.
var Entities = []Entity{
	EntityQuote, EntityBars, EntityProfile, EntitySearch, EntityDetails,
	EntityIndices, EntityHoldings, EntityMovers, EntityNews, EntityClock,
}

// IndicesKey holds the bundle of all index snapshots.
const IndicesKey = "indices"

// ClockKey holds the market clock.
const ClockKey = "market:clock"

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func QuoteKey(symbol string) string {
	return "stock:quote:" + NormalizeSymbol(symbol)
}

func ProfileKey(symbol string) string {
	return "stock:profile:" + NormalizeSymbol(symbol)
}

// BarsKey addresses the latest limit bars at res.
func BarsKey(symbol string, res models.Resolution, limit int) string {
	return fmt.Sprintf("stock:bars:%s:%s:%d", NormalizeSymbol(symbol), res, limit)
}

// RangeBarsKey addresses bars fetched for an explicit window. A zero bound
// encodes as 0.
func RangeBarsKey(symbol string, res models.Resolution, limit int, start, end time.Time) string {
	return fmt.Sprintf("%s:range:%d-%d", BarsKey(symbol, res, limit), unixOrZero(start), unixOrZero(end))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func SearchKey(query string) string {
	return "search:" + normalizeText(query)
}

func DetailsKey(symbol string, res models.Resolution, limit int) string {
	return fmt.Sprintf("details:%s:%s:%d", NormalizeSymbol(symbol), res, limit)
}

func HoldingsKey(proxy string) string {
	return "holdings:" + NormalizeSymbol(proxy)
}

func MoversKey(count int) string {
	return "movers:" + strconv.Itoa(count)
}

func NewsKey(category string) string {
	return "news:" + normalizeText(category)
}

// KeyParams carries the inputs an entity key may need. Resolution is a raw
// token so callers from the CLI or HTTP can pass user input.
type KeyParams struct {
	Symbol     string
	Resolution string
	Limit      int
	Query      string
	Category   string
	Count      int
	Start      time.Time
	End        time.Time
}

// Key derives the cache key for entity from p. It returns ErrUnknownEntity
// or ErrMissingParam when p cannot address a single key.
func Key(entity Entity, p KeyParams) (string, error) {
	needSymbol := func() error {
		if NormalizeSymbol(p.Symbol) == "" {
			return apperrors.Wrapf(apperrors.ErrMissingParam, "%s requires a symbol", entity)
		}
		return nil
	}
	needSeries := func() (models.Resolution, error) {
		if err := needSymbol(); err != nil {
			return models.Resolution{}, err
		}
		if p.Resolution == "" {
			return models.Resolution{}, apperrors.Wrapf(apperrors.ErrMissingParam, "%s requires a resolution", entity)
		}
		res, err := models.ParseResolution(p.Resolution)
		if err != nil {
			return models.Resolution{}, apperrors.Wrap(apperrors.ErrInvalidResolution, err.Error())
		}
		if p.Limit <= 0 {
			return models.Resolution{}, apperrors.Wrapf(apperrors.ErrMissingParam, "%s requires a positive limit", entity)
		}
		return res, nil
	}

	switch entity {
	case EntityQuote:
		if err := needSymbol(); err != nil {
			return "", err
		}
		return QuoteKey(p.Symbol), nil
	case EntityProfile:
		if err := needSymbol(); err != nil {
			return "", err
		}
		return ProfileKey(p.Symbol), nil
	case EntityHoldings:
		if err := needSymbol(); err != nil {
			return "", err
		}
		return HoldingsKey(p.Symbol), nil
	case EntityBars:
		res, err := needSeries()
		if err != nil {
			return "", err
		}
		if !p.Start.IsZero() || !p.End.IsZero() {
			return RangeBarsKey(p.Symbol, res, p.Limit, p.Start, p.End), nil
		}
		return BarsKey(p.Symbol, res, p.Limit), nil
	case EntityDetails:
		res, err := needSeries()
		if err != nil {
			return "", err
		}
		return DetailsKey(p.Symbol, res, p.Limit), nil
	case EntitySearch:
		if normalizeText(p.Query) == "" {
			return "", apperrors.Wrap(apperrors.ErrMissingParam, "search requires a query")
		}
		return SearchKey(p.Query), nil
	case EntityMovers:
		if p.Count <= 0 {
			return "", apperrors.Wrap(apperrors.ErrMissingParam, "movers requires a positive count")
		}
		return MoversKey(p.Count), nil
	case EntityNews:
		category := p.Category
		if normalizeText(category) == "" {
			category = "general"
		}
		return NewsKey(category), nil
	case EntityIndices:
		return IndicesKey, nil
	case EntityClock:
		return ClockKey, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrUnknownEntity, "%q", entity)
	}
}
