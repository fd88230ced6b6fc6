package source

import (
	"context"
	"net/url"
	"strings"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
)

// Finnhub is the fundamentals source.
type Finnhub struct {
	baseURL string
	apiKey  string
	c       *caller
}

// NewFinnhub builds the adapter. Without an API key every call reports the
// provider unavailable.
func NewFinnhub(baseURL, apiKey string, opts Options) *Finnhub {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	f := &Finnhub{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		c:       newCaller("finnhub", opts),
	}
	if apiKey == "" {
		f.c.logger.Warn().Msg("FINNHUB_API_KEY not set, company profiles and news unavailable")
	}
	return f
}

type finnhubProfile struct {
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Exchange             string  `json:"exchange"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	IPO                  string  `json:"ipo"`
	Logo                 string  `json:"logo"`
	MarketCapitalization float64 `json:"marketCapitalization"` // millions
	Name                 string  `json:"name"`
	ShareOutstanding     float64 `json:"shareOutstanding"` // millions
	Ticker               string  `json:"ticker"`
	WebURL               string  `json:"weburl"`
}

var errNoAPIKey = apperrors.New("finnhub api key not configured")

func (f *Finnhub) unconfigured(op, symbol string) error {
	return apperrors.Unavailable(f.c.name, op, symbol, errNoAPIKey)
}

func (f *Finnhub) Profile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if f.apiKey == "" {
		return nil, f.unconfigured("profile2", symbol)
	}
	return call(ctx, f.c, "profile2", symbol, func(ctx context.Context) (*models.CompanyProfile, error) {
		q := url.Values{"symbol": {symbol}, "token": {f.apiKey}}
		var p finnhubProfile
		if err := f.c.getJSON(ctx, f.baseURL+"/stock/profile2?"+q.Encode(), nil, &p); err != nil {
			return nil, err
		}
		// Finnhub answers unknown symbols with {}.
		if p.Name == "" {
			return nil, apperrors.ErrDataNotFound
		}
		ticker := p.Ticker
		if ticker == "" {
			ticker = symbol
		}
		return &models.CompanyProfile{
			Symbol:            ticker,
			Name:              p.Name,
			Logo:              p.Logo,
			Industry:          p.FinnhubIndustry,
			Country:           p.Country,
			Exchange:          p.Exchange,
			Currency:          p.Currency,
			MarketCap:         p.MarketCapitalization * 1e6,
			SharesOutstanding: p.ShareOutstanding * 1e6,
			Website:           p.WebURL,
			IPO:               p.IPO,
		}, nil
	})
}

type finnhubNews struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// News returns market headlines for category. Items without a headline or
// link are dropped.
func (f *Finnhub) News(ctx context.Context, category string) ([]models.NewsItem, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "general"
	}
	if f.apiKey == "" {
		return nil, f.unconfigured("news", category)
	}
	return call(ctx, f.c, "news", category, func(ctx context.Context) ([]models.NewsItem, error) {
		q := url.Values{"category": {category}, "token": {f.apiKey}}
		var raw []finnhubNews
		if err := f.c.getJSON(ctx, f.baseURL+"/news?"+q.Encode(), nil, &raw); err != nil {
			return nil, err
		}
		items := make([]models.NewsItem, 0, len(raw))
		for _, n := range raw {
			if n.Headline == "" || n.URL == "" {
				continue
			}
			items = append(items, models.NewsItem{
				ID:       n.ID,
				Category: n.Category,
				Datetime: n.Datetime,
				Headline: n.Headline,
				Image:    n.Image,
				Related:  n.Related,
				Source:   n.Source,
				Summary:  n.Summary,
				URL:      n.URL,
			})
		}
		return items, nil
	})
}
