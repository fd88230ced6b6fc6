package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/models"
	"market-dashboard/pkg/utils"
)

const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// usExchanges are the Yahoo exchange codes accepted by symbol search.
var usExchanges = map[string]bool{
	"NYQ": true, "NYE": true, "NMS": true, "NAS": true, "ASE": true,
	"AMEX": true, "ARCX": true, "ARCA": true, "BATS": true,
}

// Yahoo is the index-chart source. It needs no key but rejects requests
// without a browser User-Agent.
type Yahoo struct {
	baseURL string
	c       *caller
}

// NewYahoo builds the adapter. baseURL defaults to query1.finance.yahoo.com.
func NewYahoo(baseURL string, opts Options) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Yahoo{baseURL: strings.TrimRight(baseURL, "/"), c: newCaller("yahoo", opts)}
}

func (y *Yahoo) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", yahooUserAgent)
	return h
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				ShortName            string   `json:"shortName"`
				LongName             string   `json:"longName"`
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				ChartPreviousClose   *float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh float64  `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64  `json:"regularMarketDayLow"`
				RegularMarketTime    int64    `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) IndexQuote(ctx context.Context, symbol string) (*models.IndexQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	endpoint := y.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?interval=1d&range=5d"

	return call(ctx, y.c, "chart", symbol, func(ctx context.Context) (*models.IndexQuote, error) {
		var resp yahooChartResponse
		if err := y.c.getJSON(ctx, endpoint, y.header(), &resp); err != nil {
			return nil, err
		}
		if e := resp.Chart.Error; e != nil {
			if strings.EqualFold(e.Code, "Not Found") {
				return nil, apperrors.ErrDataNotFound
			}
			return nil, &shapeError{What: e.Code + ": " + e.Description}
		}
		if len(resp.Chart.Result) == 0 {
			return nil, apperrors.ErrDataNotFound
		}

		meta := resp.Chart.Result[0].Meta
		if meta.RegularMarketPrice == nil || meta.ChartPreviousClose == nil {
			return nil, &shapeError{What: "chart meta without price"}
		}
		price, prev := *meta.RegularMarketPrice, *meta.ChartPreviousClose

		name := meta.ShortName
		if name == "" {
			name = meta.LongName
		}
		if name == "" {
			name = meta.Symbol
		}
		sym := meta.Symbol
		if sym == "" {
			sym = symbol
		}

		return &models.IndexQuote{
			Symbol:        sym,
			Name:          name,
			Price:         price,
			Change:        utils.Round2(price - prev),
			ChangePercent: utils.Round2(utils.PercentChange(price, prev)),
			PreviousClose: prev,
			DayHigh:       meta.RegularMarketDayHigh,
			DayLow:        meta.RegularMarketDayLow,
			Timestamp:     meta.RegularMarketTime,
		}, nil
	})
}

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

// Search returns US-listed equities and ETFs matching query. Index symbols
// are never returned.
func (y *Yahoo) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}
	q := url.Values{
		"q":                {query},
		"quotesCount":      {"10"},
		"newsCount":        {"0"},
		"enableFuzzyQuery": {"false"},
		"quotesQueryId":    {"tss_match_phrase_query"},
	}
	endpoint := y.baseURL + "/v1/finance/search?" + q.Encode()

	return call(ctx, y.c, "search", query, func(ctx context.Context) ([]models.SearchResult, error) {
		var resp yahooSearchResponse
		if err := y.c.getJSON(ctx, endpoint, y.header(), &resp); err != nil {
			return nil, err
		}
		results := make([]models.SearchResult, 0, len(resp.Quotes))
		for _, r := range resp.Quotes {
			if r.Symbol == "" || strings.HasPrefix(r.Symbol, "^") {
				continue
			}
			if r.QuoteType != "EQUITY" && r.QuoteType != "ETF" {
				continue
			}
			if !usExchanges[strings.ToUpper(r.Exchange)] {
				continue
			}
			name := r.ShortName
			if name == "" {
				name = r.LongName
			}
			if name == "" {
				name = r.Symbol
			}
			results = append(results, models.SearchResult{
				Symbol:   r.Symbol,
				Name:     name,
				Type:     r.QuoteType,
				Exchange: r.Exchange,
			})
		}
		return results, nil
	})
}

type yahooRaw struct {
	Raw *float64 `json:"raw"`
}

type yahooHoldingsResponse struct {
	QuoteSummary struct {
		Result []struct {
			TopHoldings struct {
				Holdings []struct {
					Symbol         string   `json:"symbol"`
					HoldingName    string   `json:"holdingName"`
					HoldingPercent yahooRaw `json:"holdingPercent"`
				} `json:"holdings"`
			} `json:"topHoldings"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

// Holdings returns the ETF's top holdings with weights in percent.
func (y *Yahoo) Holdings(ctx context.Context, proxy string) ([]models.EtfHolding, error) {
	proxy = strings.ToUpper(strings.TrimSpace(proxy))
	endpoint := y.baseURL + "/v10/finance/quoteSummary/" + url.PathEscape(proxy) + "?modules=topHoldings"

	return call(ctx, y.c, "holdings", proxy, func(ctx context.Context) ([]models.EtfHolding, error) {
		var resp yahooHoldingsResponse
		if err := y.c.getJSON(ctx, endpoint, y.header(), &resp); err != nil {
			return nil, err
		}
		if e := resp.QuoteSummary.Error; e != nil {
			return nil, &shapeError{What: e.Code + ": " + e.Description}
		}
		if len(resp.QuoteSummary.Result) == 0 {
			return nil, apperrors.ErrDataNotFound
		}

		raw := resp.QuoteSummary.Result[0].TopHoldings.Holdings
		holdings := make([]models.EtfHolding, 0, len(raw))
		for _, h := range raw {
			if h.Symbol == "" {
				continue
			}
			holding := models.EtfHolding{Symbol: h.Symbol, Name: h.HoldingName}
			if h.HoldingPercent.Raw != nil {
				w := utils.Round2(*h.HoldingPercent.Raw * 100)
				holding.Weight = &w
			}
			holdings = append(holdings, holding)
		}
		return holdings, nil
	})
}
