package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/market"
	"market-dashboard/internal/models"
)

// MaxBatchQuotes bounds POST /quotes.
const MaxBatchQuotes = 50

func (s *Server) marketStatus(c *fiber.Ctx) error {
	clock, err := s.svc.GetMarketStatus(c.UserContext())
	if err != nil {
		log := logging.FromContext(c.UserContext(), s.logger)
		log.Warn().Err(err).Msg("Market status unavailable")
		return fail(c, fiber.StatusInternalServerError, "Failed to fetch market status")
	}
	return c.JSON(clock)
}

func (s *Server) search(c *fiber.Ctx) error {
	return c.JSON(s.svc.SearchSymbols(c.UserContext(), c.Query("q")))
}

func (s *Server) movers(c *fiber.Ctx) error {
	return c.JSON(s.svc.GetTopMovers(c.UserContext(), c.QueryInt("top", market.DefaultMoversCount)))
}

func (s *Server) indices(c *fiber.Ctx) error {
	return c.JSON(s.svc.GetIndexSnapshots(c.UserContext()))
}

func (s *Server) refreshIndices(c *fiber.Ctx) error {
	log := logging.FromContext(c.UserContext(), s.logger)
	log.Info().Str("user", userID(c)).Msg("Index refresh requested")
	return c.JSON(s.svc.RefreshIndices(c.UserContext()))
}

func (s *Server) constituents(c *fiber.Ctx) error {
	symbol := strings.TrimSpace(c.Params("symbol"))
	if symbol == "" {
		return fail(c, fiber.StatusBadRequest, "Index symbol is required")
	}
	page, err := s.svc.GetIndexConstituents(c.UserContext(), symbol,
		c.QueryInt("limit", market.DefaultConstituentLimit), c.QueryInt("offset", 0))
	if apperrors.Is(err, apperrors.ErrUnknownIndex) {
		return fail(c, fiber.StatusNotFound, "Unknown index symbol: "+symbol)
	}
	if err != nil {
		return err
	}
	return c.JSON(page)
}

type quotesRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) quotes(c *fiber.Ctx) error {
	var req quotesRequest
	if err := c.BodyParser(&req); err != nil || len(req.Symbols) == 0 {
		return fail(c, fiber.StatusBadRequest, "Symbols array is required")
	}
	if len(req.Symbols) > MaxBatchQuotes {
		return fail(c, fiber.StatusBadRequest, fmt.Sprintf("Maximum %d symbols allowed", MaxBatchQuotes))
	}
	return c.JSON(fiber.Map{"quotes": s.svc.GetQuotes(c.UserContext(), req.Symbols)})
}

func (s *Server) quote(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	q, err := s.svc.GetQuote(c.UserContext(), symbol)
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidSymbol):
		return fail(c, fiber.StatusBadRequest, "Invalid symbol")
	case err != nil || q == nil:
		return fail(c, fiber.StatusNotFound, fmt.Sprintf("Stock %s not found", strings.ToUpper(symbol)))
	}
	return c.JSON(q)
}

func (s *Server) profile(c *fiber.Ctx) error {
	p, err := s.svc.GetProfile(c.UserContext(), c.Params("symbol"))
	if apperrors.Is(err, apperrors.ErrInvalidSymbol) {
		return fail(c, fiber.StatusBadRequest, "Invalid symbol")
	}
	if p == nil {
		// absence is a valid answer for the profile card
		return c.JSON(nil)
	}
	return c.JSON(p)
}

func parseBound(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) history(c *fiber.Ctx) error {
	start, err := parseBound(c.Query("start"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid start")
	}
	end, err := parseBound(c.Query("end"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid end")
	}

	series, err := s.svc.GetBars(c.UserContext(), market.BarsQuery{
		Symbol:     c.Params("symbol"),
		Resolution: c.Query("timeframe"),
		Limit:      c.QueryInt("limit", market.DefaultBarsLimit),
		Start:      start,
		End:        end,
	})
	if err != nil {
		return seriesError(c, err)
	}
	return c.JSON(series)
}

func (s *Server) details(c *fiber.Ctx) error {
	d, err := s.svc.GetDetails(c.UserContext(), c.Params("symbol"), c.Query("timeframe"),
		c.QueryInt("limit", market.DefaultBarsLimit))
	if err != nil {
		return seriesError(c, err)
	}
	return c.JSON(d)
}

func seriesError(c *fiber.Ctx, err error) error {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidResolution):
		return fail(c, fiber.StatusBadRequest, "Invalid timeframe")
	case apperrors.Is(err, apperrors.ErrInvalidSymbol):
		return fail(c, fiber.StatusBadRequest, "Invalid symbol")
	}
	return err
}

func (s *Server) news(c *fiber.Ctx) error {
	return c.JSON(s.svc.GetMarketNews(c.UserContext(), c.Query("category")))
}

type watchlistRequest struct {
	Symbol string `json:"symbol"`
	List   string `json:"list"`
}

func (s *Server) watchlist(c *fiber.Ctx) error {
	items, err := s.watchlists.Items(c.UserContext(), userID(c), c.Query("list", models.DefaultWatchlistName))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) addToWatchlist(c *fiber.Ctx) error {
	var req watchlistRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		return fail(c, fiber.StatusBadRequest, "Stock symbol is required")
	}
	item, err := s.watchlists.AddItem(c.UserContext(), userID(c), req.List, req.Symbol)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (s *Server) removeFromWatchlist(c *fiber.Ctx) error {
	var req watchlistRequest
	if sym := c.Params("symbol"); sym != "" {
		req.Symbol = sym
	} else if sym := c.Query("symbol"); sym != "" {
		req.Symbol = sym
	} else {
		_ = c.BodyParser(&req)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return fail(c, fiber.StatusBadRequest, "Stock symbol is required")
	}

	err := s.watchlists.RemoveItem(c.UserContext(), userID(c), c.Query("list", req.List), req.Symbol)
	if apperrors.Is(err, apperrors.ErrDataNotFound) {
		return fail(c, fiber.StatusNotFound, "Stock not on watchlist")
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
