// Package api serves the dashboard's REST surface over the market service.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"market-dashboard/internal/cache"
	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
	"market-dashboard/internal/market"
	"market-dashboard/internal/resilience"
	"market-dashboard/internal/store"
)

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string
	// Auth resolves the caller on protected routes. Nil trusts the
	// X-User-Id header.
	Auth Authenticator
}

// Server is the Fiber application and its collaborators.
type Server struct {
	app        *fiber.App
	svc        *market.Service
	watchlists store.WatchlistStore
	health     *resilience.HealthMonitor
	auth       Authenticator
	logger     zerolog.Logger
}

// New builds the application and registers every route. watchlists and
// health may be nil, which disables the watchlist routes and reports only
// the cache on /healthz.
func New(svc *market.Service, watchlists store.WatchlistStore, health *resilience.HealthMonitor, cfg Config, logger zerolog.Logger) *Server {
	if health == nil {
		health = resilience.NewHealthMonitor()
	}
	if cfg.Auth == nil {
		cfg.Auth = HeaderAuthenticator{Header: DefaultUserHeader}
	}

	s := &Server{
		svc:        svc,
		watchlists: watchlists,
		health:     health,
		auth:       cfg.Auth,
		logger:     logger.With().Str("component", "api").Logger(),
	}
	s.health.RegisterComponent("cache", cacheCheck(svc.Store()))

	s.app = fiber.New(fiber.Config{
		AppName:               "market-dashboard",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(s.requestContext)
	s.app.Use(corsMiddleware(cfg.AllowedOrigins))

	s.routes()
	return s
}

func corsMiddleware(origins []string) fiber.Handler {
	if len(origins) == 0 {
		return cors.New()
	}
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowCredentials: true,
	})
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)

	api := s.app.Group("/api")
	api.Get("/news", s.news)

	stocks := api.Group("/stocks")
	stocks.Get("/market-status", s.marketStatus)
	stocks.Get("/search", s.search)
	stocks.Get("/movers", s.movers)
	stocks.Get("/indices", s.indices)
	stocks.Get("/indices/:symbol/constituents", s.constituents)
	stocks.Post("/indices/refresh", s.requireAuth, s.refreshIndices)
	stocks.Post("/quotes", s.quotes)
	stocks.Get("/:symbol/profile", s.profile)
	stocks.Get("/:symbol/history", s.history)
	stocks.Get("/:symbol/details", s.details)
	stocks.Get("/:symbol", s.quote)

	if s.watchlists != nil {
		wl := api.Group("/watchlist", s.requireAuth)
		wl.Get("/", s.watchlist)
		wl.Post("/", s.addToWatchlist)
		wl.Delete("/", s.removeFromWatchlist)
		wl.Delete("/:symbol", s.removeFromWatchlist)
	}
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var (
		fe *fiber.Error
		ve *apperrors.ValidationError
	)
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.As(err, &ve):
		code, msg = fiber.StatusBadRequest, ve.Message
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		code, msg = fiber.StatusUnauthorized, "User not authenticated"
	}
	if code >= fiber.StatusInternalServerError {
		log := logging.FromContext(c.UserContext(), s.logger)
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func cacheCheck(st cache.Store) resilience.HealthCheck {
	return func(context.Context) resilience.ComponentHealth {
		state := st.State()
		h := resilience.ComponentHealth{
			Status:  resilience.HealthStatusHealthy,
			Details: map[string]interface{}{"state": string(state)},
		}
		if state != cache.StateConnected {
			h.Status = resilience.HealthStatusDegraded
			h.Message = "serving without cache"
		}
		return h
	}
}

func (s *Server) healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	return c.JSON(s.health.Check(ctx))
}
