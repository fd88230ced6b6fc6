package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-Id"

// DefaultUserHeader is the header a trusted auth proxy sets.
const DefaultUserHeader = "X-User-Id"

const localUserID = "userID"

// requestContext tags the request with an id and hangs a request-scoped
// logger off its context, then logs the outcome.
func (s *Server) requestContext(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)

	log := s.logger.With().Str("request_id", id).Logger()
	ctx := logging.WithRequestID(c.UserContext(), id)
	c.SetUserContext(logging.WithLogger(ctx, log))

	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("Request served")
	return err
}

// Authenticator resolves the caller's external user id.
type Authenticator interface {
	Authenticate(c *fiber.Ctx) (string, error)
}

// HeaderAuthenticator trusts a header set by an upstream auth proxy.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(c *fiber.Ctx) (string, error) {
	header := a.Header
	if header == "" {
		header = DefaultUserHeader
	}
	id := strings.TrimSpace(c.Get(header))
	if id == "" {
		return "", apperrors.ErrNotAuthenticated
	}
	return id, nil
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	id, err := s.auth.Authenticate(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "User not authenticated")
	}
	c.Locals(localUserID, id)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
