package server

import (
	"errors"
	"log/slog"
	"time"

	"warbler/internal/cache"
	"warbler/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

const (
	csrfHeader     = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
	csrfContextKey = "csrf"
)

var errMissingCSRFToken = errors.New("missing csrf token")

// csrfMiddleware checks a double-submit token on every unsafe request.
// Tokens are rotated whenever the session changes (see rotateCSRFToken).
// A failed check is handled like any other unauthorized request.
func (s *Server) csrfMiddleware() fiber.Handler {
	cfg := csrf.Config{
		CookieName:     "csrf_",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.config.IsProduction(),
		CookieSameSite: "Lax",
		Expiration:     time.Duration(s.config.SessionTTLHours) * time.Hour,
		ContextKey:     csrfContextKey,
		Extractor:      extractCSRFToken,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			middleware.Logger.WarnContext(c.UserContext(), "csrf check failed",
				slog.String("path", c.Path()), slog.String("error", err.Error()))
			return denyAccess(c)
		},
	}
	if s.redis != nil {
		cfg.Storage = cache.NewFiberStorage(s.redis, "csrf:")
	}
	return csrf.New(cfg)
}

// extractCSRFToken accepts the token from the X-CSRF-Token header or the csrf_token form field.
func extractCSRFToken(c *fiber.Ctx) (string, error) {
	if token := c.Get(csrfHeader); token != "" {
		return token, nil
	}
	if token := c.FormValue(csrfFormField); token != "" {
		return token, nil
	}
	return "", errMissingCSRFToken
}

func csrfToken(c *fiber.Ctx) string {
	token, _ := c.Locals(csrfContextKey).(string)
	return token
}

// rotateCSRFToken drops the current token when a session starts or ends so a
// token seen before the change is refused after it. Safe requests keep theirs,
// since the view they render already carries it.
func rotateCSRFToken(c *fiber.Ctx) {
	if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
		return
	}
	if err := c.Locals(csrf.ConfigDefault.HandlerContextKey).(*csrf.CSRFHandler).DeleteToken(c); err != nil && !errors.Is(err, csrf.ErrTokenNotFound) {
		middleware.Logger.WarnContext(c.UserContext(), "csrf token rotation failed", slog.String("error", err.Error()))
	}
	c.Locals(csrfContextKey, "")
}
