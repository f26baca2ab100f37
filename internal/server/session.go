package server

import (
	"time"

	"warbler/internal/auth"
	"warbler/internal/middleware"
	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	sessionCookie = "session"

	localUserID   = "userID"
	localUsername = "username"
	localSession  = "session"
)

// LoadSession resolves the session cookie into the acting user.
// Invalid or revoked cookies, and cookies of deleted accounts, are cleared
// and the request continues anonymously.
func (s *Server) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(sessionCookie)
		if raw == "" {
			return c.Next()
		}

		claims, err := s.sessions.Parse(c.UserContext(), raw)
		if err != nil {
			expireCookie(c, sessionCookie)
			return c.Next()
		}
		userID, err := claims.UserID()
		if err != nil {
			expireCookie(c, sessionCookie)
			return c.Next()
		}

		// The account may have been deleted from another session.
		user, err := s.userService.GetUser(c.UserContext(), userID)
		if models.IsCode(err, models.CodeNotFound) {
			_ = s.sessions.Revoke(c.UserContext(), claims)
			expireCookie(c, sessionCookie)
			return c.Next()
		}
		if err != nil {
			return err
		}

		c.Locals(localUserID, user.ID)
		c.Locals(localUsername, user.Username)
		c.Locals(localSession, claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// AuthRequired sends anonymous requests back to / with an error flash.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUserID(c) == 0 {
			return denyAccess(c)
		}
		return c.Next()
	}
}

// denyAccess is the soft failure for unauthenticated or forbidden requests.
func denyAccess(c *fiber.Ctx) error {
	setFlash(c, flashDanger, "Access unauthorized.")
	return c.Redirect("/", fiber.StatusFound)
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}

func currentUsername(c *fiber.Ctx) string {
	name, _ := c.Locals(localUsername).(string)
	return name
}

// startSession issues a session token for user and sets it as a cookie.
func (s *Server) startSession(c *fiber.Ctx, user *models.User) error {
	token, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.sessions.TTL()),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	rotateCSRFToken(c)
	c.Locals(localUserID, user.ID)
	c.Locals(localUsername, user.Username)
	return nil
}

// endSession revokes the current token, if any, and clears the cookie.
func (s *Server) endSession(c *fiber.Ctx) {
	if claims, ok := c.Locals(localSession).(*auth.SessionClaims); ok {
		_ = s.sessions.Revoke(c.UserContext(), claims)
	}
	expireCookie(c, sessionCookie)
	rotateCSRFToken(c)
	c.Locals(localUserID, uint(0))
	c.Locals(localUsername, "")
	c.Locals(localSession, nil)
}

func expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
