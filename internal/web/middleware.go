package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/authz"
)

// requireAuth authenticates every request before it reaches a protected
// handler. Two mechanisms are supported (spec.md §6 Non-goals: the core
// itself never issues credentials):
//
//   - a trusted header set by an external identity middleware (DM_AUTH_HEADER)
//   - a static bearer token list (DM_AUTH_BEARER_TOKENS), hashed and
//     compared in constant time by authz.TokenAuthenticator
//
// On success the resolved uid is attached to the request context via
// authz.WithUser so internal/authz's hook handlers can read it back.
func (a *App) requireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		if a.rateLimiter.IsBlocked(ip) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "too many failed authentication attempts"})
		}

		uid, ok := a.authenticate(c)
		if !ok {
			if a.rateLimiter.RecordAttempt(ip) {
				log.Warn().Str("ip", ip).Msg("authentication attempts exhausted, IP blocked")
			}

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}

		a.rateLimiter.ResetAttempts(ip)

		c.SetUserContext(authz.WithUser(c.UserContext(), uid))

		return c.Next()
	}
}

func (a *App) authenticate(c *fiber.Ctx) (string, bool) {
	if a.cfg.AuthHeader != "" {
		uid := c.Get(a.cfg.AuthHeader)
		if uid == "" {
			return "", false
		}

		return uid, true
	}

	if a.tokenAuth == nil {
		return "", false
	}

	header := c.Get(fiber.HeaderAuthorization)

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}

	return a.tokenAuth.Authenticate(token)
}
