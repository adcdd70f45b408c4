package web

import (
	"github.com/gofiber/fiber/v2"
)

// healthHandler reports pool and cache statistics, adapted from the
// teacher's health.go to the single always-on LdapClient this core keeps
// (there is no optional "service account" mode here: every API request is
// already behind requireAuth; the health routes themselves are not).
func (a *App) healthHandler(c *fiber.Ctx) error {
	stats := a.client.Stats()

	poolHealthy := stats.TotalConnections > 0 || stats.AcquiredCount == 0

	return c.JSON(fiber.Map{
		"overall_healthy": poolHealthy,
		"connection_pool": stats,
		"cache_size":      a.client.CacheSize(),
		"plugins_loaded":  a.pluginOrder,
	})
}

// readinessHandler reports whether the process is ready to serve traffic.
func (a *App) readinessHandler(c *fiber.Ctx) error {
	stats := a.client.Stats()

	if stats.FailedCount > 0 && stats.TotalConnections == 0 {
		c.Status(fiber.StatusServiceUnavailable)

		return c.JSON(fiber.Map{"status": "not ready", "reason": "no healthy LDAP connections"})
	}

	return c.JSON(fiber.Map{"status": "ready"})
}

// livenessHandler reports that the process is up and serving requests.
func (a *App) livenessHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}
