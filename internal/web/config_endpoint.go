package web

import "github.com/gofiber/fiber/v2"

// configHandler implements GET /config (spec.md §6).
func (a *App) configHandler(c *fiber.Ctx) error {
	a.entitiesMu.RLock()
	flatResources := make([]string, 0, len(a.entities))
	for plural := range a.entities {
		flatResources = append(flatResources, plural)
	}
	_, hasGroups := a.entities["groups"]
	a.entitiesMu.RUnlock()

	features := fiber.Map{"flatResources": flatResources}

	if hasGroups {
		features["groups"] = true
	}

	if a.OrgEntity() != "" {
		features["organizations"] = true
	}

	return c.JSON(fiber.Map{
		"apiPrefix": a.cfg.APIPrefix,
		"ldapBase":  a.cfg.LDAPBaseDN,
		"features":  features,
	})
}
