package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/ldapclient"
	"github.com/dirctl/ldapdm/internal/schema"
)

// lookupEntity resolves the :plural route param to its entityOps and
// schema, or a not-found error for spec.md §6's generic per-entity-kind
// 404.
func (a *App) lookupEntity(plural string) (entityOps, *schema.Schema, error) {
	a.entitiesMu.RLock()
	defer a.entitiesMu.RUnlock()

	ent, ok := a.entities[plural]
	if !ok {
		return nil, nil, direrr.Kind(direrr.ErrNotFound, "unknown entity type %q", plural)
	}

	return ent, a.entitySchemas[plural], nil
}

func (a *App) moveChangesDN(plural string) bool {
	a.entitiesMu.RLock()
	defer a.entitiesMu.RUnlock()

	return a.entityMoveChangesDN[plural]
}

// listHandler implements GET /ldap/<pluralName> (spec.md §6): optional
// match=<value>&attribute=<name> filtering and attributes=a,b,c
// projection.
func (a *App) listHandler(c *fiber.Ctx) error {
	ent, _, err := a.lookupEntity(c.Params("plural"))
	if err != nil {
		return writeError(c, err)
	}

	filter := ""

	if match := c.Query("match"); match != "" {
		attribute := c.Query("attribute")
		if attribute == "" {
			return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "attribute is required when match is set"))
		}

		filter = fmt.Sprintf("(%s=%s)", attribute, ldapclient.EscapeFilterValue(match))
	}

	entries, err := ent.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}

	if wanted := c.Query("attributes"); wanted != "" {
		entries = projectEntries(entries, splitCSV(wanted))
	}

	return c.JSON(entries)
}

// getHandler implements GET /ldap/<pluralName>/:id.
func (a *App) getHandler(c *fiber.Ctx) error {
	ent, _, err := a.lookupEntity(c.Params("plural"))
	if err != nil {
		return writeError(c, err)
	}

	entry, err := ent.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(entry)
}

// createHandler implements POST /ldap/<pluralName>.
func (a *App) createHandler(c *fiber.Ctx) error {
	ent, s, err := a.lookupEntity(c.Params("plural"))
	if err != nil {
		return writeError(c, err)
	}

	var attrs schema.Entry
	if err := c.BodyParser(&attrs); err != nil {
		return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "malformed request body: %v", err))
	}

	id := firstValue(attrs, s.Entity.MainAttribute)
	if id == "" {
		return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "%s", s.Entity.MainAttribute))
	}

	created, warnings, err := ent.Add(c.UserContext(), id, attrs)
	if err != nil {
		return writeError(c, err)
	}

	c.Status(fiber.StatusCreated)

	return c.JSON(fiber.Map{"entry": created, "warnings": warnings})
}

// modifyHandler implements PUT /ldap/<pluralName>/:id.
func (a *App) modifyHandler(c *fiber.Ctx) error {
	ent, _, err := a.lookupEntity(c.Params("plural"))
	if err != nil {
		return writeError(c, err)
	}

	var changes schema.ChangeSet
	if err := c.BodyParser(&changes); err != nil {
		return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "malformed request body: %v", err))
	}

	applied, warnings, err := ent.Modify(c.UserContext(), c.Params("id"), changes)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": applied, "warnings": warnings})
}

// deleteHandler implements DELETE /ldap/<pluralName>/:id.
func (a *App) deleteHandler(c *fiber.Ctx) error {
	ent, _, err := a.lookupEntity(c.Params("plural"))
	if err != nil {
		return writeError(c, err)
	}

	warnings, err := ent.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "warnings": warnings})
}

type moveRequest struct {
	TargetOrgDn string `json:"targetOrgDn"`
}

// moveHandler implements POST /ldap/<pluralName>/:id/move. Organizations
// relocate their own DN (spec.md §6 "{success, newDn} for organizations");
// every other entity kind only rewrites its organizationLink/
// organizationPath, unless its schema set moveChangesDN.
func (a *App) moveHandler(c *fiber.Ctx) error {
	plural := c.Params("plural")

	var body moveRequest
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "malformed request body: %v", err))
	}

	if body.TargetOrgDn == "" {
		return writeError(c, direrr.Kind(direrr.ErrRequiredMissing, "targetOrgDn"))
	}

	if plural == a.OrgEntity() {
		return a.moveOrganization(c, body.TargetOrgDn)
	}

	ent, _, err := a.lookupEntity(plural)
	if err != nil {
		return writeError(c, err)
	}

	result, warnings, err := ent.Move(c.UserContext(), c.Params("id"), body.TargetOrgDn, a.moveChangesDN(plural))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"departmentPath": result.DepartmentPath,
		"departmentLink": result.DepartmentLink,
		"warnings":       warnings,
	})
}

func (a *App) moveOrganization(c *fiber.Ctx, targetOrgDN string) error {
	dn := a.client.NormalizeDN(c.Params("id"))
	rdn := rdnPart(dn)

	if err := a.client.Move(c.UserContext(), dn, rdn, targetOrgDN); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "newDn": rdn + "," + targetOrgDN})
}

func rdnPart(dn string) string {
	for i := 0; i < len(dn); i++ {
		if dn[i] == ',' {
			return dn[:i]
		}
	}

	return dn
}

func firstValue(entry schema.Entry, attr string) string {
	vals, ok := entry[attr]
	if !ok || len(vals) == 0 {
		return ""
	}

	return vals[0]
}

func splitCSV(raw string) []string {
	var out []string

	start := 0

	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}

			start = i + 1
		}
	}

	return out
}

// projectEntries keeps only the requested attributes (plus "dn") on every
// entry in entries.
func projectEntries(entries map[string]schema.Entry, attrs []string) map[string]schema.Entry {
	wanted := make(map[string]struct{}, len(attrs)+1)
	wanted["dn"] = struct{}{}

	for _, a := range attrs {
		wanted[a] = struct{}{}
	}

	out := make(map[string]schema.Entry, len(entries))

	for id, entry := range entries {
		projected := make(schema.Entry, len(wanted))

		for k, v := range entry {
			if _, ok := wanted[k]; ok {
				projected[k] = v
			}
		}

		out[id] = projected
	}

	return out
}
