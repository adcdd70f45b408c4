package web

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/ldapclient"
)

// organizationsTopHandler implements GET /ldap/organizations/top: every
// organization directly under the deployment's base DN.
func (a *App) organizationsTopHandler(c *fiber.Ctx) error {
	if a.OrgEntity() == "" {
		return writeError(c, direrr.Kind(direrr.ErrNotFound, "no organization entity is configured"))
	}

	entries, err := a.client.Search(c.UserContext(), a.cfg.LDAPBaseDN, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeOne,
		Filter: a.orgObjectClassFilter(""),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(entries)
}

// organizationGetHandler implements GET /ldap/organizations/:dn.
func (a *App) organizationGetHandler(c *fiber.Ctx) error {
	if a.OrgEntity() == "" {
		return writeError(c, direrr.Kind(direrr.ErrNotFound, "no organization entity is configured"))
	}

	dn := c.Params("dn")

	entries, err := a.client.Search(c.UserContext(), dn, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeBase,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		return writeError(c, err)
	}

	if len(entries) == 0 {
		return writeError(c, direrr.Kind(direrr.ErrNotFound, "%s", dn))
	}

	return c.JSON(entries[0])
}

// organizationSubnodesHandler implements GET
// /ldap/organizations/:dn/subnodes[?objectClass=...].
func (a *App) organizationSubnodesHandler(c *fiber.Ctx) error {
	if a.OrgEntity() == "" {
		return writeError(c, direrr.Kind(direrr.ErrNotFound, "no organization entity is configured"))
	}

	dn := c.Params("dn")

	entries, err := a.client.Search(c.UserContext(), dn, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeSub,
		Filter: a.orgObjectClassFilter(c.Query("objectClass")),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(entries)
}

// orgObjectClassFilter builds an objectClass filter for the organization
// branch: override takes precedence when the caller supplied one, else
// every object class the organization schema declares is OR-ed together.
func (a *App) orgObjectClassFilter(override string) string {
	if override != "" {
		return fmt.Sprintf("(objectClass=%s)", ldapclient.EscapeFilterValue(override))
	}

	classes := a.OrgObjectClasses()

	switch len(classes) {
	case 0:
		return "(objectClass=*)"
	case 1:
		return fmt.Sprintf("(objectClass=%s)", classes[0])
	default:
		var b strings.Builder

		b.WriteString("(|")

		for _, oc := range classes {
			fmt.Fprintf(&b, "(objectClass=%s)", oc)
		}

		b.WriteString(")")

		return b.String()
	}
}
