package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
	"github.com/dirctl/ldapdm/internal/schema"
)

// Config is FlatEntity's constructor input (spec.md §4.4). It is usually
// derived once from a schema.Schema by FromSchema, but is exposed directly
// so tests and the organization entity itself (which needs no org-link
// plumbing) can build one by hand.
type Config struct {
	Base              string
	MainAttribute     string
	ObjectClass       []string
	DefaultAttributes schema.Entry
	SingularName      string
	PluralName        string
	HookPrefix        string

	// OrgLinkAttribute and OrgPathAttribute name the attributes (if any)
	// that carry role organizationLink / organizationPath on this entity's
	// own schema. Empty means this entity kind does not participate in the
	// org hierarchy (e.g. it is the organization kind itself, or a kind with
	// no org membership).
	OrgLinkAttribute string
	OrgPathAttribute string

	// OrgPathSourceAttribute names the attribute read off a *target*
	// organization entry to obtain its path string when Move resolves a
	// destination. Defaults to OrgPathAttribute when empty, since in
	// practice every schema in a deployment tags the same attribute name
	// with role organizationPath.
	OrgPathSourceAttribute string
}

// ldapClient is the subset of *ldapclient.Client that FlatEntity depends
// on. Declaring it here (rather than taking the concrete type) lets tests
// exercise FlatEntity's validation and org-link wiring with a fake, without
// a live directory.
type ldapClient interface {
	Search(ctx context.Context, base string, opts ldapclient.SearchOpts) ([]schema.Entry, error)
	Add(ctx context.Context, dn string, entry schema.Entry) error
	Modify(ctx context.Context, dn string, changes schema.ChangeSet) (bool, error)
	Rename(ctx context.Context, dn, newRDN string) error
	Move(ctx context.Context, dn, newRDN, newParentDN string) error
	Delete(ctx context.Context, dns []string) error
	ResolveDN(ctx context.Context, dn string) (string, bool, error)
}

// FlatEntity is generic CRUD over one LDAP branch, described in full at the
// package doc comment.
type FlatEntity struct {
	cfg    Config
	client ldapClient
	schema *schema.Schema
	hooks  *hooks.Registry
	names  hooks.EntityHooks
}

// FromSchema builds both a Config and a FlatEntity from a loaded schema
// document.
func FromSchema(s *schema.Schema, client ldapClient, registry *hooks.Registry) *FlatEntity {
	cfg := Config{
		Base:              s.Entity.Base,
		MainAttribute:     s.Entity.MainAttribute,
		ObjectClass:       s.Entity.ObjectClass,
		DefaultAttributes: entryFromDefaults(s.Entity.DefaultAttributes),
		SingularName:      s.Entity.SingularName,
		PluralName:        s.Entity.PluralName,
		HookPrefix:        s.Entity.Name,
	}

	if attr, ok := s.RoleAttribute(schema.RoleOrganizationLink); ok {
		cfg.OrgLinkAttribute = attr
	}

	if attr, ok := s.RoleAttribute(schema.RoleOrganizationPath); ok {
		cfg.OrgPathAttribute = attr
		cfg.OrgPathSourceAttribute = attr
	}

	return New(cfg, s, client, registry)
}

func entryFromDefaults(defaults map[string]any) schema.Entry {
	out := make(schema.Entry, len(defaults))

	for k, v := range defaults {
		switch vv := v.(type) {
		case []any:
			vals := make([]string, len(vv))
			for i, item := range vv {
				vals[i] = fmt.Sprintf("%v", item)
			}

			out[k] = vals
		case []string:
			out[k] = append([]string(nil), vv...)
		default:
			out[k] = []string{fmt.Sprintf("%v", vv)}
		}
	}

	return out
}

// New builds a FlatEntity directly from a Config.
func New(cfg Config, s *schema.Schema, client ldapClient, registry *hooks.Registry) *FlatEntity {
	if cfg.OrgPathSourceAttribute == "" {
		cfg.OrgPathSourceAttribute = cfg.OrgPathAttribute
	}

	return &FlatEntity{
		cfg:    cfg,
		client: client,
		schema: s,
		hooks:  registry,
		names:  hooks.EntityHookNames(cfg.HookPrefix),
	}
}

// Names exposes the computed per-instance hook names so plugins can
// subscribe to this entity kind specifically.
func (e *FlatEntity) Names() hooks.EntityHooks { return e.names }

func (e *FlatEntity) dn(idOrDN string) string {
	return ldapclient.NormalizeDNWithBase(idOrDN, e.cfg.MainAttribute, e.cfg.Base)
}

// List runs a sub-scope search filtered on mainAttribute (optionally
// combined with an additional caller-supplied filter) and returns a mapping
// from identifier (the first scalar of mainAttribute) to its entry.
func (e *FlatEntity) List(ctx context.Context, filter string) (map[string]schema.Entry, error) {
	combined := fmt.Sprintf("(%s=*)", e.cfg.MainAttribute)
	if filter != "" {
		combined = fmt.Sprintf("(&%s%s)", combined, filter)
	}

	entries, err := e.client.Search(ctx, e.cfg.Base, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeSub,
		Filter: combined,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]schema.Entry, len(entries))

	for _, entry := range entries {
		id := firstValue(entry, e.cfg.MainAttribute)
		if id == "" {
			continue
		}

		out[id] = entry
	}

	return out, nil
}

// Get normalizes idOrDN and performs a base-scope lookup.
func (e *FlatEntity) Get(ctx context.Context, idOrDN string) (schema.Entry, error) {
	dn := e.dn(idOrDN)

	entries, err := e.client.Search(ctx, dn, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeBase,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("entity: %s: %w", dn, errNotFound)
	}

	return entries[0], nil
}

// Add validates attrs against the schema (create), merges defaultAttributes
// and the identifier into the main attribute, and delegates to
// LdapClient.Add.
func (e *FlatEntity) Add(ctx context.Context, id string, attrs schema.Entry) (schema.Entry, []string, error) {
	dn := e.dn(id)

	merged := e.cfg.DefaultAttributes.Clone()
	for k, v := range attrs {
		merged[k] = v
	}

	merged[e.cfg.MainAttribute] = []string{id}

	if len(e.cfg.ObjectClass) > 0 {
		if _, ok := merged["objectClass"]; !ok {
			merged["objectClass"] = append([]string(nil), e.cfg.ObjectClass...)
		}
	}

	if raw, err := e.runChained(ctx, e.names.AddRequest, merged); err != nil {
		return nil, nil, err
	} else if raw != nil {
		merged = raw.(schema.Entry)
	}

	validated, err := schema.ValidateCreate(ctx, e.schema, merged, e.client)
	if err != nil {
		return nil, nil, err
	}

	if err := e.client.Add(ctx, dn, validated); err != nil {
		return nil, nil, err
	}

	validated["dn"] = []string{dn}

	warnings := e.runFanoutWarnings(ctx, e.names.AddDone, validated)

	return validated, warnings, nil
}

// runChained dispatches to the per-entity-kind hook named name, if this
// FlatEntity was built with a hook registry. A nil registry (as in unit
// tests that exercise validation in isolation) is a no-op that returns the
// payload unchanged.
func (e *FlatEntity) runChained(ctx context.Context, name string, payload any) (any, error) {
	if e.hooks == nil {
		return payload, nil
	}

	return e.hooks.RunChained(ctx, name, payload)
}

// runFanoutWarnings behaves like runFanout but also returns each failing
// handler's error text, so HTTP handlers can surface SPEC_FULL.md §11's
// warnings[] field without breaking the fire-and-forget success contract.
func (e *FlatEntity) runFanoutWarnings(ctx context.Context, name string, payload any) []string {
	if e.hooks == nil {
		return nil
	}

	return e.hooks.RunFanoutCollectWarnings(ctx, name, payload)
}

// Modify validates changes (modify), enforces fixed-attribute immutability
// via the schema layer, and delegates to LdapClient.Modify.
func (e *FlatEntity) Modify(ctx context.Context, idOrDN string, changes schema.ChangeSet) (bool, []string, error) {
	if raw, err := e.runChained(ctx, e.names.ModifyRequest, changes); err != nil {
		return false, nil, err
	} else if raw != nil {
		changes = raw.(schema.ChangeSet)
	}

	if err := schema.ValidateModify(ctx, e.schema, changes, e.client); err != nil {
		return false, nil, err
	}

	applied, err := e.client.Modify(ctx, e.dn(idOrDN), changes)
	if err != nil {
		return false, nil, err
	}

	warnings := e.runFanoutWarnings(ctx, e.names.ModifyDone, changes)

	return applied, warnings, nil
}

// Rename performs an RDN-only move, updating the value of mainAttribute.
func (e *FlatEntity) Rename(ctx context.Context, id, newID string) ([]string, error) {
	newRDN := fmt.Sprintf("%s=%s", e.cfg.MainAttribute, newID)

	if err := e.client.Rename(ctx, e.dn(id), newRDN); err != nil {
		return nil, err
	}

	warnings := e.runFanoutWarnings(ctx, e.names.RenameDone, newID)

	return warnings, nil
}

// MoveResult is what Move returns to callers (spec.md §4.4).
type MoveResult struct {
	DepartmentLink string `json:"departmentLink"`
	DepartmentPath string `json:"departmentPath"`
}

// Move resolves targetOrgDn, reads its path, and sets this entry's
// organizationLink/organizationPath accordingly. It does not relocate the
// LDAP entry itself unless the originating schema set MoveChangesDN.
func (e *FlatEntity) Move(ctx context.Context, idOrDN, targetOrgDN string, moveChangesDN bool) (MoveResult, []string, error) {
	if e.cfg.OrgLinkAttribute == "" || e.cfg.OrgPathAttribute == "" {
		return MoveResult{}, nil, fmt.Errorf("entity: %s does not participate in the organization hierarchy", e.cfg.SingularName)
	}

	orgEntries, err := e.client.Search(ctx, targetOrgDN, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeBase,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		return MoveResult{}, nil, err
	}

	if len(orgEntries) == 0 {
		return MoveResult{}, nil, fmt.Errorf("entity: organization %s: %w", targetOrgDN, errNotFound)
	}

	path := firstValue(orgEntries[0], e.cfg.OrgPathSourceAttribute)

	dn := e.dn(idOrDN)

	_, err = e.client.Modify(ctx, dn, schema.ChangeSet{
		Replace: schema.Entry{
			e.cfg.OrgLinkAttribute: {targetOrgDN},
			e.cfg.OrgPathAttribute: {path},
		},
	})
	if err != nil {
		return MoveResult{}, nil, err
	}

	if moveChangesDN {
		rdn := dn[:strings.IndexByte(dn, ',')]
		if err := e.client.Move(ctx, dn, rdn, targetOrgDN); err != nil {
			return MoveResult{}, nil, err
		}
	}

	result := MoveResult{DepartmentLink: targetOrgDN, DepartmentPath: path}
	warnings := e.runFanoutWarnings(ctx, e.names.MoveDone, result)

	return result, warnings, nil
}

// Delete normalizes idOrDN and delegates to LdapClient.Delete.
func (e *FlatEntity) Delete(ctx context.Context, idOrDN string) ([]string, error) {
	dn := e.dn(idOrDN)

	if raw, err := e.runChained(ctx, e.names.DeleteRequest, dn); err != nil {
		return nil, err
	} else if raw != nil {
		dn = raw.(string)
	}

	if err := e.client.Delete(ctx, []string{dn}); err != nil {
		return nil, err
	}

	warnings := e.runFanoutWarnings(ctx, e.names.DeleteDone, dn)

	return warnings, nil
}

// Search is a free-form sub-scope search scoped to this entity's base.
func (e *FlatEntity) Search(ctx context.Context, filter string, attributes []string) ([]schema.Entry, error) {
	return e.client.Search(ctx, e.cfg.Base, ldapclient.SearchOpts{
		Scope:      ldapclient.ScopeSub,
		Filter:     filter,
		Attributes: attributes,
	})
}

func firstValue(entry schema.Entry, attr string) string {
	vals, ok := entry[attr]
	if !ok || len(vals) == 0 {
		return ""
	}

	return vals[0]
}
