package orgconsistency

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
)

// ldapClient is the subset of *ldapclient.Client this package depends on.
type ldapClient interface {
	Search(ctx context.Context, base string, opts ldapclient.SearchOpts) ([]ldapclient.Entry, error)
	Modify(ctx context.Context, dn string, changes ldapclient.ChangeSet) (bool, error)
}

// Config names the attributes and object classes this deployment uses for
// its organization hierarchy. A single attribute name per role is assumed
// across every entity schema, which holds in practice since an operator
// names these roles once and reuses the convention everywhere (FlatEntity's
// own org-link wiring makes the same assumption, see internal/entity).
type Config struct {
	LinkAttribute    string   // e.g. "organizationLink" / "departmentLink"
	PathAttribute    string   // e.g. "organizationPath" / "departmentPath"
	OrgObjectClasses []string // e.g. {"organizationalUnit", "organization"}
	Base             string   // search root for descendant/linker lookups
}

// Consistency holds the wiring Register needs; it is stateless beyond cfg
// and client, since every check is a function of current directory state.
type Consistency struct {
	cfg    Config
	client ldapClient
}

// New builds a Consistency enforcer. client must be the same LdapClient
// instance the hook registry's operations run against, so that pointer
// checks observe the write they are validating alongside.
func New(cfg Config, client ldapClient) *Consistency {
	return &Consistency{cfg: cfg, client: client}
}

// Name identifies this plugin to internal/pluginhost.
func (oc *Consistency) Name() string { return "orgconsistency" }

// Dependencies declares authz as a dependency so permission checks run
// before the pointer/non-empty checks below (internal/pluginhost topo-sorts
// plugin registration order on this).
func (oc *Consistency) Dependencies() []string { return []string{"authz"} }

// Register subscribes every handler this package implements onto registry.
// Call before registry.Seal().
func (oc *Consistency) Register(registry *hooks.Registry) {
	registry.RegisterChained("orgconsistency", hooks.AddRequest, oc.onAddRequest)
	registry.RegisterChained("orgconsistency", hooks.ModifyRequest, oc.onModifyRequest)
	registry.RegisterChained("orgconsistency", hooks.DeleteRequest, oc.onDeleteRequest)
	registry.RegisterFanout("orgconsistency", hooks.RenameDone, oc.onRenameDone)
	registry.RegisterFanout("orgconsistency", hooks.MoveDone, oc.onMoveDone)
}

func (oc *Consistency) isOrg(entry ldapclient.Entry) bool {
	classes := entry["objectClass"]

	for _, want := range oc.cfg.OrgObjectClasses {
		for _, have := range classes {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}

	return false
}

// path returns orgDN's own path attribute value, the "path(L)" referenced
// throughout spec.md §3/§4.5.
func (oc *Consistency) path(ctx context.Context, orgDN string) (string, error) {
	entries, err := oc.client.Search(ctx, orgDN, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeBase,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		return "", err
	}

	if len(entries) == 0 {
		return "", direrr.Kind(direrr.ErrPointerDangling, "organizationLink -> %s", orgDN)
	}

	vals := entries[0][oc.cfg.PathAttribute]
	if len(vals) == 0 {
		return "", nil
	}

	return vals[0], nil
}

// onAddRequest verifies organizationLink targets exist and are
// organizations, and that a supplied organizationPath matches path(link)
// (spec.md §4.5 "On add").
func (oc *Consistency) onAddRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.AddRequestPayload)

	link := firstValue(req.Entry, oc.cfg.LinkAttribute)
	if link == "" {
		return payload, nil
	}

	orgEntries, err := oc.client.Search(ctx, link, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
	if err != nil {
		return nil, err
	}

	if len(orgEntries) == 0 {
		return nil, direrr.Kind(direrr.ErrPointerDangling, "%s -> %s", oc.cfg.LinkAttribute, link)
	}

	if !oc.isOrg(orgEntries[0]) {
		return nil, direrr.Kind(direrr.ErrPointerOutOfBranch, "%s -> %s is not an organization", oc.cfg.LinkAttribute, link)
	}

	wantPath := firstValue(orgEntries[0], oc.cfg.PathAttribute)

	if suppliedPath := firstValue(req.Entry, oc.cfg.PathAttribute); suppliedPath != "" && suppliedPath != wantPath {
		return nil, direrr.Kind(direrr.ErrOrgPathImmutable, "%s must equal path(%s) = %q", oc.cfg.PathAttribute, link, wantPath)
	}

	return payload, nil
}

// onModifyRequest rejects deletion of the link/path attributes on
// non-organization entries (spec.md §4.5 "On modify"). A nested
// organization detaching from its own parent is the one case allowed to
// delete these attributes directly; every other entry kind only ever has
// them rewritten by the rename/move fan-out.
func (oc *Consistency) onModifyRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.ModifyRequestPayload)

	_, deletesLink := req.Changes.Delete[oc.cfg.LinkAttribute]
	_, deletesPath := req.Changes.Delete[oc.cfg.PathAttribute]

	if !deletesLink && !deletesPath {
		return payload, nil
	}

	entries, err := oc.client.Search(ctx, req.DN, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 && oc.isOrg(entries[0]) {
		return payload, nil
	}

	if deletesLink {
		return nil, direrr.Kind(direrr.ErrOrgLinkImmutable, "%s cannot be deleted on a non-organization entry", oc.cfg.LinkAttribute)
	}

	return nil, direrr.Kind(direrr.ErrOrgPathImmutable, "%s cannot be deleted on a non-organization entry", oc.cfg.PathAttribute)
}

// onDeleteRequest rejects deleting a non-empty organization (spec.md §4.5
// "On delete", §4.8 observable state machine).
func (oc *Consistency) onDeleteRequest(ctx context.Context, payload any) (any, error) {
	dns := payload.([]string)

	for _, dn := range dns {
		entries, err := oc.client.Search(ctx, dn, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
		if err != nil {
			return nil, err
		}

		if len(entries) == 0 || !oc.isOrg(entries[0]) {
			continue
		}

		linkers, err := oc.client.Search(ctx, oc.cfg.Base, ldapclient.SearchOpts{
			Scope:  ldapclient.ScopeSub,
			Filter: fmt.Sprintf("(%s=%s)", oc.cfg.LinkAttribute, ldapclient.EscapeFilterValue(dn)),
		})
		if err != nil {
			return nil, err
		}

		if len(linkers) > 0 {
			return nil, direrr.Kind(direrr.ErrOrgNotEmpty, "%s still has %d linked entries", dn, len(linkers))
		}
	}

	return payload, nil
}

// onRenameDone and onMoveDone both implement spec.md §4.5's rename/move
// rewrite: enumerate every entry whose link is the renamed org or a
// descendant of it, rewrite by suffix substitution, and replay top-down so
// parent orgs are rewritten before their children.
func (oc *Consistency) onRenameDone(ctx context.Context, payload any) error {
	req := payload.(ldapclient.RenameRequestPayload)

	oldDN := req.DN
	newDN := replaceRDN(oldDN, req.NewRDN)

	return oc.rewriteSubtree(ctx, oldDN, newDN)
}

func (oc *Consistency) onMoveDone(ctx context.Context, payload any) error {
	req := payload.(ldapclient.MoveDonePayload)

	newDN := req.NewRDN + "," + req.NewParentDN

	return oc.rewriteSubtree(ctx, req.OldDN, newDN)
}

func (oc *Consistency) rewriteSubtree(ctx context.Context, oldDN, newDN string) error {
	linkers, err := oc.client.Search(ctx, oc.cfg.Base, ldapclient.SearchOpts{
		Scope:  ldapclient.ScopeSub,
		Filter: fmt.Sprintf("(%s=*)", oc.cfg.LinkAttribute),
	})
	if err != nil {
		return err
	}

	type rewrite struct {
		dn      string
		newLink string
		depth   int
	}

	var rewrites []rewrite

	lowerOld := strings.ToLower(oldDN)

	for _, entry := range linkers {
		link := firstValue(entry, oc.cfg.LinkAttribute)
		if link == "" {
			continue
		}

		lowerLink := strings.ToLower(link)

		if lowerLink != lowerOld && !strings.HasSuffix(lowerLink, ","+lowerOld) {
			continue
		}

		newLink := replaceSuffix(link, oldDN, newDN)

		rewrites = append(rewrites, rewrite{
			dn:      entry["dn"][0],
			newLink: newLink,
			depth:   strings.Count(newLink, ","),
		})
	}

	sort.Slice(rewrites, func(i, j int) bool { return rewrites[i].depth < rewrites[j].depth })

	for _, r := range rewrites {
		path, err := oc.path(ctx, r.newLink)
		if err != nil {
			return err
		}

		if _, err := oc.client.Modify(ctx, r.dn, ldapclient.ChangeSet{
			Replace: ldapclient.Entry{
				oc.cfg.LinkAttribute: {r.newLink},
				oc.cfg.PathAttribute: {path},
			},
		}); err != nil {
			return err
		}
	}

	return nil
}

func replaceSuffix(value, oldSuffix, newSuffix string) string {
	if strings.EqualFold(value, oldSuffix) {
		return newSuffix
	}

	if idx := len(value) - len(oldSuffix); idx > 0 && strings.EqualFold(value[idx:], oldSuffix) {
		return value[:idx] + newSuffix
	}

	return value
}

func replaceRDN(dn, newRDN string) string {
	idx := strings.IndexByte(dn, ',')
	if idx < 0 {
		return newRDN
	}

	return newRDN + dn[idx:]
}

func firstValue(entry ldapclient.Entry, attr string) string {
	if attr == "" {
		return ""
	}

	vals, ok := entry[attr]
	if !ok || len(vals) == 0 {
		return ""
	}

	return vals[0]
}
