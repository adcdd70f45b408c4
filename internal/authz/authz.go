package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
	"github.com/dirctl/ldapdm/internal/retry"
)

// ldapClient is the subset of *ldapclient.Client this package depends on.
type ldapClient interface {
	Search(ctx context.Context, base string, opts ldapclient.SearchOpts) ([]ldapclient.Entry, error)
}

// Config wires Authz to this deployment's group-membership lookup. The
// permission matrix itself (Matrix) is loaded separately since it is the
// operator-editable, hot-reloadable document; Config is fixed at startup.
type Config struct {
	GroupBase          string
	MemberAttribute    string // e.g. "member", holds member DNs
	GroupMainAttribute string // e.g. "cn", the group's own identifier
	ResolveUserDN      func(uid string) string
}

// Authz implements AuthzPerBranch (spec.md §4.7).
type Authz struct {
	matrix *Matrix
	cfg    Config
	client ldapClient
	cache  *MembershipCache
}

// New builds an Authz enforcer. matrix may be swapped out later via
// SetMatrix for hot reload.
func New(matrix *Matrix, cfg Config, client ldapClient, cache *MembershipCache) *Authz {
	return &Authz{matrix: matrix, cfg: cfg, client: client, cache: cache}
}

// SetMatrix swaps in a newly loaded permission matrix, for hot reload.
func (a *Authz) SetMatrix(matrix *Matrix) {
	a.matrix = matrix
}

// Name identifies this plugin to internal/pluginhost.
func (a *Authz) Name() string { return "authz" }

// Dependencies is empty: authz never needs another plugin's state to
// compute a permission, and every other built-in plugin declares authz as
// one of theirs so permission checks run first.
func (a *Authz) Dependencies() []string { return nil }

// Register subscribes every chained handler this package implements onto
// registry. Call before registry.Seal().
func (a *Authz) Register(registry *hooks.Registry) {
	registry.RegisterChained("authz", hooks.SearchRequest, a.onSearchRequest)
	registry.RegisterChained("authz", hooks.AddRequest, a.onAddRequest)
	registry.RegisterChained("authz", hooks.ModifyRequest, a.onModifyRequest)
	registry.RegisterChained("authz", hooks.RenameRequest, a.onRenameRequest)
	registry.RegisterChained("authz", hooks.DeleteRequest, a.onDeleteRequest)
}

// membership returns uid's group CNs, consulting the cache first and
// falling back to an LDAP search for MemberAttribute=<userDN> (spec.md
// §4.7 "Group membership of a user is fetched from LDAP").
func (a *Authz) membership(ctx context.Context, uid string) ([]string, error) {
	if groups, ok := a.cache.Get(uid); ok {
		return groups, nil
	}

	if a.cfg.ResolveUserDN == nil {
		return nil, nil
	}

	userDN := a.cfg.ResolveUserDN(uid)

	entries, err := retry.DoWithResultConfig(ctx, retry.LDAPConfig(), func() ([]ldapclient.Entry, error) {
		return a.client.Search(ctx, a.cfg.GroupBase, ldapclient.SearchOpts{
			Scope:  ldapclient.ScopeSub,
			Filter: fmt.Sprintf("(%s=%s)", a.cfg.MemberAttribute, ldapclient.EscapeFilterValue(userDN)),
		})
	})
	if err != nil {
		return nil, err
	}

	groups := make([]string, 0, len(entries))

	for _, entry := range entries {
		if vals := entry[a.cfg.GroupMainAttribute]; len(vals) > 0 {
			groups = append(groups, vals[0])
		}
	}

	sort.Strings(groups)

	if err := a.cache.Set(uid, groups); err != nil {
		return groups, err
	}

	return groups, nil
}

// permissionsFor implements spec.md §4.7's effective-permission algorithm:
// start from default, OR in every matching user branch entry, then OR in
// every matching branch entry of every group uid belongs to.
func (a *Authz) permissionsFor(ctx context.Context, uid, branchDN string) (Permission, error) {
	perm := a.matrix.Default

	if userBranches, ok := a.matrix.Users[uid]; ok {
		perm = perm.Union(mergeMatchingBranches(userBranches, branchDN))
	}

	groups, err := a.membership(ctx, uid)
	if err != nil {
		return Permission{}, err
	}

	for _, group := range groups {
		if groupBranches, ok := a.matrix.Groups[group]; ok {
			perm = perm.Union(mergeMatchingBranches(groupBranches, branchDN))
		}
	}

	return perm, nil
}

// authorizedBranches returns every branch declared for uid (directly or via
// group membership) whose effective permission satisfies want (spec.md
// §4.7 "authorizedBranches").
func (a *Authz) authorizedBranches(ctx context.Context, uid string, want Permission) ([]string, error) {
	candidates := make(map[string]struct{})

	if userBranches, ok := a.matrix.Users[uid]; ok {
		for branch := range userBranches {
			candidates[branch] = struct{}{}
		}
	}

	groups, err := a.membership(ctx, uid)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		if groupBranches, ok := a.matrix.Groups[group]; ok {
			for branch := range groupBranches {
				candidates[branch] = struct{}{}
			}
		}
	}

	var out []string

	for branch := range candidates {
		perm, err := a.permissionsFor(ctx, uid, branch)
		if err != nil {
			return nil, err
		}

		if satisfies(perm, want) {
			out = append(out, branch)
		}
	}

	sort.Strings(out)

	return out, nil
}

func (a *Authz) requirePermission(ctx context.Context, dn string, want Permission) error {
	uid, ok := UserFromContext(ctx)
	if !ok {
		return direrr.Kind(direrr.ErrPermissionDenied, "no authenticated user in request context")
	}

	perm, err := a.permissionsFor(ctx, uid, dn)
	if err != nil {
		return err
	}

	if !satisfies(perm, want) {
		return direrr.Kind(direrr.ErrPermissionDenied, "%s lacks permission on %s", uid, dn)
	}

	return nil
}

func (a *Authz) onSearchRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.SearchRequestPayload)

	if err := a.requirePermission(ctx, req.Base, Permission{Read: true}); err != nil {
		return nil, err
	}

	return payload, nil
}

func (a *Authz) onAddRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.AddRequestPayload)

	if err := a.requirePermission(ctx, req.DN, Permission{Write: true}); err != nil {
		return nil, err
	}

	return payload, nil
}

func (a *Authz) onModifyRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.ModifyRequestPayload)

	if err := a.requirePermission(ctx, req.DN, Permission{Write: true}); err != nil {
		return nil, err
	}

	return payload, nil
}

func (a *Authz) onRenameRequest(ctx context.Context, payload any) (any, error) {
	req := payload.(ldapclient.RenameRequestPayload)

	if err := a.requirePermission(ctx, req.DN, Permission{Write: true}); err != nil {
		return nil, err
	}

	return payload, nil
}

func (a *Authz) onDeleteRequest(ctx context.Context, payload any) (any, error) {
	dns := payload.([]string)

	for _, dn := range dns {
		if err := a.requirePermission(ctx, dn, Permission{Delete: true}); err != nil {
			return nil, err
		}
	}

	return payload, nil
}
