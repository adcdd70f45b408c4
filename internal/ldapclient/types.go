package ldapclient

import "github.com/dirctl/ldapdm/internal/schema"

// Entry reuses schema's attribute-map shape so validation and the wire
// layer speak the same type without a conversion step.
type Entry = schema.Entry

// ChangeSet reuses schema's three-bucket modify shape.
type ChangeSet = schema.ChangeSet

// Scope mirrors the three LDAP search scopes exposed to callers.
type Scope string

const (
	ScopeBase Scope = "base"
	ScopeOne  Scope = "one"
	ScopeSub  Scope = "sub"
)

// SearchOpts is the request shape for Client.Search (spec.md §4.1).
type SearchOpts struct {
	Scope      Scope
	Filter     string
	Attributes []string
	Paged      bool
	PageSize   int
}

// cacheable reports whether opts is eligible for the result cache: only
// base-scope, non-paged searches are cached.
func (o SearchOpts) cacheable() bool {
	return o.Scope == ScopeBase && !o.Paged
}
