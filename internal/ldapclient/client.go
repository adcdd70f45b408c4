package ldapclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/hooks"
)

// Client is the single mediation point for every LDAP operation (spec.md
// §4.1). It owns the connection pool, the result cache and the
// process-wide query-concurrency semaphore; every exported method wraps the
// underlying wire call with the pre-hook chain, the I/O, cache
// invalidation, and the post-hook fan-out, in that order.
type Client struct {
	cfg Config

	pool  *pool
	cache *resultCache
	hooks *hooks.Registry

	sem chan struct{}

	opCounter atomic.Int64
}

// New builds a Client bound to cfg and the shared hook registry. registry
// may be nil in tests that exercise the wire layer without any hooks
// registered.
func New(cfg Config, registry *hooks.Registry) *Client {
	cfg = cfg.WithDefaults()

	if registry == nil {
		registry = hooks.New()
		registry.Seal()
	}

	return &Client{
		cfg:   cfg,
		pool:  newPool(cfg),
		cache: newResultCache(cfg.CacheMax, cfg.CacheTTL),
		hooks: registry,
		sem:   make(chan struct{}, cfg.QueryConcurrency),
	}
}

// Stats reports pool and cache sizes for the health endpoint.
func (c *Client) Stats() Stats {
	return c.pool.Stats()
}

// CacheSize reports the number of currently cached search results.
func (c *Client) CacheSize() int { return c.cache.size() }

// Close shuts down the connection pool.
func (c *Client) Close() error { return c.pool.Close() }

// NormalizeDN applies spec.md §4.1 DN normalization using this client's
// configured base and userMainAttribute.
func (c *Client) NormalizeDN(idOrDN string) string {
	return normalizeDN(idOrDN, c.cfg.UserMainAttribute, c.cfg.Base)
}

// permitHeldKey marks a context as already holding a query-concurrency
// permit, so a hook handler that issues its own Client call on the same
// request (authz's membership lookup, orgconsistency's existence checks)
// does not re-acquire from the same bounded semaphore and self-deadlock
// once every permit is held by an outer call waiting on its own nested
// acquire (spec.md §5 pool bounds).
type permitHeldKey struct{}

// withPermitHeld returns a context carrying the already-holding-a-permit
// marker, for passing into chained hooks that may call back into this
// Client.
func withPermitHeld(ctx context.Context) context.Context {
	return context.WithValue(ctx, permitHeldKey{}, true)
}

func (c *Client) acquire(ctx context.Context) (func(), error) {
	if ctx.Value(permitHeldKey{}) != nil {
		return func() {}, nil
	}

	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Search performs a scoped LDAP search under base, running the
// ldapSearchOpts and ldapSearchRequest chained pre-hooks and the
// ldapSearchResult chained post-hook. Results are served from and stored in
// the result cache only when opts is base-scope and non-paged.
func (c *Client) Search(ctx context.Context, base string, opts SearchOpts) ([]Entry, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	rawOpts, err := c.hooks.RunChained(ctx, hooks.SearchOpts, opts)
	if err != nil {
		return nil, err
	}

	opts = rawOpts.(SearchOpts)

	var key string
	if opts.cacheable() {
		key = cacheKey(base, opts.Scope, opts.Filter, opts.Attributes)

		if cached, ok := c.cache.get(key); ok {
			return cached, nil
		}
	}

	rawReq, err := c.hooks.RunChained(ctx, hooks.SearchRequest, SearchRequestPayload{Base: base, Opts: opts})
	if err != nil {
		return nil, err
	}

	params := rawReq.(SearchRequestPayload)

	results, err := c.doSearch(ctx, params.Base, params.Opts)
	if err != nil {
		return nil, err
	}

	rawResult, err := c.hooks.RunChained(ctx, hooks.SearchResult, results)
	if err != nil {
		return nil, err
	}

	results = rawResult.([]Entry)

	if opts.cacheable() {
		c.cache.put(key, results)
	}

	return results, nil
}

func (c *Client) doSearch(ctx context.Context, base string, opts SearchOpts) ([]Entry, error) {
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return nil, direrr.Kind(direrr.ErrIOFailed, "acquire connection: %v", err)
	}
	defer c.pool.release(pc)

	attrs := opts.Attributes
	if len(attrs) == 0 {
		attrs = []string{"*"}
	}

	req := ldap.NewSearchRequest(
		base,
		scopeToLDAP(opts.Scope),
		ldap.NeverDerefAliases,
		0,
		int(c.cfg.TimeLimit.Seconds()),
		false,
		opts.Filter,
		attrs,
		nil,
	)

	var sr *ldap.SearchResult

	if opts.Paged {
		sr, err = pc.conn.SearchWithPaging(req, pagedSizeOrDefault(opts))
	} else {
		sr, err = pc.conn.Search(req)
	}

	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, direrr.Kind(direrr.ErrNotFound, "%s: %v", base, err)
		}

		c.pool.invalidate(pc)

		return nil, direrr.Kind(direrr.ErrIOFailed, "search: %v", err)
	}

	out := make([]Entry, 0, len(sr.Entries))

	for _, e := range sr.Entries {
		out = append(out, entryFromLDAP(e))
	}

	return out, nil
}

func pagedSizeOrDefault(opts SearchOpts) uint32 {
	if !opts.Paged {
		return 0
	}

	if opts.PageSize <= 0 {
		return 100
	}

	return uint32(opts.PageSize)
}

func scopeToLDAP(s Scope) int {
	switch s {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOne:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

func entryFromLDAP(e *ldap.Entry) Entry {
	out := make(Entry, len(e.Attributes)+1)
	out["dn"] = []string{e.DN}

	for _, attr := range e.Attributes {
		out[attr.Name] = append([]string(nil), attr.Values...)
	}

	return out
}

// ResolveDN implements schema.Resolver: a base-scope lookup used by pointer
// validation.
func (c *Client) ResolveDN(ctx context.Context, dn string) (string, bool, error) {
	results, err := c.Search(ctx, dn, SearchOpts{Scope: ScopeBase, Filter: "(objectClass=*)"})
	if err != nil {
		if direrrIsNotFound(err) {
			return "", false, nil
		}

		return "", false, err
	}

	if len(results) == 0 {
		return "", false, nil
	}

	return results[0]["dn"][0], true, nil
}

func direrrIsNotFound(err error) bool {
	return errors.Is(err, direrr.ErrNotFound)
}

// Add coerces entry's objectClass via the schema layer upstream, runs
// ldapAddRequest, performs the add, invalidates the cache under dn, and
// fans out ldapAddDone.
func (c *Client) Add(ctx context.Context, dn string, entry Entry) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	raw, err := c.hooks.RunChained(ctx, hooks.AddRequest, AddRequestPayload{DN: dn, Entry: entry})
	if err != nil {
		return err
	}

	params := raw.(AddRequestPayload)

	err = c.doAdd(ctx, params.DN, params.Entry)
	c.cache.invalidatePrefix(params.DN)

	if err != nil {
		return err
	}

	c.hooks.RunFanout(ctx, hooks.AddDone, params)

	return nil
}

func (c *Client) doAdd(ctx context.Context, dn string, entry Entry) error {
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return direrr.Kind(direrr.ErrIOFailed, "acquire connection: %v", err)
	}
	defer c.pool.release(pc)

	req := ldap.NewAddRequest(dn, nil)

	names := make([]string, 0, len(entry))
	for name := range entry {
		if name == "dn" {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		req.Attribute(name, entry[name])
	}

	if err := pc.conn.Add(req); err != nil {
		c.pool.invalidate(pc)
		return direrr.Kind(direrr.ErrConstraint, "add %s: %v", dn, err)
	}

	return nil
}

// Modify applies changes to dn. Each call is tagged with a strictly
// monotonic, process-local operation number so hook subscribers can
// reconstruct causality (spec.md §5).
func (c *Client) Modify(ctx context.Context, dn string, changes ChangeSet) (bool, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	opNum := c.opCounter.Add(1)

	raw, err := c.hooks.RunChained(ctx, hooks.ModifyRequest, ModifyRequestPayload{DN: dn, Changes: changes, OpNum: opNum})
	if err != nil {
		return false, err
	}

	params := raw.(ModifyRequestPayload)

	if params.Changes.Empty() {
		log.Warn().Str("dn", params.DN).Int64("opNum", params.OpNum).Msg("modify called with an empty change set")
		c.hooks.RunFanout(ctx, hooks.ModifyDone, params)

		return false, nil
	}

	err = c.doModify(ctx, params.DN, params.Changes)
	c.cache.invalidatePrefix(params.DN)

	if err != nil {
		return false, err
	}

	c.hooks.RunFanout(ctx, hooks.ModifyDone, params)

	return true, nil
}

func (c *Client) doModify(ctx context.Context, dn string, changes ChangeSet) error {
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return direrr.Kind(direrr.ErrIOFailed, "acquire connection: %v", err)
	}
	defer c.pool.release(pc)

	req := ldap.NewModifyRequest(dn, nil)

	for _, name := range sortedKeys(changes.Add) {
		req.Add(name, changes.Add[name])
	}

	for _, name := range sortedKeys(changes.Replace) {
		req.Replace(name, changes.Replace[name])
	}

	for _, name := range sortedKeys(changes.Delete) {
		req.Delete(name, changes.Delete[name])
	}

	if err := pc.conn.Modify(req); err != nil {
		c.pool.invalidate(pc)
		return direrr.Kind(direrr.ErrConstraint, "modify %s: %v", dn, err)
	}

	return nil
}

func sortedKeys(m Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Rename changes dn's RDN within the same parent.
func (c *Client) Rename(ctx context.Context, dn, newRDN string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	raw, err := c.hooks.RunChained(ctx, hooks.RenameRequest, RenameRequestPayload{DN: dn, NewRDN: newRDN})
	if err != nil {
		return err
	}

	params := raw.(RenameRequestPayload)

	err = c.doModifyDN(ctx, params.DN, params.NewRDN, "", true)
	c.cache.invalidatePrefix(params.DN)

	if err != nil {
		return err
	}

	c.hooks.RunFanout(ctx, hooks.RenameDone, params)

	return nil
}

// Move changes dn's parent, optionally combined with an RDN change. It does
// not run a chained request hook in this layer; OrgConsistency reacts to
// ldapMoveDone instead (spec.md §4.1, §4.5).
func (c *Client) Move(ctx context.Context, dn, newRDN, newParentDN string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	err = c.doModifyDN(ctx, dn, newRDN, newParentDN, true)
	c.cache.invalidatePrefix(dn)

	if err != nil {
		return err
	}

	c.hooks.RunFanout(ctx, hooks.MoveDone, MoveDonePayload{OldDN: dn, NewRDN: newRDN, NewParentDN: newParentDN})

	return nil
}

func (c *Client) doModifyDN(ctx context.Context, dn, newRDN, newParentDN string, deleteOld bool) error {
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return direrr.Kind(direrr.ErrIOFailed, "acquire connection: %v", err)
	}
	defer c.pool.release(pc)

	req := ldap.NewModifyDNRequest(dn, newRDN, deleteOld, newParentDN)

	if err := pc.conn.ModifyDN(req); err != nil {
		c.pool.invalidate(pc)
		return direrr.Kind(direrr.ErrConstraint, "rename/move %s: %v", dn, err)
	}

	return nil
}

// Delete removes every DN in dns. Partial failure: the first error stops
// the batch and is surfaced; entries already deleted remain deleted
// (spec.md §4.1).
func (c *Client) Delete(ctx context.Context, dns []string) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx = withPermitHeld(ctx)

	raw, err := c.hooks.RunChained(ctx, hooks.DeleteRequest, append([]string(nil), dns...))
	if err != nil {
		return err
	}

	remaining := raw.([]string)

	for _, dn := range remaining {
		err := c.doDelete(ctx, dn)
		c.cache.invalidatePrefix(dn)

		if err != nil {
			return fmt.Errorf("delete %s: %w", dn, err)
		}

		c.hooks.RunFanout(ctx, hooks.DeleteDone, dn)
	}

	return nil
}

func (c *Client) doDelete(ctx context.Context, dn string) error {
	pc, err := c.pool.acquire(ctx)
	if err != nil {
		return direrr.Kind(direrr.ErrIOFailed, "acquire connection: %v", err)
	}
	defer c.pool.release(pc)

	if err := pc.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		c.pool.invalidate(pc)
		return direrr.Kind(direrr.ErrConstraint, "delete %s: %v", dn, err)
	}

	return nil
}
