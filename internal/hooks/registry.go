package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/direrr"
)

// Chained hook names shared by every LdapClient verb (spec.md §4.1).
const (
	SearchOpts    = "ldapSearchOpts"
	SearchRequest = "ldapSearchRequest"
	SearchResult  = "ldapSearchResult"
	AddRequest    = "ldapAddRequest"
	ModifyRequest = "ldapModifyRequest"
	RenameRequest = "ldapRenameRequest"
	DeleteRequest = "ldapDeleteRequest"
)

// Fan-out ("*Done") hook names.
const (
	AddDone    = "ldapAddDone"
	ModifyDone = "ldapModifyDone"
	RenameDone = "ldapRenameDone"
	DeleteDone = "ldapDeleteDone"
	MoveDone   = "ldapMoveDone"
)

// Handler is a chained-hook participant. It receives the previous handler's
// output (or the operation's initial payload, for the first handler in the
// chain) and returns the value passed to the next handler. Returning an
// error aborts the chain.
type Handler func(ctx context.Context, payload any) (any, error)

// FanoutHandler is a fan-out hook participant. Its return value is ignored
// by the caller; a non-nil error is logged and never surfaced.
type FanoutHandler func(ctx context.Context, payload any) error

// Registry is a typed registry of named extension points. Registration
// happens once at plugin-load time (internal/pluginhost); after Seal() the
// registry is read-only and safe for unsynchronized concurrent dispatch
// from many goroutines.
type Registry struct {
	mu      sync.RWMutex
	chained map[string][]namedHandler
	fanout  map[string][]namedFanout
	sealed  bool
}

type namedHandler struct {
	owner string
	fn    Handler
}

type namedFanout struct {
	owner string
	fn    FanoutHandler
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		chained: make(map[string][]namedHandler),
		fanout:  make(map[string][]namedFanout),
	}
}

// RegisterChained appends a handler to the chain for hook. owner identifies
// the registering plugin for logging and diagnostics. Panics if called
// after Seal — registration is a load-time-only operation (spec.md §5
// "Shared resource policy").
func (r *Registry) RegisterChained(owner, hook string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("hooks: cannot register %q for %q after the registry is sealed", hook, owner))
	}

	r.chained[hook] = append(r.chained[hook], namedHandler{owner: owner, fn: h})
}

// RegisterFanout appends a fan-out handler for hook.
func (r *Registry) RegisterFanout(owner, hook string, h FanoutHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("hooks: cannot register %q for %q after the registry is sealed", hook, owner))
	}

	r.fanout[hook] = append(r.fanout[hook], namedFanout{owner: owner, fn: h})
}

// Seal marks the registry read-only. Called once by pluginhost.Host after
// every plugin has registered its hooks.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
}

// RunChained runs every handler registered for hook in registration order,
// threading the payload through each. A handler error aborts the chain and
// is returned wrapped as direrr.ErrHookRejected; no further handlers run.
func (r *Registry) RunChained(ctx context.Context, hook string, payload any) (any, error) {
	r.mu.RLock()
	handlers := append([]namedHandler(nil), r.chained[hook]...)
	r.mu.RUnlock()

	current := payload

	for _, h := range handlers {
		next, err := h.fn(ctx, current)
		if err != nil {
			return nil, direrr.Wrap(direrr.ErrHookRejected, err, "hook %q (plugin %q): %v", hook, h.owner, err)
		}

		current = next
	}

	return current, nil
}

// RunFanout runs every handler registered for hook concurrently. It blocks
// until all handlers return (so the caller's "post hooks start after the
// LDAP round-trip" ordering guarantee holds) but never surfaces their
// errors; failures are logged only, per spec.md §4.1 "Post hooks (*Done)
// are fire-and-forget".
func (r *Registry) RunFanout(ctx context.Context, hook string, payload any) {
	r.mu.RLock()
	handlers := append([]namedFanout(nil), r.fanout[hook]...)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup

	for _, h := range handlers {
		wg.Add(1)

		go func(h namedFanout) {
			defer wg.Done()

			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("hook", hook).
						Str("plugin", h.owner).
						Interface("panic", r).
						Msg("hook handler panicked")
				}
			}()

			if err := h.fn(ctx, payload); err != nil {
				log.Error().
					Err(err).
					Str("hook", hook).
					Str("plugin", h.owner).
					Msg("post-hook failed (ignored, operation remains successful)")
			}
		}(h)
	}

	wg.Wait()
}

// RunFanoutCollectWarnings behaves like RunFanout but additionally collects
// each failing handler's error text so HTTP handlers can surface a
// warnings[] field per SPEC_FULL.md §11 (spec.md §9 open question 1)
// without breaking the fire-and-forget success contract.
func (r *Registry) RunFanoutCollectWarnings(ctx context.Context, hook string, payload any) []string {
	r.mu.RLock()
	handlers := append([]namedFanout(nil), r.fanout[hook]...)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		warnings []string
	)

	for _, h := range handlers {
		wg.Add(1)

		go func(h namedFanout) {
			defer wg.Done()

			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					warnings = append(warnings, fmt.Sprintf("%s (%s) panicked: %v", hook, h.owner, r))
					mu.Unlock()
				}
			}()

			if err := h.fn(ctx, payload); err != nil {
				log.Error().
					Err(err).
					Str("hook", hook).
					Str("plugin", h.owner).
					Msg("post-hook failed (ignored, operation remains successful)")

				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("%s (%s): %v", hook, h.owner, err))
				mu.Unlock()
			}
		}(h)
	}

	wg.Wait()
	sort.Strings(warnings)

	return warnings
}

// EntityHookNames computes the per-instance hook names FlatEntity uses so
// that integration plugins can subscribe per entity kind rather than
// globally (spec.md §4.4).
func EntityHookNames(prefix string) EntityHooks {
	return EntityHooks{
		AddRequest:    prefix + "AddRequest",
		AddDone:       prefix + "AddDone",
		ModifyRequest: prefix + "ModifyRequest",
		ModifyDone:    prefix + "ModifyDone",
		RenameRequest: prefix + "RenameRequest",
		RenameDone:    prefix + "RenameDone",
		DeleteRequest: prefix + "DeleteRequest",
		DeleteDone:    prefix + "DeleteDone",
		MoveDone:      prefix + "MoveDone",
	}
}

// EntityHooks is the set of computed per-entity hook names.
type EntityHooks struct {
	AddRequest    string
	AddDone       string
	ModifyRequest string
	ModifyDone    string
	RenameRequest string
	RenameDone    string
	DeleteRequest string
	DeleteDone    string
	MoveDone      string
}
