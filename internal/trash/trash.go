package trash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
)

// ldapClient is the subset of *ldapclient.Client this package depends on.
type ldapClient interface {
	Search(ctx context.Context, base string, opts ldapclient.SearchOpts) ([]ldapclient.Entry, error)
	Add(ctx context.Context, dn string, entry ldapclient.Entry) error
	Modify(ctx context.Context, dn string, changes ldapclient.ChangeSet) (bool, error)
	Move(ctx context.Context, dn, newRDN, newParentDN string) error
	Delete(ctx context.Context, dns []string) error
}

// Config configures one Trash enforcer (spec.md §4.6).
type Config struct {
	TrashBase    string
	WatchedBases []string
	AddMetadata  bool
	AutoCreate   bool
}

// Trash relocates deletes on watched branches into TrashBase.
type Trash struct {
	cfg    Config
	client ldapClient
	now    func() time.Time
}

// New builds a Trash enforcer. now defaults to time.Now and is overridable
// for tests.
func New(cfg Config, client ldapClient) *Trash {
	return &Trash{cfg: cfg, client: client, now: time.Now}
}

// Name identifies this plugin to internal/pluginhost.
func (t *Trash) Name() string { return "trash" }

// Dependencies declares authz and orgconsistency as dependencies: a denied
// request or a non-empty organization must reject before trash ever moves
// the entry (internal/pluginhost topo-sorts plugin registration order on
// this, so those onDeleteRequest handlers run first).
func (t *Trash) Dependencies() []string { return []string{"authz", "orgconsistency"} }

// Register subscribes onDeleteRequest onto registry. Call before
// registry.Seal().
func (t *Trash) Register(registry *hooks.Registry) {
	registry.RegisterChained("trash", hooks.DeleteRequest, t.onDeleteRequest)
}

// EnsureTrashBranch creates TrashBase as an organizationalUnit if
// AutoCreate is set and it does not already exist.
func (t *Trash) EnsureTrashBranch(ctx context.Context) error {
	if !t.cfg.AutoCreate {
		return nil
	}

	existing, err := t.client.Search(ctx, t.cfg.TrashBase, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
	if err != nil && !errors.Is(err, direrr.ErrNotFound) {
		return err
	}

	if len(existing) > 0 {
		return nil
	}

	ou := rdnValue(t.cfg.TrashBase)

	return t.client.Add(ctx, t.cfg.TrashBase, ldapclient.Entry{
		"objectClass": {"organizationalUnit"},
		"ou":          {ou},
	})
}

func rdnValue(dn string) string {
	rdn := dn
	if idx := strings.IndexByte(dn, ','); idx >= 0 {
		rdn = dn[:idx]
	}

	if idx := strings.IndexByte(rdn, '='); idx >= 0 {
		return rdn[idx+1:]
	}

	return rdn
}

func (t *Trash) watches(dn string) bool {
	lower := strings.ToLower(dn)

	for _, base := range t.cfg.WatchedBases {
		if strings.HasSuffix(lower, strings.ToLower(base)) {
			return true
		}
	}

	return false
}

// onDeleteRequest is the ldapDeleteRequest chained handler. It removes
// every watched DN from the batch after relocating it to trash, leaving
// only unwatched DNs for the downstream hard delete.
func (t *Trash) onDeleteRequest(ctx context.Context, payload any) (any, error) {
	dns := payload.([]string)

	remaining := make([]string, 0, len(dns))

	for _, dn := range dns {
		if !t.watches(dn) {
			remaining = append(remaining, dn)
			continue
		}

		if err := t.moveToTrash(ctx, dn); err != nil {
			return nil, direrr.Kind(direrr.ErrTrashMoveFailed, "%s: %v", dn, err)
		}
	}

	return remaining, nil
}

func (t *Trash) moveToTrash(ctx context.Context, dn string) error {
	entries, err := t.client.Search(ctx, dn, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return fmt.Errorf("trash: %s not found", dn)
	}

	rdn := rdnPart(dn)
	trashDN := rdn + "," + t.cfg.TrashBase

	existing, err := t.client.Search(ctx, trashDN, ldapclient.SearchOpts{Scope: ldapclient.ScopeBase, Filter: "(objectClass=*)"})
	if err != nil && !errors.Is(err, direrr.ErrNotFound) {
		return err
	}

	if len(existing) > 0 {
		if err := t.client.Delete(ctx, []string{trashDN}); err != nil {
			return fmt.Errorf("trash: evict existing collision at %s: %w", trashDN, err)
		}
	}

	if err := t.client.Move(ctx, dn, rdn, t.cfg.TrashBase); err != nil {
		return err
	}

	if !t.cfg.AddMetadata {
		return nil
	}

	description := fmt.Sprintf("Deleted on %s, originally at %s", t.now().UTC().Format(time.RFC3339), dn)

	_, err = t.client.Modify(ctx, trashDN, ldapclient.ChangeSet{
		Add: ldapclient.Entry{"description": {description}},
	})

	return err
}

func rdnPart(dn string) string {
	if idx := strings.IndexByte(dn, ','); idx >= 0 {
		return dn[:idx]
	}

	return dn
}
