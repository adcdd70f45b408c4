package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/ldapclient"
)

type fakeClient struct {
	entries map[string][]ldapclient.Entry
}

func newFakeClient() *fakeClient {
	return &fakeClient{entries: make(map[string][]ldapclient.Entry)}
}

func (f *fakeClient) Search(_ context.Context, base string, _ ldapclient.SearchOpts) ([]ldapclient.Entry, error) {
	return f.entries[base], nil
}

func newAuthz(matrix *Matrix, client *fakeClient) *Authz {
	cfg := Config{
		GroupBase:          "ou=groups,dc=example,dc=com",
		MemberAttribute:    "member",
		GroupMainAttribute: "cn",
		ResolveUserDN:      func(uid string) string { return "uid=" + uid + ",ou=people,dc=example,dc=com" },
	}

	return New(matrix, cfg, client, NewMembershipCache(newMemStorage(), time.Minute))
}

func TestPermissionsForMergesDefaultUserAndGroup(t *testing.T) {
	client := newFakeClient()
	client.entries["ou=groups,dc=example,dc=com"] = []ldapclient.Entry{
		{"cn": {"finance-team"}, "member": {"uid=alice,ou=people,dc=example,dc=com"}},
	}

	matrix := &Matrix{
		Default: Permission{Read: true},
		Users: map[string]BranchPermissions{
			"alice": {"ou=people,dc=example,dc=com": {Write: true}},
		},
		Groups: map[string]BranchPermissions{
			"finance-team": {"ou=finance,dc=example,dc=com": {Delete: true}},
		},
	}

	a := newAuthz(matrix, client)

	perm, err := a.permissionsFor(context.Background(), "alice", "ou=finance,dc=example,dc=com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !perm.Read || !perm.Delete {
		t.Fatalf("expected read (default) and delete (group), got %+v", perm)
	}

	if perm.Write {
		t.Fatalf("expected write false, user branch doesn't cover this DN: %+v", perm)
	}
}

func TestOnSearchRequestRejectsWithoutContextUser(t *testing.T) {
	a := newAuthz(&Matrix{Default: Permission{Read: true}}, newFakeClient())

	_, err := a.onSearchRequest(context.Background(), ldapclient.SearchRequestPayload{Base: "dc=example,dc=com"})
	if !errors.Is(err, direrr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestOnSearchRequestAllowsDefaultRead(t *testing.T) {
	a := newAuthz(&Matrix{Default: Permission{Read: true}}, newFakeClient())
	ctx := WithUser(context.Background(), "alice")

	out, err := a.onSearchRequest(ctx, ldapclient.SearchRequestPayload{Base: "dc=example,dc=com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.(ldapclient.SearchRequestPayload).Base != "dc=example,dc=com" {
		t.Fatalf("expected payload passthrough")
	}
}

func TestOnAddRequestRejectsWithoutWrite(t *testing.T) {
	a := newAuthz(&Matrix{Default: Permission{Read: true}}, newFakeClient())
	ctx := WithUser(context.Background(), "alice")

	_, err := a.onAddRequest(ctx, ldapclient.AddRequestPayload{DN: "uid=new,ou=people,dc=example,dc=com"})
	if !errors.Is(err, direrr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestOnDeleteRequestAllowsWhenDefaultGrantsDelete(t *testing.T) {
	matrix := &Matrix{Default: Permission{Delete: true}}

	a := newAuthz(matrix, newFakeClient())
	ctx := WithUser(context.Background(), "alice")

	_, err := a.onDeleteRequest(ctx, []string{"uid=x,ou=people,dc=example,dc=com", "uid=y,ou=other,dc=example,dc=com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOnDeleteRequestRejectsWhenNoBranchGrantsDelete(t *testing.T) {
	matrix := &Matrix{Default: Permission{Read: true}}

	a := newAuthz(matrix, newFakeClient())
	ctx := WithUser(context.Background(), "alice")

	_, err := a.onDeleteRequest(ctx, []string{"uid=x,ou=people,dc=example,dc=com"})
	if !errors.Is(err, direrr.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAuthorizedBranchesFiltersByPermission(t *testing.T) {
	client := newFakeClient()

	matrix := &Matrix{
		Users: map[string]BranchPermissions{
			"alice": {
				"ou=finance,dc=example,dc=com": {Read: true},
				"ou=hr,dc=example,dc=com":      {Write: true},
			},
		},
	}

	a := newAuthz(matrix, client)

	branches, err := a.authorizedBranches(context.Background(), "alice", Permission{Read: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(branches) != 1 || branches[0] != "ou=finance,dc=example,dc=com" {
		t.Fatalf("unexpected branches: %v", branches)
	}
}

func TestMembershipFetchesFromLDAPAndCaches(t *testing.T) {
	client := newFakeClient()
	client.entries["ou=groups,dc=example,dc=com"] = []ldapclient.Entry{
		{"cn": {"admins"}},
	}

	a := newAuthz(&Matrix{}, client)

	groups, err := a.membership(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 1 || groups[0] != "admins" {
		t.Fatalf("unexpected groups: %v", groups)
	}

	delete(client.entries, "ou=groups,dc=example,dc=com")

	cached, ok := a.cache.Get("alice")
	if !ok || len(cached) != 1 || cached[0] != "admins" {
		t.Fatalf("expected membership to be cached, got %v ok=%v", cached, ok)
	}
}
