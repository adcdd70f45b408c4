package web

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dirctl/ldapdm/internal/authz"
	"github.com/dirctl/ldapdm/internal/config"
	"github.com/dirctl/ldapdm/internal/hooks"
	"github.com/dirctl/ldapdm/internal/ldapclient"
)

// reloadableSchema writes one minimal flat-entity schema document to dir
// and returns its path, so Reload can be exercised against fixtures that
// exist only for the duration of the test.
func reloadableSchema(t *testing.T, dir, name, plural string, orgRoles bool) string {
	t.Helper()

	attrs := map[string]any{
		"uid": map[string]any{"type": "string", "required": true},
	}

	if orgRoles {
		attrs["parentOu"] = map[string]any{"type": "string", "role": "organizationLink"}
		attrs["path"] = map[string]any{"type": "string", "role": "organizationPath"}
	}

	doc := map[string]any{
		"entity": map[string]any{
			"name":          name,
			"mainAttribute": "uid",
			"objectClass":   []string{"top"},
			"singularName":  name,
			"pluralName":    plural,
			"base":          "dc=example,dc=com",
		},
		"attributes": attrs,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture schema: %v", err)
	}

	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write fixture schema: %v", err)
	}

	return path
}

func newReloadApp(t *testing.T, schemaPaths []string, matrixPath string) *App {
	t.Helper()

	cfg := &config.Config{
		LDAPBaseDN:           "dc=example,dc=com",
		LDAPQueryConcurrency: 4,
		FlatSchemaPaths:      schemaPaths,
		AuthzPerBranchConfig: matrixPath,
	}

	client := ldapclient.New(ldapclient.Config{Base: cfg.LDAPBaseDN}, nil)

	authzEnforcer := authz.New(&authz.Matrix{}, authz.Config{}, client, authz.NewMembershipCache(nil, 0))

	return &App{
		cfg:    cfg,
		client: client,
		hooks:  hooks.New(),
		authz:  authzEnforcer,
	}
}

func TestReloadLoadsNewEntityKinds(t *testing.T) {
	dir := t.TempDir()
	usersPath := reloadableSchema(t, dir, "user", "users", false)

	a := newReloadApp(t, []string{usersPath}, "")

	if err := a.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if _, ok := a.entities["users"]; !ok {
		t.Fatalf("expected entity kind %q to be loaded, got %v", "users", a.entities)
	}

	if a.OrgEntity() != "" {
		t.Fatalf("expected no organization entity, got %q", a.OrgEntity())
	}
}

func TestReloadResolvesOrganizationSchema(t *testing.T) {
	dir := t.TempDir()
	orgPath := reloadableSchema(t, dir, organizationSchemaName, "organizations", true)
	usersPath := reloadableSchema(t, dir, "user", "users", false)

	a := newReloadApp(t, []string{orgPath, usersPath}, "")

	if err := a.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if got := a.OrgEntity(); got != "organizations" {
		t.Fatalf("expected organization entity %q, got %q", "organizations", got)
	}

	if classes := a.OrgObjectClasses(); len(classes) != 1 || classes[0] != "top" {
		t.Fatalf("expected organization object classes [top], got %v", classes)
	}

	if _, ok := a.entities["users"]; !ok {
		t.Fatalf("expected entity kind %q to survive reload alongside organizations", "users")
	}
}

func TestReloadClearsOrganizationWhenSchemaRemoved(t *testing.T) {
	dir := t.TempDir()
	orgPath := reloadableSchema(t, dir, organizationSchemaName, "organizations", true)

	a := newReloadApp(t, []string{orgPath}, "")

	if err := a.Reload(); err != nil {
		t.Fatalf("first Reload: %v", err)
	}

	if a.OrgEntity() != "organizations" {
		t.Fatalf("expected organization entity before removal")
	}

	if err := os.Remove(orgPath); err != nil {
		t.Fatalf("remove fixture: %v", err)
	}

	usersPath := reloadableSchema(t, dir, "user", "users", false)
	a.cfg.FlatSchemaPaths = []string{usersPath}

	if err := a.Reload(); err != nil {
		t.Fatalf("second Reload: %v", err)
	}

	if got := a.OrgEntity(); got != "" {
		t.Fatalf("expected organization entity cleared after its schema was removed, got %q", got)
	}

	if got := a.OrgObjectClasses(); got != nil {
		t.Fatalf("expected organization object classes cleared, got %v", got)
	}
}

func TestReloadSwapsAuthzMatrix(t *testing.T) {
	dir := t.TempDir()
	usersPath := reloadableSchema(t, dir, "user", "users", false)

	matrix := authz.Matrix{Default: authz.Permission{Read: true}}
	raw, err := json.Marshal(matrix)
	if err != nil {
		t.Fatalf("marshal matrix: %v", err)
	}

	matrixPath := filepath.Join(dir, "matrix.json")
	if err := os.WriteFile(matrixPath, raw, 0o600); err != nil {
		t.Fatalf("write matrix: %v", err)
	}

	a := newReloadApp(t, []string{usersPath}, matrixPath)

	if err := a.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
}
