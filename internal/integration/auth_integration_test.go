//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirctl/ldapdm/internal/authz"
	"github.com/dirctl/ldapdm/internal/config"
	"github.com/dirctl/ldapdm/internal/web"
)

// writeUserSchemaFixture writes one flat-entity schema document describing
// inetOrgPerson entries under ou=users,<base> and returns its path.
func writeUserSchemaFixture(t *testing.T, dir, base string) string {
	t.Helper()

	doc := map[string]any{
		"entity": map[string]any{
			"name":          "user",
			"mainAttribute": "uid",
			"objectClass":   []string{"inetOrgPerson", "organizationalPerson", "person", "top"},
			"singularName":  "user",
			"pluralName":    "users",
			"base":          "ou=users," + base,
		},
		"attributes": map[string]any{
			"uid": map[string]any{"type": "string", "required": true},
			"cn":  map[string]any{"type": "string", "required": true},
			"sn":  map[string]any{"type": "string", "required": true},
		},
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

// writeMatrixFixture writes a permission matrix granting write/delete on
// ou=users to the "admins" group and nothing beyond the default read to
// everyone else, and returns its path.
func writeMatrixFixture(t *testing.T, dir, base string) string {
	t.Helper()

	matrix := authz.Matrix{
		Default: authz.Permission{Read: true},
		Groups: map[string]authz.BranchPermissions{
			"admins": {
				"ou=users," + base: {Read: true, Write: true, Delete: true},
			},
		},
	}

	raw, err := json.Marshal(matrix)
	require.NoError(t, err)

	path := filepath.Join(dir, "matrix.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

// TestAuthIntegration drives the full HTTP surface (App.Test, no socket
// bound) against a live OpenLDAP container: one bearer token resolves to a
// member of the seeded "admins" group and is granted write access to
// ou=users, another resolves to a non-member and is limited to the default
// read-only permission.
func TestAuthIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := StartOpenLDAP(ctx, DefaultOpenLDAPConfig())
	require.NoError(t, err, "Failed to start OpenLDAP container")
	defer func() { _ = container.Stop(ctx) }()

	time.Sleep(2 * time.Second)
	require.NoError(t, container.SeedTestData(ctx), "Failed to seed test data")

	dir := t.TempDir()
	schemaPath := writeUserSchemaFixture(t, dir, container.BaseDN)
	matrixPath := writeMatrixFixture(t, dir, container.BaseDN)

	adminDN := "cn=admin,ou=users," + container.BaseDN
	outsiderDN := "cn=testuser3,ou=users," + container.BaseDN

	cfg := &config.Config{
		LDAPURL:                 container.URI(),
		LDAPBaseDN:              container.BaseDN,
		LDAPBindDN:              container.AdminDN,
		LDAPBindPassword:        container.AdminPass,
		LDAPQueryConcurrency:    4,
		LDAPUserMainAttribute:   "cn",
		FlatSchemaPaths:         []string{schemaPath},
		AuthzPerBranchConfig:    matrixPath,
		AuthzGroupBase:          "ou=groups," + container.BaseDN,
		AuthzMemberAttribute:    "member",
		AuthzGroupMainAttribute: "cn",
		APIPrefix:               "/api/v1",
		AuthBearerTokens: map[string]string{
			adminDN:    "admin-token",
			outsiderDN: "outsider-token",
		},
	}

	app, err := web.NewApp(cfg)
	require.NoError(t, err, "Failed to build app against the live directory")

	t.Run("admins group member can list users", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ldap/users", nil)
		req.Header.Set("Authorization", "Bearer admin-token")

		resp, err := app.Test(req, 10000)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode, "admins group member should be able to list users")
	})

	t.Run("admins group member can create a user", func(t *testing.T) {
		body := map[string][]string{"uid": {"carol"}, "cn": {"carol"}, "sn": {"carol"}}
		raw, _ := json.Marshal(body)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ldap/users", bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer admin-token")
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req, 10000)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode, "admins group member should be able to create a user")
	})

	t.Run("non-member is denied write access", func(t *testing.T) {
		body := map[string][]string{"uid": {"dave"}, "cn": {"dave"}, "sn": {"dave"}}
		raw, _ := json.Marshal(body)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ldap/users", bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer outsider-token")
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req, 10000)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "non-member should be denied write access")
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ldap/users", nil)

		resp, err := app.Test(req, 10000)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
