// Package integration provides integration tests using testcontainers.
// These tests require Docker to be running and use real OpenLDAP containers.
//
// Run with: go test -tags=integration ./internal/integration/...
package integration
