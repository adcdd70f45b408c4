package authz

import "testing"

func TestTokenAuthenticatorMatches(t *testing.T) {
	auth := NewTokenAuthenticator(map[string]string{
		"alice": "secret-alice",
		"bob":   "secret-bob",
	})

	uid, ok := auth.Authenticate("secret-alice")
	if !ok || uid != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", uid, ok)
	}

	uid, ok = auth.Authenticate("secret-bob")
	if !ok || uid != "bob" {
		t.Fatalf("expected bob, got %q ok=%v", uid, ok)
	}
}

func TestTokenAuthenticatorRejectsUnknown(t *testing.T) {
	auth := NewTokenAuthenticator(map[string]string{"alice": "secret-alice"})

	if _, ok := auth.Authenticate("wrong-token"); ok {
		t.Fatalf("expected no match for unknown token")
	}

	if _, ok := auth.Authenticate(""); ok {
		t.Fatalf("expected no match for empty token")
	}
}
