package ldapclient

import "testing"

func TestNormalizeDNBareIdentifier(t *testing.T) {
	got := normalizeDN("jdoe", "uid", "ou=people,dc=example,dc=com")
	want := "uid=jdoe,ou=people,dc=example,dc=com"

	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeDNRDNWithoutBase(t *testing.T) {
	got := normalizeDN("uid=jdoe", "uid", "ou=people,dc=example,dc=com")
	want := "uid=jdoe,ou=people,dc=example,dc=com"

	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeDNFullyQualified(t *testing.T) {
	in := "uid=jdoe,ou=people,dc=example,dc=com"

	got := normalizeDN(in, "uid", "ou=people,dc=example,dc=com")
	if got != in {
		t.Fatalf("got %q, want unchanged %q", got, in)
	}
}
