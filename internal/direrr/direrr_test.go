package direrr

import (
	"errors"
	"testing"
)

func TestKindWrapsSentinel(t *testing.T) {
	err := Kind(ErrFixedMismatch, "attribute %s", "objectClass")

	if !errors.Is(err, ErrFixedMismatch) {
		t.Fatalf("expected errors.Is to match sentinel, got %v", err)
	}

	want := "FIXED_MISMATCH: attribute objectClass"
	if err.Error() != want {
		t.Fatalf("expected message %q, got %q", want, err.Error())
	}
}

func TestKindWithoutArgs(t *testing.T) {
	err := Kind(ErrOrgNotEmpty, "ou=a,dc=ex still has members")
	if !errors.Is(err, ErrOrgNotEmpty) {
		t.Fatalf("expected errors.Is to match sentinel, got %v", err)
	}
}

func TestWrapPreservesBothSentinelAndCause(t *testing.T) {
	cause := Kind(ErrOrgNotEmpty, "ou=a,dc=ex still has members")
	err := Wrap(ErrHookRejected, cause, "hook %q: %v", "orgconsistency", cause)

	if !errors.Is(err, ErrHookRejected) {
		t.Fatalf("expected errors.Is to match the wrapping sentinel, got %v", err)
	}

	if errors.Unwrap(err) != cause {
		t.Fatalf("expected Unwrap to yield the original cause, got %v", errors.Unwrap(err))
	}

	if !errors.Is(err, ErrOrgNotEmpty) {
		t.Fatalf("expected errors.Is to reach the cause's sentinel through the chain, got %v", err)
	}
}
