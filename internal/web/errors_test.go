package web

import (
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/dirctl/ldapdm/internal/direrr"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", direrr.Kind(direrr.ErrNotFound, "x"), fiber.StatusNotFound},
		{"permission denied", direrr.Kind(direrr.ErrPermissionDenied, "x"), fiber.StatusForbidden},
		{"required missing", direrr.Kind(direrr.ErrRequiredMissing, "x"), fiber.StatusBadRequest},
		{"org not empty", direrr.Kind(direrr.ErrOrgNotEmpty, "x"), fiber.StatusConflict},
		{"constraint", direrr.Kind(direrr.ErrConstraint, "x"), fiber.StatusConflict},
		{"io failed", direrr.Kind(direrr.ErrIOFailed, "x"), fiber.StatusInternalServerError},
		{
			"hook rejected unwraps to the underlying kind",
			direrr.Wrap(direrr.ErrHookRejected, direrr.Kind(direrr.ErrOrgNotEmpty, "y"), "hook rejected: %v", "y"),
			fiber.StatusConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
