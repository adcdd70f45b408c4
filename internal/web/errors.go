package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/direrr"
)

// statusForError maps a direrr kind to the HTTP status code spec.md §6
// assigns it. Unrecognized errors fall back to 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, direrr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, direrr.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, direrr.ErrUnknownAttr),
		errors.Is(err, direrr.ErrRequiredMissing),
		errors.Is(err, direrr.ErrTestFailed),
		errors.Is(err, direrr.ErrFixedMismatch),
		errors.Is(err, direrr.ErrFixedImmutable),
		errors.Is(err, direrr.ErrPointerDangling),
		errors.Is(err, direrr.ErrPointerOutOfBranch),
		errors.Is(err, direrr.ErrOrgLinkImmutable),
		errors.Is(err, direrr.ErrOrgPathImmutable):
		return fiber.StatusBadRequest
	case errors.Is(err, direrr.ErrOrgNotEmpty):
		return fiber.StatusConflict
	case errors.Is(err, direrr.ErrConstraint):
		return fiber.StatusConflict
	case errors.Is(err, direrr.ErrHookRejected):
		return statusForError(errors.Unwrap(err))
	case errors.Is(err, direrr.ErrTrashMoveFailed),
		errors.Is(err, direrr.ErrBindFailed),
		errors.Is(err, direrr.ErrIOFailed):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError maps err to a status code and writes spec.md §6's
// {error: <message>} body. Unrecognized errors log the full structured
// error but only ever surface a generic message to the client.
func writeError(c *fiber.Ctx, err error) error {
	status := statusForError(err)

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("internal error")
		message = "internal error, check server logs"
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

// handle500 is the Fiber-level error handler for errors that escape every
// route handler (routing failures, panics recovered by fiber's recover
// middleware, etc).
func handle500(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	return writeError(c, err)
}
