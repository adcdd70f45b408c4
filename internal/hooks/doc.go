// Package hooks implements the typed extension-point registry that wraps
// every LDAP verb in the directory engine. Handlers are registered once, at
// plugin-load time, against a hook name; after load the registry is
// read-only and safe for concurrent dispatch.
//
// There are two dispatch shapes:
//
//   - Chained: handlers run in registration order, each receiving the
//     previous handler's output and free to substitute it. A handler that
//     returns an error aborts the chain; the error is wrapped as
//     direrr.ErrHookRejected and surfaces to the initiating operation.
//   - Fan-out: handlers run concurrently, their return values are ignored,
//     and their errors are logged, never surfaced to the caller.
package hooks
