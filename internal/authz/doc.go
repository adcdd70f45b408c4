// Package authz implements AuthzPerBranch (spec.md §4.7): a per-user/
// per-group read/write/delete permission matrix keyed by branch prefix,
// backed by a TTL'd group-membership cache, subscribed onto the hook
// registry's ldapSearchRequest/ldapAddRequest/ldapModifyRequest/
// ldapRenameRequest/ldapDeleteRequest chains. Every chained hook rejects
// with direrr.ErrPermissionDenied before the wire call is attempted.
//
// LdapClient.Move never runs a chained pre-hook of its own; the
// organizationLink/organizationPath rewrite that precedes every move runs
// through Modify and is gated by onModifyRequest the same as any other
// write. A move that also relocates the DN (schema.EntitySpec.MoveChangesDN) is
// not separately gated at the DN-relocation step, since no hook fires
// there today.
package authz
