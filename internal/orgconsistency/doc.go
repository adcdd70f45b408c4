// Package orgconsistency enforces the referential-integrity invariants
// between entries and the organization branch they belong to
// (organizationLink/organizationPath, spec.md §3 invariants 1, 2, 3, 6).
// It is wired entirely through the hook registry: it never appears in the
// call graph of internal/entity or internal/ldapclient directly, and
// instead reacts to ldapAddRequest, ldapModifyRequest, ldapDeleteRequest
// (chained, so it can reject a violating write before it reaches the
// wire), and ldapRenameDone/ldapMoveDone (fan-out, so it can rewrite
// descendants after an organization has actually moved).
package orgconsistency
