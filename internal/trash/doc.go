// Package trash implements soft-delete: a chained ldapDeleteRequest
// subscriber that intercepts deletes under watched branches and relocates
// the entry to a trash branch instead of letting the hard delete proceed
// (spec.md §4.6). DNs outside every watched branch pass through untouched.
package trash
