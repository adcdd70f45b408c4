// Package schema loads operator-declared JSON entity schemas and validates
// entries against them. A schema describes one LDAP entity kind: its base
// DN, its object classes, and an attribute map whose specs carry type,
// required/fixed/default rules, a validation regex, and — for pointer
// attributes — the set of branch prefixes a target must resolve under.
//
// Schemas are loaded once at startup (or on a hot-reload tick driven by
// internal/config's file watcher) and are treated as immutable afterwards;
// nothing in this package takes a lock, by design — callers must not mutate
// a *Schema once it has been loaded.
package schema
