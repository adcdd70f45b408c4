// Package ldapclient is the single mediation point for every LDAP wire
// operation: search, add, modify, rename, move and delete all pass through
// here so that connection pooling, the hook chain, caching and the
// concurrency limiter apply uniformly regardless of which higher-level
// component (internal/entity, internal/orgconsistency, internal/trash,
// internal/authz) issued the call.
//
// The wire layer is built directly on github.com/go-ldap/ldap/v3's *ldap.Conn
// rather than a fixed-shape high-level client, because callers here need to
// add/modify/rename arbitrary operator-declared entity kinds, not a
// pre-baked User/Group/Computer model.
package ldapclient
