// Package entity implements FlatEntity: generic CRUD over one LDAP branch,
// driven entirely by a schema.Schema. Every REST resource the HTTP surface
// exposes (people, groups, organizations, or any operator-declared kind) is
// one FlatEntity instance; nothing in this package hard-codes a particular
// entity kind's attribute names beyond the handful of schema roles
// (identifier, organizationLink, organizationPath) it needs to implement
// list/get/add/modify/rename/move/delete/search.
package entity
