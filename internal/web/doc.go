// Package web exposes the directory engine over JSON/HTTP on the teacher's
// Fiber v2 stack: a generic REST surface per entity kind, an organization
// hierarchy browser, bulk CSV import, and the operational health endpoints,
// replacing the teacher's server-rendered user/group/computer pages.
package web
