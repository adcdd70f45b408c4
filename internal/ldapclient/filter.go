package ldapclient

import "github.com/go-ldap/ldap/v3"

// EscapeFilterValue escapes value for safe interpolation into an LDAP
// filter string, e.g. when building "(attr=<value>)" from a DN or other
// caller-controlled string.
func EscapeFilterValue(value string) string {
	return ldap.EscapeFilter(value)
}
