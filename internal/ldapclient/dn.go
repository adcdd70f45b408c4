package ldapclient

import "strings"

// normalizeDN implements spec.md §4.1's DN normalization: a bare
// identifier (no "=") is prefixed as "<userMainAttribute>=<id>,<base>"; a
// value with "=" but no "," is treated as an RDN and has base appended.
// NormalizeDNWithBase exposes normalizeDN for callers (internal/entity)
// that need to compute a DN against a base other than this client's own
// configured base, e.g. a per-entity-kind branch.
func NormalizeDNWithBase(idOrDN, mainAttribute, base string) string {
	return normalizeDN(idOrDN, mainAttribute, base)
}

func normalizeDN(idOrDN, mainAttribute, base string) string {
	if !strings.Contains(idOrDN, "=") {
		return mainAttribute + "=" + idOrDN + "," + base
	}

	if !strings.Contains(idOrDN, ",") {
		return idOrDN + "," + base
	}

	return idOrDN
}
