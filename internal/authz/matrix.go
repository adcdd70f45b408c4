package authz

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Permission is the {read, write, delete} triple spec.md §4.7 defines for
// every branch entry.
type Permission struct {
	Read   bool `json:"read,omitempty"`
	Write  bool `json:"write,omitempty"`
	Delete bool `json:"delete,omitempty"`
}

// Union ORs every field of p and other together.
func (p Permission) Union(other Permission) Permission {
	return Permission{
		Read:   p.Read || other.Read,
		Write:  p.Write || other.Write,
		Delete: p.Delete || other.Delete,
	}
}

// satisfies reports whether have covers every field want asks for.
func satisfies(have, want Permission) bool {
	if want.Read && !have.Read {
		return false
	}

	if want.Write && !have.Write {
		return false
	}

	if want.Delete && !have.Delete {
		return false
	}

	return true
}

// BranchPermissions maps a branch DN to the permission it grants.
type BranchPermissions map[string]Permission

// Matrix is the JSON document spec.md §4.7 describes.
type Matrix struct {
	Default         Permission                   `json:"default"`
	Users           map[string]BranchPermissions `json:"users,omitempty"`
	Groups          map[string]BranchPermissions `json:"groups,omitempty"`
	CacheTTLSeconds int                           `json:"cacheTtl,omitempty"`
}

// CacheTTL returns CacheTTLSeconds as a duration, defaulting to 5 minutes
// when unset.
func (m *Matrix) CacheTTL() time.Duration {
	if m.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}

	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// LoadMatrix reads and parses the permission matrix document from path.
func LoadMatrix(path string) (*Matrix, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: read %s: %w", path, err)
	}

	var m Matrix
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("authz: parse %s: %w", path, err)
	}

	return &m, nil
}

func mergeMatchingBranches(branches BranchPermissions, dn string) Permission {
	var out Permission

	for branch, perm := range branches {
		if isUnderBranch(dn, branch) {
			out = out.Union(perm)
		}
	}

	return out
}

// isUnderBranch reports whether dn lies under branch, i.e. branch is a
// suffix of dn (the glossary's definition of "branch").
func isUnderBranch(dn, branch string) bool {
	if equalFoldDN(dn, branch) {
		return true
	}

	if len(dn) <= len(branch)+1 {
		return false
	}

	idx := len(dn) - len(branch)

	return dn[idx-1] == ',' && equalFoldDN(dn[idx:], branch)
}

func equalFoldDN(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]

		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}

		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}

		if ca != cb {
			return false
		}
	}

	return true
}
