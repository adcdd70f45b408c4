package schema

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dirctl/ldapdm/internal/direrr"
)

// Entry is a mapping from attribute name to its ordered, multi-valued
// scalars. Every Entry the LDAP layer produces carries a "dn" key; Entry
// values passed into validation need not.
type Entry map[string][]string

// Clone returns a deep copy so validation can fill in defaults without
// mutating the caller's map.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = append([]string(nil), v...)
	}

	return out
}

// ChangeSet is the three-bucket change shape LdapClient.modify accepts.
// Delete entries with a nil/empty value slice remove the whole attribute;
// a populated slice removes only those values.
type ChangeSet struct {
	Add     Entry
	Replace Entry
	Delete  Entry
}

// Empty reports whether every bucket is empty, the "no-op modify" case
// LdapClient logs a warning for and still fans out ldapModifyDone with.
func (c ChangeSet) Empty() bool {
	return len(c.Add) == 0 && len(c.Replace) == 0 && len(c.Delete) == 0
}

// Operation selects which rule set Validate applies.
type Operation string

const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
)

// Resolver looks up whether a pointer target DN exists and, if so, its full
// resolved DN (so the branch-prefix check can be applied). Implemented by
// internal/ldapclient against the live directory; a test double can stub it.
type Resolver interface {
	ResolveDN(ctx context.Context, dn string) (resolvedDN string, exists bool, err error)
}

var testCache sync.Map // compiled regex cache, keyed by pattern string

func compileTest(pattern string) (*regexp.Regexp, error) {
	if v, ok := testCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	testCache.Store(pattern, re)

	return re, nil
}

// ValidateCreate validates entry for an add operation: required attributes
// must be present, fixed attributes are filled from default (or checked for
// equality if supplied), test regexes and pointer targets are checked. It
// returns the entry with defaults (fixed and otherwise) applied.
func ValidateCreate(ctx context.Context, s *Schema, entry Entry, resolver Resolver) (Entry, error) {
	out := entry.Clone()

	if err := applyDefaults(s, out); err != nil {
		return nil, err
	}

	for name, spec := range s.Attributes {
		vals, present := out[name]

		if spec.Required && !present {
			return nil, direrr.Kind(direrr.ErrRequiredMissing, "%s", name)
		}

		if spec.Fixed {
			if err := checkFixedOnCreate(name, spec, out); err != nil {
				return nil, err
			}

			continue
		}

		if !present {
			continue
		}

		if err := validateValues(ctx, name, spec, vals, resolver); err != nil {
			return nil, err
		}
	}

	if s.Strict {
		if err := rejectUnknownAttrs(s, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// ValidateModify validates a ChangeSet for a modify operation: any bucket
// touching a fixed attribute is rejected outright; add/replace buckets are
// otherwise checked the same way create values are.
func ValidateModify(ctx context.Context, s *Schema, changes ChangeSet, resolver Resolver) error {
	for name := range changes.Add {
		if spec, ok := s.Attributes[name]; ok && spec.Fixed {
			return direrr.Kind(direrr.ErrFixedImmutable, "%s", name)
		}
	}

	for name := range changes.Replace {
		if spec, ok := s.Attributes[name]; ok && spec.Fixed {
			return direrr.Kind(direrr.ErrFixedImmutable, "%s", name)
		}
	}

	for name := range changes.Delete {
		if spec, ok := s.Attributes[name]; ok && spec.Fixed {
			return direrr.Kind(direrr.ErrFixedImmutable, "%s", name)
		}
	}

	for name, vals := range changes.Add {
		spec, ok := s.Attributes[name]
		if !ok {
			if s.Strict {
				return direrr.Kind(direrr.ErrUnknownAttr, "%s", name)
			}

			continue
		}

		if err := validateValues(ctx, name, spec, vals, resolver); err != nil {
			return err
		}
	}

	for name, vals := range changes.Replace {
		spec, ok := s.Attributes[name]
		if !ok {
			if s.Strict {
				return direrr.Kind(direrr.ErrUnknownAttr, "%s", name)
			}

			continue
		}

		if err := validateValues(ctx, name, spec, vals, resolver); err != nil {
			return err
		}
	}

	return nil
}

func applyDefaults(s *Schema, entry Entry) error {
	for name, spec := range s.Attributes {
		if spec.Default == nil {
			continue
		}

		if _, present := entry[name]; present {
			continue
		}

		entry[name] = defaultToValues(spec.Default)
	}

	return nil
}

func checkFixedOnCreate(name string, spec AttributeSpec, entry Entry) error {
	defaults := defaultToValues(spec.Default)

	vals, present := entry[name]
	if !present {
		entry[name] = defaults
		return nil
	}

	if !sameSet(vals, defaults) {
		return direrr.Kind(direrr.ErrFixedMismatch, "%s", name)
	}

	return nil
}

func defaultToValues(def any) []string {
	switch v := def.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprintf("%v", item)
		}

		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)

	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}

	return true
}

func validateValues(ctx context.Context, name string, spec AttributeSpec, vals []string, resolver Resolver) error {
	itemSpec := spec
	isArray := spec.Type == TypeArray

	if isArray && spec.Items != nil {
		itemSpec = *spec.Items
	} else if isArray && len(vals) > 1 {
		// Array without an items spec: treat as untyped multi-valued string.
		itemSpec = AttributeSpec{Type: TypeString}
	}

	for _, v := range vals {
		if err := validateScalar(ctx, name, itemSpec, v, resolver); err != nil {
			return err
		}
	}

	return nil
}

func validateScalar(ctx context.Context, name string, spec AttributeSpec, value string, resolver Resolver) error {
	switch spec.Type {
	case TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return direrr.Kind(direrr.ErrTestFailed, "%s: %q is not an integer", name, value)
		}
	case TypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return direrr.Kind(direrr.ErrTestFailed, "%s: %q is not a number", name, value)
		}
	case TypePointer:
		if err := validatePointer(ctx, name, spec, value, resolver); err != nil {
			return err
		}
	}

	if spec.Test != "" {
		re, err := compileTest(spec.Test)
		if err != nil {
			return direrr.Kind(direrr.ErrTestFailed, "%s: invalid test pattern: %v", name, err)
		}

		if !re.MatchString(value) {
			return direrr.Kind(direrr.ErrTestFailed, "%s: %q does not match %s", name, value, spec.Test)
		}
	}

	return nil
}

func validatePointer(ctx context.Context, name string, spec AttributeSpec, dn string, resolver Resolver) error {
	if resolver == nil {
		return nil
	}

	resolved, exists, err := resolver.ResolveDN(ctx, dn)
	if err != nil {
		return fmt.Errorf("schema: resolve pointer %s=%s: %w", name, dn, err)
	}

	if !exists {
		return direrr.Kind(direrr.ErrPointerDangling, "%s -> %s", name, dn)
	}

	if len(spec.Branch) == 0 {
		return nil
	}

	lower := strings.ToLower(resolved)

	for _, b := range spec.Branch {
		if strings.HasSuffix(lower, strings.ToLower(b)) {
			return nil
		}
	}

	return direrr.Kind(direrr.ErrPointerOutOfBranch, "%s -> %s not under %v", name, resolved, spec.Branch)
}

func rejectUnknownAttrs(s *Schema, entry Entry) error {
	for name := range entry {
		if name == "dn" {
			continue
		}

		if _, ok := s.Attributes[name]; !ok {
			return direrr.Kind(direrr.ErrUnknownAttr, "%s", name)
		}
	}

	return nil
}
