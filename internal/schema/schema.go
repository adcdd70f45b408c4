package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AttrType enumerates the scalar and compound types an attribute may carry.
type AttrType string

const (
	TypeString  AttrType = "string"
	TypeNumber  AttrType = "number"
	TypeInteger AttrType = "integer"
	TypeArray   AttrType = "array"
	TypePointer AttrType = "pointer"
)

// Role tags the semantic meaning of an attribute. The set is open-ended;
// OrgConsistency and the HTTP surface only care about a handful of values
// (RoleIdentifier, RoleOrganizationLink, RoleOrganizationPath).
type Role string

const (
	RoleIdentifier        Role = "identifier"
	RoleDisplayName       Role = "displayName"
	RolePrimaryEmail      Role = "primaryEmail"
	RoleOrganizationLink  Role = "organizationLink"
	RoleOrganizationPath  Role = "organizationPath"
)

// AttributeSpec describes the validation rules for one attribute.
type AttributeSpec struct {
	Type     AttrType       `json:"type"`
	Required bool           `json:"required,omitempty"`
	Fixed    bool           `json:"fixed,omitempty"`
	Default  any            `json:"default,omitempty"`
	Role     Role           `json:"role,omitempty"`
	Test     string         `json:"test,omitempty"`
	Branch   []string       `json:"branch,omitempty"`
	Items    *AttributeSpec `json:"items,omitempty"`
	Group    string         `json:"group,omitempty"`
}

// EntitySpec is the `entity` block of a schema document.
type EntitySpec struct {
	Name              string            `json:"name"`
	MainAttribute     string            `json:"mainAttribute"`
	ObjectClass       []string          `json:"objectClass"`
	SingularName      string            `json:"singularName"`
	PluralName        string            `json:"pluralName"`
	Base              string            `json:"base"`
	DefaultAttributes map[string]any    `json:"defaultAttributes,omitempty"`

	// MoveChangesDN opts an entity kind into also relocating the LDAP entry
	// itself (via LdapClient.Move) when FlatEntity.Move runs, instead of only
	// rewriting organizationLink/organizationPath in place. Organizations
	// always relocate their DN (the HTTP move handler calls LdapClient.Move
	// for them, and OrgConsistency then rewrites the links into the moved
	// subtree); this flag is for non-organization entity kinds that want
	// their DN relocated too.
	MoveChangesDN bool `json:"moveChangesDN,omitempty"`
}

// Schema is one operator-declared entity kind document.
type Schema struct {
	Entity     EntitySpec               `json:"entity"`
	Strict     bool                     `json:"strict,omitempty"`
	Attributes map[string]AttributeSpec `json:"attributes"`

	// SourcePath records where this schema was loaded from, for hot-reload
	// diagnostics and error messages. Not part of the wire format.
	SourcePath string `json:"-"`
}

// AttributeNamed returns the spec for name and whether it is declared.
func (s *Schema) AttributeNamed(name string) (AttributeSpec, bool) {
	spec, ok := s.Attributes[name]
	return spec, ok
}

// RoleAttribute returns the first attribute name declared with role, and
// whether one exists. Schemas are expected to declare at most one attribute
// per role that OrgConsistency cares about.
func (s *Schema) RoleAttribute(role Role) (string, bool) {
	for name, spec := range s.Attributes {
		if spec.Role == role {
			return name, true
		}
	}

	return "", false
}

// Load reads and parses a single schema document from path.
func Load(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}

	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}

	s.SourcePath = path

	if s.Entity.Name == "" {
		return nil, fmt.Errorf("schema: %s: entity.name is required", path)
	}

	return &s, nil
}

// LoadAll reads every schema named in paths, keyed by Entity.Name.
func LoadAll(paths []string) (map[string]*Schema, error) {
	out := make(map[string]*Schema, len(paths))

	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}

		if _, dup := out[s.Entity.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate entity name %q (from %s)", s.Entity.Name, p)
		}

		out[s.Entity.Name] = s
	}

	return out, nil
}

// ResolvePlaceholders substitutes `{config_key}` tokens in base, branch, and
// items.branch fields using values from config. It mutates and returns s in
// place so callers can chain it onto Load.
func (s *Schema) ResolvePlaceholders(config map[string]string) *Schema {
	s.Entity.Base = substitute(s.Entity.Base, config)

	for name, spec := range s.Attributes {
		spec.Branch = substituteAll(spec.Branch, config)

		if spec.Items != nil {
			items := *spec.Items
			items.Branch = substituteAll(items.Branch, config)
			spec.Items = &items
		}

		s.Attributes[name] = spec
	}

	return s
}

func substitute(value string, config map[string]string) string {
	if !strings.Contains(value, "{") {
		return value
	}

	out := value
	for key, v := range config {
		out = strings.ReplaceAll(out, "{"+key+"}", v)
	}

	return out
}

func substituteAll(values []string, config map[string]string) []string {
	if len(values) == 0 {
		return values
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = substitute(v, config)
	}

	return out
}
