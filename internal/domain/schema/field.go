package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the indexing kind of a field.
type Kind string

// Field kinds.
const (
	// Text is analysed full-text content.
	Text Kind = "text"
	// Filterable is an exact-match scalar usable in filters and ordering.
	Filterable Kind = "filterable"
	// RelatedID is a (possibly multi-valued) reference to another object's identity.
	RelatedID Kind = "related_id"
	// Autocomplete is text indexed for prefix (search-as-you-type) matching.
	Autocomplete Kind = "autocomplete"
)

// IsValid reports whether the kind is supported.
func (k Kind) IsValid() bool {
	switch k {
	case Text, Filterable, RelatedID, Autocomplete:
		return true
	}
	return false
}

// Searchable reports whether full-text queries may target the kind.
func (k Kind) Searchable() bool { return k == Text || k == Autocomplete }

// ValueType is the scalar type of a filterable field.
type ValueType string

// Value types.
const (
	String ValueType = "string"
	Bool   ValueType = "bool"
	Number ValueType = "number"
	Time   ValueType = "time"
)

// IsValid reports whether the value type is supported.
func (t ValueType) IsValid() bool {
	switch t {
	case String, Bool, Number, Time:
		return true
	}
	return false
}

// Reserved document attributes every backend stores next to the declared fields.
const (
	DocIDField   = "doc_id"
	DocTypeField = "doc_type"
)

// EnginePrefix starts names the storage engines keep for their own tables and columns.
const EnginePrefix = "search_"

var (
	fieldNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	// rank and rowid are hidden columns of every SQLite full-text table.
	reservedFields = map[string]bool{DocIDField: true, DocTypeField: true, "rank": true, "rowid": true}
)

// DefaultBoost is the static weight of a field without an explicit boost.
const DefaultBoost = 1.0

// FieldSpec describes one indexable field of an object type.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Type     ValueType
	Boost    float64
	Nullable bool
}

// normalize fills defaults and validates f.
func (f FieldSpec) normalize() (FieldSpec, error) {
	if !fieldNameRegex.MatchString(f.Name) {
		return f, fmt.Errorf("field name %q must match %s", f.Name, fieldNameRegex)
	}
	if reservedFields[f.Name] || strings.HasPrefix(f.Name, EnginePrefix) {
		return f, fmt.Errorf("field name %q is reserved", f.Name)
	}
	if !f.Kind.IsValid() {
		return f, fmt.Errorf("field %q: invalid kind %q", f.Name, f.Kind)
	}
	switch f.Kind {
	case Filterable:
		if f.Type == "" {
			f.Type = String
		}
		if !f.Type.IsValid() {
			return f, fmt.Errorf("field %q: invalid type %q", f.Name, f.Type)
		}
	default:
		if f.Type != "" && f.Type != String {
			return f, fmt.Errorf("field %q: kind %s only holds strings", f.Name, f.Kind)
		}
		f.Type = String
	}
	if f.Boost == 0 {
		f.Boost = DefaultBoost
	}
	if f.Boost < 0 {
		return f, fmt.Errorf("field %q: boost must be positive", f.Name)
	}
	return f, nil
}
