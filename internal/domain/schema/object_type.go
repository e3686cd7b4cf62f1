package schema

import (
	"fmt"
	"regexp"
)

var typeKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// ObjectType is an immutable class of indexable entities.
type ObjectType struct {
	key    string
	fields []FieldSpec
	byName map[string]int
}

// NewObjectType validates and creates an ObjectType. Field order is preserved.
func NewObjectType(key string, fields []FieldSpec) (ObjectType, error) {
	if !typeKeyRegex.MatchString(key) {
		return ObjectType{}, fmt.Errorf("type key %q must match %s", key, typeKeyRegex)
	}
	if len(fields) == 0 {
		return ObjectType{}, fmt.Errorf("type %q declares no fields", key)
	}

	ot := ObjectType{
		key:    key,
		fields: make([]FieldSpec, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		nf, err := f.normalize()
		if err != nil {
			return ObjectType{}, fmt.Errorf("type %q: %w", key, err)
		}
		if _, dup := ot.byName[nf.Name]; dup {
			return ObjectType{}, fmt.Errorf("type %q: duplicate field name %q", key, nf.Name)
		}
		ot.byName[nf.Name] = len(ot.fields)
		ot.fields = append(ot.fields, nf)
	}
	return ot, nil
}

// Key returns the unique type key.
func (t ObjectType) Key() string { return t.key }

// Fields returns a copy of the field specs in declaration order.
func (t ObjectType) Fields() []FieldSpec {
	out := make([]FieldSpec, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a field spec by name.
func (t ObjectType) Field(name string) (FieldSpec, bool) {
	i, ok := t.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return t.fields[i], true
}

// SearchableFields returns the text and autocomplete fields in declaration order.
func (t ObjectType) SearchableFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range t.fields {
		if f.Kind.Searchable() {
			out = append(out, f)
		}
	}
	return out
}
