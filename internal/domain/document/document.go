// Package document defines the backend-neutral projection of an object instance.
package document

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// idSeparator joins the type key and the primary key. Type keys cannot contain it.
const idSeparator = ":"

// MaxPrimaryKeyLen bounds primary keys so ids stay usable as cluster _id values.
const MaxPrimaryKeyLen = 256

// Field is one coerced field value. Value holds string, []string, bool, float64 or time.Time.
type Field struct {
	Name  string
	Kind  schema.Kind
	Type  schema.ValueType
	Boost float64
	Value any
}

// Strings returns the value as a list of strings (text, autocomplete, related ids, string filters).
func (f Field) Strings() []string {
	switch v := f.Value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	}
	return nil
}

// Text returns string values joined by a space.
func (f Field) Text() string { return strings.Join(f.Strings(), " ") }

// Document is an immutable indexable projection of one object instance.
type Document struct {
	id         string
	objectType string
	primaryKey string
	fields     []Field
}

// ID builds the deterministic document id for a type and primary key.
func ID(objectType, primaryKey string) string {
	return objectType + idSeparator + primaryKey
}

// ParseID splits a document id into type key and primary key.
func ParseID(id string) (objectType, primaryKey string, err error) {
	objectType, primaryKey, ok := strings.Cut(id, idSeparator)
	if !ok || objectType == "" || primaryKey == "" {
		return "", "", fmt.Errorf("malformed document id %q", id)
	}
	return objectType, primaryKey, nil
}

// New validates and creates a Document. Fields are kept in the given order.
func New(objectType, primaryKey string, fields []Field) (Document, error) {
	if objectType == "" {
		return Document{}, fmt.Errorf("object type is required")
	}
	if strings.Contains(objectType, idSeparator) {
		return Document{}, fmt.Errorf("object type %q must not contain %q", objectType, idSeparator)
	}
	if primaryKey == "" {
		return Document{}, fmt.Errorf("primary key is required")
	}
	if len(primaryKey) > MaxPrimaryKeyLen {
		return Document{}, fmt.Errorf("primary key too long (max %d)", MaxPrimaryKeyLen)
	}

	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Document{
		id:         ID(objectType, primaryKey),
		objectType: objectType,
		primaryKey: primaryKey,
		fields:     cp,
	}, nil
}

// ID returns the document id (<type>:<primary key>).
func (d Document) ID() string { return d.id }

// Type returns the object type key.
func (d Document) Type() string { return d.objectType }

// PrimaryKey returns the source object's primary key.
func (d Document) PrimaryKey() string { return d.primaryKey }

// Fields returns a copy of the fields.
func (d Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Field returns the named field.
func (d Document) Field(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Source returns a JSON-friendly map of field values. Times are RFC 3339 strings in UTC.
func (d Document) Source() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		if t, ok := f.Value.(time.Time); ok {
			out[f.Name] = t.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[f.Name] = f.Value
	}
	return out
}

// Stream is a lazy, finite, single-use sequence of documents.
type Stream = iter.Seq2[Document, error]

// FromSlice returns a Stream over docs.
func FromSlice(docs []Document) Stream {
	return func(yield func(Document, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// Collect drains a stream into a slice, stopping at the first error.
func Collect(s Stream) ([]Document, error) {
	var out []Document
	for d, err := range s {
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}
