// Package mapper projects application objects into index documents.
package mapper

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// TypeSource resolves object types.
type TypeSource interface {
	Type(key string) (schema.ObjectType, error)
}

// Mapper builds Documents from object instances using the registered schema.
type Mapper struct {
	types    TypeSource
	accessor Accessor
	logger   *zap.Logger
}

// New creates a Mapper.
func New(types TypeSource, accessor Accessor, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{types: types, accessor: accessor, logger: logger}
}

// Map projects instance into a Document of objectType. A field whose value cannot be read
// or coerced is omitted, logged and counted; the rest of the document is still built.
// Only an unknown type or an unusable primary key fail the whole call.
func (m *Mapper) Map(objectType string, instance any) (document.Document, error) {
	doc, _, err := m.MapWithErrors(objectType, instance)
	return doc, err
}

// MapWithErrors is Map that also returns the field-level MappingErrors.
func (m *Mapper) MapWithErrors(objectType string, instance any) (document.Document, []*domain.MappingError, error) {
	ot, err := m.types.Type(objectType)
	if err != nil {
		return document.Document{}, nil, err
	}

	pk, err := m.accessor.PrimaryKey(instance)
	if err != nil {
		return document.Document{}, nil, fmt.Errorf("map %s: %w", objectType, err)
	}
	if pk == "" {
		return document.Document{}, nil, fmt.Errorf("map %s: empty primary key", objectType)
	}

	specs := ot.Fields()
	fields := make([]document.Field, 0, len(specs))
	var fieldErrs []*domain.MappingError
	for _, spec := range specs {
		f, ok, err := m.mapField(spec, instance)
		if err != nil {
			me := &domain.MappingError{ObjectType: objectType, Field: spec.Name, Err: err}
			fieldErrs = append(fieldErrs, me)
			m.logger.Warn("Field dropped from document",
				zap.String("object_type", objectType),
				zap.String("primary_key", pk),
				zap.String("field", spec.Name),
				zap.Error(err),
			)
			metrics.MappingErrorsTotal.WithLabelValues(objectType, spec.Name).Inc()
			continue
		}
		if ok {
			fields = append(fields, f)
		}
	}

	doc, err := document.New(objectType, pk, fields)
	if err != nil {
		return document.Document{}, fieldErrs, fmt.Errorf("map %s: %w", objectType, err)
	}
	return doc, fieldErrs, nil
}

// mapField returns ok=false for an absent nullable value.
func (m *Mapper) mapField(spec schema.FieldSpec, instance any) (document.Field, bool, error) {
	raw, err := m.accessor.Value(instance, spec.Name)
	if err != nil {
		return document.Field{}, false, fmt.Errorf("read: %w", err)
	}

	v, err := spec.Coerce(raw)
	if errors.Is(err, schema.ErrNilValue) {
		if spec.Nullable {
			return document.Field{}, false, nil
		}
		return document.Field{}, false, fmt.Errorf("value is required")
	}
	if err != nil {
		return document.Field{}, false, err
	}

	return document.Field{
		Name:  spec.Name,
		Kind:  spec.Kind,
		Type:  spec.Type,
		Boost: spec.Boost,
		Value: v,
	}, true, nil
}
