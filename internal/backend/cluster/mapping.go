package cluster

import (
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

const dateFormat = "strict_date_optional_time||epoch_millis"

// indexBody renders the create-index request of a new generation. Refresh is disabled
// until the generation is sealed.
func indexBody(ot schema.ObjectType, cfg Config) map[string]any {
	props := map[string]any{
		schema.DocIDField:   map[string]any{"type": "keyword"},
		schema.DocTypeField: map[string]any{"type": "keyword"},
	}
	for _, f := range ot.Fields() {
		props[f.Name] = fieldMapping(f)
	}

	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   cfg.Shards,
				"number_of_replicas": cfg.Replicas,
				"refresh_interval":   "-1",
				"max_result_window":  cfg.MaxResultWindow,
			},
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"default": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"dynamic":    "strict",
			"properties": props,
		},
	}
}

func fieldMapping(f schema.FieldSpec) map[string]any {
	switch f.Kind {
	case schema.Text:
		return map[string]any{"type": "text"}
	case schema.Autocomplete:
		return map[string]any{"type": "search_as_you_type"}
	case schema.RelatedID:
		return map[string]any{"type": "keyword"}
	}
	switch f.Type {
	case schema.Bool:
		return map[string]any{"type": "boolean"}
	case schema.Number:
		return map[string]any{"type": "double"}
	case schema.Time:
		return map[string]any{"type": "date", "format": dateFormat}
	}
	return map[string]any{"type": "keyword"}
}

// source renders the stored body of a document.
func source(doc document.Document) map[string]any {
	src := doc.Source()
	src[schema.DocIDField] = doc.ID()
	src[schema.DocTypeField] = doc.Type()
	return src
}

// wireValue renders a coerced filter value for a query clause.
func wireValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}
