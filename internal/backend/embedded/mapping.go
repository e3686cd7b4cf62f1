package embedded

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// textAnalyzer splits on Unicode word boundaries and lowercases, without stemming or
// stop words.
const textAnalyzer = "searchcore_text"

// indexMapping builds the static mapping of one object type.
func indexMapping(ot schema.ObjectType) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(textAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("add analyzer: %w", err)
	}
	im.DefaultAnalyzer = textAnalyzer
	im.StoreDynamic = false
	im.IndexDynamic = false
	im.DocValuesDynamic = false

	dm := bleve.NewDocumentStaticMapping()
	dm.AddFieldMappingsAt(schema.DocIDField, keywordField())
	dm.AddFieldMappingsAt(schema.DocTypeField, keywordField())
	for _, f := range ot.Fields() {
		dm.AddFieldMappingsAt(f.Name, fieldMapping(f))
	}
	im.DefaultMapping = dm
	return im, nil
}

func fieldMapping(f schema.FieldSpec) *mapping.FieldMapping {
	switch f.Kind {
	case schema.Text, schema.Autocomplete:
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = textAnalyzer
		fm.Store = false
		fm.IncludeInAll = false
		return fm
	case schema.RelatedID:
		return keywordField()
	}
	var fm *mapping.FieldMapping
	switch f.Type {
	case schema.Bool:
		fm = bleve.NewBooleanFieldMapping()
	case schema.Number:
		fm = bleve.NewNumericFieldMapping()
	case schema.Time:
		fm = bleve.NewDateTimeFieldMapping()
	default:
		return keywordField()
	}
	fm.Store = false
	fm.IncludeInAll = false
	return fm
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewKeywordFieldMapping()
	fm.Analyzer = keyword.Name
	fm.Store = false
	fm.IncludeInAll = false
	fm.IncludeTermVectors = false
	return fm
}

// source renders the value map bleve indexes for doc.
func source(doc document.Document) map[string]any {
	data := make(map[string]any, len(doc.Fields())+2)
	for _, f := range doc.Fields() {
		data[f.Name] = f.Value
	}
	data[schema.DocIDField] = doc.ID()
	data[schema.DocTypeField] = doc.Type()
	return data
}
