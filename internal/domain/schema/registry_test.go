package schema

import (
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

func articleFields() []FieldSpec {
	return []FieldSpec{
		{Name: "title", Kind: Text, Boost: 2},
		{Name: "body", Kind: Text},
		{Name: "live", Kind: Filterable, Type: Bool},
		{Name: "tags", Kind: RelatedID},
	}
}

func TestRegister_Valid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("article", articleFields()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	specs, err := r.SpecsFor("article")
	if err != nil {
		t.Fatalf("SpecsFor: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("len(specs) = %d, want 4", len(specs))
	}
	if specs[0].Name != "title" || specs[0].Boost != 2 {
		t.Errorf("specs[0] = %+v", specs[0])
	}
	if specs[1].Boost != DefaultBoost || specs[1].Type != String {
		t.Errorf("defaults not applied: %+v", specs[1])
	}
	if specs[2].Type != Bool {
		t.Errorf("specs[2].Type = %q", specs[2].Type)
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		fields []FieldSpec
	}{
		{"bad key", "Article", articleFields()},
		{"key with colon", "a:b", articleFields()},
		{"no fields", "article", nil},
		{"duplicate field", "article", []FieldSpec{{Name: "t", Kind: Text}, {Name: "t", Kind: Text}}},
		{"reserved field", "article", []FieldSpec{{Name: DocIDField, Kind: Text}}},
		{"engine column rank", "article", []FieldSpec{{Name: "rank", Kind: Text}}},
		{"engine column rowid", "article", []FieldSpec{{Name: "rowid", Kind: Filterable}}},
		{"engine table name", "article", []FieldSpec{{Name: "search_fts_article", Kind: Text}}},
		{"bad field name", "article", []FieldSpec{{Name: "1x", Kind: Text}}},
		{"bad kind", "article", []FieldSpec{{Name: "t", Kind: "vector"}}},
		{"bad type", "article", []FieldSpec{{Name: "t", Kind: Filterable, Type: "blob"}}},
		{"typed text", "article", []FieldSpec{{Name: "t", Kind: Text, Type: Number}}},
		{"negative boost", "article", []FieldSpec{{Name: "t", Kind: Text, Boost: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.key, tt.fields)
			if !errors.Is(err, domain.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("article", articleFields())
	if err := r.Register("article", articleFields()); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestRegister_AfterFreeze(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	if err := r.Register("article", articleFields()); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestType_Unknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Type("nope"); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestTypes_Order(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("page", articleFields())
	_ = r.Register("article", articleFields())

	types := r.Types()
	if len(types) != 2 || types[0].Key() != "page" || types[1].Key() != "article" {
		t.Errorf("Types() order wrong: %v", types)
	}
	keys := r.Keys()
	if keys[0] != "article" || keys[1] != "page" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestObjectType_SearchableFields(t *testing.T) {
	ot, err := NewObjectType("article", append(articleFields(), FieldSpec{Name: "title_ac", Kind: Autocomplete}))
	if err != nil {
		t.Fatal(err)
	}
	got := ot.SearchableFields()
	if len(got) != 3 || got[0].Name != "title" || got[2].Name != "title_ac" {
		t.Errorf("SearchableFields() = %v", got)
	}
	if _, ok := ot.Field("live"); !ok {
		t.Error("Field(live) not found")
	}
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("article", articleFields())
	r.Freeze()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.SpecsFor("article"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
