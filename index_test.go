package searchcore

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

func TestNewIndex(t *testing.T) {
	// NewIndex only parses the schema when no client is given.
	idx, err := NewIndex[article](nil, "article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Key() != "article" {
		t.Errorf("key = %q", idx.Key())
	}
	if len(idx.meta.fields) != 7 {
		t.Errorf("fields = %d, want 7", len(idx.meta.fields))
	}
}

func TestNewIndex_InvalidStruct(t *testing.T) {
	if _, err := NewIndex[noPK](nil, "bad"); err == nil {
		t.Fatal("expected error for struct without pk tag")
	}
	if _, err := NewIndex[string](nil, "bad"); err == nil {
		t.Fatal("expected error for non-struct type")
	}
}

func TestSearchBuilder_Empty(t *testing.T) {
	idx, err := NewIndex[article](nil, "article")
	if err != nil {
		t.Fatal(err)
	}
	if got := idx.Search().Build(); got != (query.MatchAll{}) {
		t.Errorf("empty builder = %#v", got)
	}
}

func TestSearchBuilder_Single(t *testing.T) {
	idx, err := NewIndex[article](nil, "article")
	if err != nil {
		t.Fatal(err)
	}
	got := idx.Search().Match("go").Build()
	if got != (query.Term{Text: "go"}) {
		t.Errorf("single clause = %#v", got)
	}
}

func TestSearchBuilder_Chaining(t *testing.T) {
	idx, err := NewIndex[article](nil, "article")
	if err != nil {
		t.Fatal(err)
	}
	got := idx.Search().
		Match("go").
		Phrase("title", "go tour").
		Prefix("author", "rob").
		Where("published", true).
		WhereIn("tags", "lang", "web").
		Compare("rating", ">=", 4).
		Exclude(query.Term{Field: "body", Text: "draft"}).
		OrderBy("rating", true).
		Offset(20).
		Limit(10).
		Build()

	want := query.Page(query.OrderBy{
		Child: query.NewAnd(
			query.Term{Text: "go"},
			query.Phrase{Field: "title", Text: "go tour"},
			query.Autocomplete{Field: "author", Text: "rob"},
			query.Equals("published", true),
			query.OneOf("tags", "lang", "web"),
			query.Filter{Field: "rating", Op: query.Gte, Value: 4},
			query.Not{Child: query.Term{Field: "body", Text: "draft"}},
		),
		Keys: []query.SortKey{{Field: "rating", Desc: true}},
	}, 20, 10)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tree = %#v\nwant %#v", got, want)
	}
	if _, err := query.NewPlan(got, query.DefaultLimits()); err != nil {
		t.Errorf("builder produced an invalid tree: %v", err)
	}
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery([]byte(`{"term": {"text": "go"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if q != (query.Term{Text: "go"}) {
		t.Errorf("q = %#v", q)
	}
	if _, err := ParseQuery([]byte(`{"nope": {}}`)); err == nil {
		t.Error("expected error for unknown node")
	}
}
