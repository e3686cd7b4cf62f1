package cluster

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/searchcore/internal/backend/backendtest"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

func compileJSON(t *testing.T, d Dialect, n query.Node) (string, error) {
	t.Helper()
	ot := backendtest.ArticleType()
	plan, err := query.NewPlan(n, query.DefaultLimits())
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	plan, err = query.Validate(plan, ot)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	body, err := compiler{dialect: d, ot: ot}.searchBody(plan, plan.Offset, plan.Limit)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw), nil
}

func TestCompiler_CommonTermsByDialect(t *testing.T) {
	q := query.CommonTerms{Field: "title", Text: "the go", Cutoff: 0.01}

	for _, d := range []Dialect{Elasticsearch7, OpenSearch2} {
		got, err := compileJSON(t, d, q)
		if err != nil {
			t.Fatalf("%s: %v", d.Name, err)
		}
		if !strings.Contains(got, `"common":{"title":{"boost":2,"cutoff_frequency":0.01,"query":"the go"}}`) {
			t.Errorf("%s: %s", d.Name, got)
		}
	}

	_, err := compileJSON(t, Elasticsearch8, q)
	var qe *domain.QueryError
	if !errors.As(err, &qe) || qe.Node != "CommonTerms" {
		t.Fatalf("es8 err = %v", err)
	}
}

func TestCompiler_Text(t *testing.T) {
	tests := []struct {
		name string
		q    query.Node
		want string
	}{
		{"term on field keeps field boost", query.Term{Field: "title", Text: "go"},
			`"match":{"title":{"boost":2,"query":"go"}}`},
		{"term fans out", query.Term{Text: "go"},
			`"multi_match":{"boost":1,"fields":["title^2","body^1","author^1"],"query":"go","type":"best_fields"}`},
		{"phrase", query.Phrase{Text: "go generics"},
			`"type":"phrase"`},
		{"boost multiplies", query.Boost{Child: query.Boost{Child: query.Term{Field: "title", Text: "go"}, Weight: 2}, Weight: 1.5},
			`"match":{"title":{"boost":6,"query":"go"}}`},
		{"autocomplete", query.Autocomplete{Text: "rob pi"},
			`"fields":["author^1","author._2gram^1","author._3gram^1"],"query":"rob pi","type":"bool_prefix"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileJSON(t, Elasticsearch8, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("body %s\nmissing %s", got, tt.want)
			}
		})
	}
}

func TestCompiler_Filters(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		q    query.Node
		want string
	}{
		{"eq", query.Equals("published", "true"), `"term":{"published":true}`},
		{"ne", query.Filter{Field: "tags", Op: query.Ne, Value: "go"}, `"must_not":[{"term":{"tags":"go"}}]`},
		{"range on time uses millis", query.Filter{Field: "created", Op: query.Lt, Value: created},
			`"range":{"created":{"lt":1704067200000}}`},
		{"in", query.OneOf("rating", 1, 2.5), `"terms":{"rating":[1,2.5]}`},
		{"and splits clauses", query.NewAnd(query.Term{Text: "go"}, query.Equals("tags", "go"), query.Not{Child: query.Term{Text: "rust"}}),
			`"filter":[{"term":{"tags":"go"}}],"must":[`},
		{"or needs one", query.NewOr(query.Term{Text: "go"}, query.Term{Text: "rust"}), `"minimum_should_match":1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileJSON(t, OpenSearch2, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("body %s\nmissing %s", got, tt.want)
			}
		})
	}
}

func TestCompiler_SortAndPaging(t *testing.T) {
	got, err := compileJSON(t, Elasticsearch7, query.Page(query.Sorted(query.MatchAll{}, "rating", true), 10, 5))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"from":10`,
		`"size":5`,
		`"sort":[{"rating":{"missing":"_last","order":"desc"}},{"doc_id":{"order":"asc"}}]`,
		`"track_scores":true`,
		`"track_total_hits":true`,
		`"_source":false`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("body %s\nmissing %s", got, want)
		}
	}

	got, err = compileJSON(t, Elasticsearch7, query.Term{Text: "go"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"sort":[{"_score":{"order":"desc"}},{"doc_id":{"order":"asc"}}]`) {
		t.Errorf("default sort: %s", got)
	}
	if strings.Contains(got, "track_scores") {
		t.Errorf("track_scores on score sort: %s", got)
	}
}
