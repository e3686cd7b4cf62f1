package backendtest

import (
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// Scenario is a query over the fixture with its expected hits.
type Scenario struct {
	Name  string
	Query query.Node
	// Want lists expected ids; compared as a set unless Ordered.
	Want    []string
	Ordered bool
	// Total is the expected total when it differs from len(Want).
	Total int
}

// WantTotal returns the expected total.
func (s Scenario) WantTotal() int {
	if s.Total != 0 {
		return s.Total
	}
	return len(s.Want)
}

// Scenarios run unchanged against every backend.
var Scenarios = []Scenario{
	{Name: "match all", Query: query.MatchAll{}, Want: IDs("1", "2", "3", "4", "5", "6", "7", "8")},
	{Name: "term across fields", Query: query.Term{Text: "go"}, Want: IDs("1", "3", "8")},
	{Name: "term on field", Query: query.Term{Field: "title", Text: "concurrency"}, Want: IDs("1", "7")},
	{Name: "term is case insensitive", Query: query.Term{Text: "RUST"}, Want: IDs("2", "7")},
	{Name: "term any token", Query: query.Term{Field: "title", Text: "pasta generics"}, Want: IDs("3", "6")},
	{Name: "phrase", Query: query.Phrase{Text: "search engines"}, Want: IDs("4")},
	{Name: "phrase needs adjacency", Query: query.Phrase{Field: "title", Text: "go patterns"}, Want: nil},
	{Name: "autocomplete prefix", Query: query.Autocomplete{Field: "author", Text: "rob pi"}, Want: IDs("1", "8")},
	{Name: "autocomplete default fields", Query: query.Autocomplete{Text: "klab"}, Want: IDs("2")},
	{Name: "text and filter", Query: query.NewAnd(query.Term{Text: "search"}, query.Equals("published", true)),
		Want: IDs("4", "5", "8")},
	{Name: "text and not filter", Query: query.NewAnd(query.Term{Text: "go"}, query.Not{Child: query.Equals("published", true)}),
		Want: IDs("3")},
	{Name: "related id in", Query: query.OneOf("tags", "rust", "food"), Want: IDs("2", "6", "7")},
	{Name: "related id equals", Query: query.Equals("tags", "concurrency"), Want: IDs("1", "7")},
	{Name: "related id not equals", Query: query.Filter{Field: "tags", Op: query.Ne, Value: "search"},
		Want: IDs("1", "2", "3", "6", "7")},
	{Name: "not", Query: query.Not{Child: query.Equals("tags", "go")}, Want: IDs("2", "4", "5", "6", "7")},
	{Name: "number range", Query: query.Filter{Field: "rating", Op: query.Gte, Value: 4}, Want: IDs("1", "2", "4", "5")},
	{Name: "number range exclusive", Query: query.Filter{Field: "rating", Op: query.Lt, Value: 4.0}, Want: IDs("3", "6", "7")},
	{Name: "number equals", Query: query.Equals("rating", 5), Want: IDs("4")},
	{Name: "time range", Query: query.Filter{Field: "created", Op: query.Lt, Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Want: IDs("4", "6")},
	{Name: "time range string", Query: query.Filter{Field: "created", Op: query.Gte, Value: "2024-05-01T00:00:00Z"},
		Want: IDs("7", "8")},
	{Name: "or", Query: query.NewOr(query.Term{Field: "title", Text: "pasta"}, query.Equals("tags", "generics")),
		Want: IDs("3", "6")},
	{Name: "nested boolean", Query: query.NewAnd(
		query.NewOr(query.Term{Text: "rust"}, query.Term{Text: "go"}),
		query.Not{Child: query.NewOr(query.Equals("tags", "generics"), query.Equals("tags", "search"))},
	), Want: IDs("1", "2", "7")},
	{Name: "boost keeps matches", Query: query.Boost{Child: query.Term{Text: "search"}, Weight: 3}, Want: IDs("4", "5", "8")},
	{Name: "no match", Query: query.Term{Text: "haskell"}, Want: nil},
	{Name: "order by number asc, missing last", Query: query.Sorted(query.MatchAll{}, "rating", false),
		Want: IDs("6", "3", "7", "2", "5", "1", "4", "8"), Ordered: true},
	{Name: "order by number desc, missing last", Query: query.Page(query.Sorted(query.MatchAll{}, "rating", true), 0, 3),
		Want: IDs("4", "1", "5"), Ordered: true, Total: 8},
	{Name: "order by time", Query: query.Sorted(query.Equals("tags", "go"), "created", false),
		Want: IDs("1", "3", "8"), Ordered: true},
	{Name: "page inside", Query: query.Page(query.Sorted(query.MatchAll{}, "created", false), 2, 3),
		Want: IDs("1", "2", "3"), Ordered: true, Total: 8},
	{Name: "page straddles end", Query: query.Page(query.Sorted(query.MatchAll{}, "created", false), 6, 5),
		Want: IDs("7", "8"), Ordered: true, Total: 8},
	{Name: "page at end", Query: query.Page(query.Sorted(query.MatchAll{}, "created", false), 8, 5),
		Want: nil, Ordered: true, Total: 8},
	{Name: "page beyond end", Query: query.Page(query.MatchAll{}, 50, 5), Want: nil, Total: 8},
}

// WordingScenarios run against a backend seeded with Wordings. Every backend splits text
// at Unicode word boundaries and keeps accents.
var WordingScenarios = []Scenario{
	{Name: "accented term", Query: query.Term{Text: "café"}, Want: IDs("9")},
	{Name: "accented term upper case", Query: query.Term{Field: "title", Text: "CAFÉ"}, Want: IDs("9")},
	{Name: "accents are not folded", Query: query.Term{Text: "cafe"}, Want: nil},
	{Name: "apostrophe term", Query: query.Term{Text: "don't"}, Want: IDs("10")},
	{Name: "apostrophe keeps one word", Query: query.Term{Text: "don"}, Want: nil},
	{Name: "apostrophe phrase", Query: query.Phrase{Text: "Don't panic"}, Want: IDs("10")},
	{Name: "trailing punctuation", Query: query.Term{Text: "culture."}, Want: IDs("9")},
}
