// Package backendtest holds the behaviour suite every search backend must pass, plus the
// article fixture it runs on.
package backendtest

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// ArticleKey is the object type key of the fixture.
const ArticleKey = "article"

// ArticleFields declares the fixture schema.
var ArticleFields = []schema.FieldSpec{
	{Name: "title", Kind: schema.Text, Boost: 2},
	{Name: "body", Kind: schema.Text},
	{Name: "author", Kind: schema.Autocomplete},
	{Name: "tags", Kind: schema.RelatedID},
	{Name: "published", Kind: schema.Filterable, Type: schema.Bool},
	{Name: "rating", Kind: schema.Filterable, Type: schema.Number, Nullable: true},
	{Name: "created", Kind: schema.Filterable, Type: schema.Time},
}

// ArticleType returns the fixture object type.
func ArticleType() schema.ObjectType {
	ot, err := schema.NewObjectType(ArticleKey, ArticleFields)
	if err != nil {
		panic(fmt.Sprintf("article fixture: %v", err))
	}
	return ot
}

// Article is one fixture row. A nil Rating leaves the field out.
type Article struct {
	PK        string
	Title     string
	Body      string
	Author    string
	Tags      []string
	Published bool
	Rating    *float64
	Created   time.Time
}

// ID returns the document id of the row.
func (a Article) ID() string { return document.ID(ArticleKey, a.PK) }

// Document projects the row the way the mapper would.
func (a Article) Document() document.Document {
	ot := ArticleType()
	values := map[string]any{
		"title":     a.Title,
		"body":      a.Body,
		"author":    a.Author,
		"tags":      a.Tags,
		"published": a.Published,
		"created":   a.Created.UTC(),
	}
	if a.Rating != nil {
		values["rating"] = *a.Rating
	}

	var fields []document.Field
	for _, spec := range ot.Fields() {
		v, ok := values[spec.Name]
		if !ok {
			continue
		}
		fields = append(fields, document.Field{
			Name:  spec.Name,
			Kind:  spec.Kind,
			Type:  spec.Type,
			Boost: spec.Boost,
			Value: v,
		})
	}
	doc, err := document.New(ArticleKey, a.PK, fields)
	if err != nil {
		panic(fmt.Sprintf("article %s: %v", a.PK, err))
	}
	return doc
}

func rating(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

// Articles is the fixture data set.
var Articles = []Article{
	{PK: "1", Title: "Go concurrency patterns", Body: "Channels and goroutines in practice", Author: "Rob Pike",
		Tags: []string{"go", "concurrency"}, Published: true, Rating: rating(4.5), Created: day(2024, 1, 10)},
	{PK: "2", Title: "Rust ownership explained", Body: "Borrowing and lifetimes without tears", Author: "Steve Klabnik",
		Tags: []string{"rust"}, Published: true, Rating: rating(4.0), Created: day(2024, 2, 1)},
	{PK: "3", Title: "Advanced Go generics", Body: "Type parameters and constraints in go", Author: "Ian Lance",
		Tags: []string{"go", "generics"}, Published: false, Rating: rating(3.5), Created: day(2024, 3, 5)},
	{PK: "4", Title: "Search engines from scratch", Body: "Inverted index and ranking", Author: "Doug Cutting",
		Tags: []string{"search"}, Published: true, Rating: rating(5.0), Created: day(2023, 11, 20)},
	{PK: "5", Title: "Distributed search with clusters", Body: "Sharding replicas and aliases", Author: "Shay Banon",
		Tags: []string{"search", "distributed"}, Published: true, Rating: rating(4.2), Created: day(2024, 4, 12)},
	{PK: "6", Title: "Cooking pasta", Body: "Boil water and add salt", Author: "Marcella Hazan",
		Tags: []string{"food"}, Published: false, Rating: rating(2.0), Created: day(2022, 6, 30)},
	{PK: "7", Title: "Concurrency in Rust", Body: "Fearless concurrency with threads", Author: "Aaron Turon",
		Tags: []string{"rust", "concurrency"}, Published: true, Rating: rating(3.8), Created: day(2024, 5, 2)},
	{PK: "8", Title: "Go search tooling", Body: "Building a search tool in go", Author: "Rob Pike",
		Tags: []string{"go", "search"}, Published: true, Created: day(2024, 6, 1)},
}

// Wordings are rows whose words carry apostrophes and accents. They are seeded apart
// from Articles.
var Wordings = []Article{
	{PK: "9", Title: "Café culture", Body: "Espresso and croissants in Paris", Author: "Anaïs Nin",
		Tags: []string{"food"}, Published: true, Rating: rating(4.1), Created: day(2024, 7, 1)},
	{PK: "10", Title: "Don't panic", Body: "A guide to the galaxy", Author: "Douglas Adams",
		Tags: []string{"books"}, Published: true, Rating: rating(4.9), Created: day(2024, 7, 2)},
}

// Documents returns the fixture rows as documents.
func Documents(rows ...Article) []document.Document {
	if rows == nil {
		rows = Articles
	}
	out := make([]document.Document, len(rows))
	for i, r := range rows {
		out[i] = r.Document()
	}
	return out
}

// IDs returns document ids for the given primary keys.
func IDs(pks ...string) []string {
	out := make([]string, len(pks))
	for i, pk := range pks {
		out[i] = document.ID(ArticleKey, pk)
	}
	return out
}
