package searchcore

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// Hit is a typed search result.
type Hit[T any] struct {
	Item       T
	PrimaryKey string
	Score      float64
}

// Result is a ranked page of typed hits.
type Result[T any] struct {
	Hits   []Hit[T]
	Total  int
	Offset int
	Limit  int
}

// SearchBuilder is a fluent builder for typed search queries. Every clause must match.
type SearchBuilder[T any] struct {
	idx *TypedIndex[T]

	clauses []query.Node
	order   []query.SortKey
	offset  int
	limit   int
}

// Match adds a term clause over every searchable field.
func (b *SearchBuilder[T]) Match(text string) *SearchBuilder[T] {
	return b.add(query.Term{Text: text})
}

// MatchField adds a term clause on one field.
func (b *SearchBuilder[T]) MatchField(field, text string) *SearchBuilder[T] {
	return b.add(query.Term{Field: field, Text: text})
}

// Phrase adds an ordered phrase clause. An empty field targets every searchable field.
func (b *SearchBuilder[T]) Phrase(field, text string) *SearchBuilder[T] {
	return b.add(query.Phrase{Field: field, Text: text})
}

// Prefix adds a search-as-you-type clause. An empty field targets every autocomplete field.
func (b *SearchBuilder[T]) Prefix(field, text string) *SearchBuilder[T] {
	return b.add(query.Autocomplete{Field: field, Text: text})
}

// Where adds an equality filter.
func (b *SearchBuilder[T]) Where(field string, value any) *SearchBuilder[T] {
	return b.add(query.Equals(field, value))
}

// WhereIn adds a filter matching any of values.
func (b *SearchBuilder[T]) WhereIn(field string, values ...any) *SearchBuilder[T] {
	return b.add(query.OneOf(field, values...))
}

// Compare adds a filter with op, one of = != < <= > >=.
func (b *SearchBuilder[T]) Compare(field, op string, value any) *SearchBuilder[T] {
	return b.add(query.Filter{Field: field, Op: query.Op(op), Value: value})
}

// Exclude drops documents matching q.
func (b *SearchBuilder[T]) Exclude(q Query) *SearchBuilder[T] {
	return b.add(query.Not{Child: q})
}

// Query adds an arbitrary clause.
func (b *SearchBuilder[T]) Query(q Query) *SearchBuilder[T] {
	return b.add(q)
}

// OrderBy appends a sort key. Without one, hits are ranked by score.
func (b *SearchBuilder[T]) OrderBy(field string, desc bool) *SearchBuilder[T] {
	b.order = append(b.order, query.SortKey{Field: field, Desc: desc})
	return b
}

// Offset skips the first n hits.
func (b *SearchBuilder[T]) Offset(n int) *SearchBuilder[T] {
	b.offset = n
	return b
}

// Limit sets the maximum number of hits.
func (b *SearchBuilder[T]) Limit(n int) *SearchBuilder[T] {
	b.limit = n
	return b
}

func (b *SearchBuilder[T]) add(n query.Node) *SearchBuilder[T] {
	b.clauses = append(b.clauses, n)
	return b
}

// Build returns the query tree the builder describes.
func (b *SearchBuilder[T]) Build() Query {
	var n query.Node
	switch len(b.clauses) {
	case 0:
		n = query.MatchAll{}
	case 1:
		n = b.clauses[0]
	default:
		n = query.NewAnd(b.clauses...)
	}
	if len(b.order) > 0 {
		n = query.OrderBy{Child: n, Keys: b.order}
	}
	if b.offset > 0 || b.limit > 0 {
		n = query.Page(n, b.offset, b.limit)
	}
	return n
}

// Do executes the search and returns typed results.
func (b *SearchBuilder[T]) Do(ctx context.Context) (Result[T], error) {
	page, err := b.idx.client.Search(ctx, b.idx.key, b.Build())
	if err != nil {
		return Result[T]{}, err
	}
	res := Result[T]{
		Hits:   make([]Hit[T], 0, len(page.Items)),
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}
	for _, it := range page.Items {
		item, err := fromObject[T](b.idx.meta, it.Object)
		if err != nil {
			return Result[T]{}, fmt.Errorf("search %s: hit %s: %w", b.idx.key, it.PrimaryKey, err)
		}
		res.Hits = append(res.Hits, Hit[T]{Item: item, PrimaryKey: it.PrimaryKey, Score: it.Score})
	}
	return res, nil
}
