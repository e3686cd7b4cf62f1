package backendtest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/domain/search/result"
)

// Factory returns a fresh, empty backend. It registers its own cleanup.
type Factory func(t *testing.T) backend.Backend

// Options describe optional capabilities of the backend under test.
type Options struct {
	// CommonTerms reports whether the backend executes CommonTerms nodes.
	CommonTerms bool
}

// Run executes the behaviour suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory, opts Options) {
	t.Run("Scenarios", func(t *testing.T) {
		b := Seeded(t, newBackend)
		for _, sc := range Scenarios {
			t.Run(sc.Name, func(t *testing.T) {
				res, err := b.Search(context.Background(), ArticleKey, sc.Query)
				if err != nil {
					t.Fatalf("Search: %v", err)
				}
				Check(t, sc, res)
			})
		}
	})
	t.Run("Wordings", func(t *testing.T) {
		b := Seeded(t, newBackend, Wordings...)
		for _, sc := range WordingScenarios {
			t.Run(sc.Name, func(t *testing.T) {
				res, err := b.Search(context.Background(), ArticleKey, sc.Query)
				if err != nil {
					t.Fatalf("Search: %v", err)
				}
				Check(t, sc, res)
			})
		}
	})
	t.Run("CommonTerms", func(t *testing.T) {
		b := Seeded(t, newBackend)
		res, err := b.Search(context.Background(), ArticleKey, query.CommonTerms{Text: "go", Cutoff: 0.5})
		if !opts.CommonTerms {
			if !errors.Is(err, domain.ErrQuery) {
				t.Fatalf("err = %v, want ErrQuery", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		AssertIDs(t, res, IDs("1", "3", "8"), false)
	})
	t.Run("PutIsIdempotent", func(t *testing.T) { testPutIdempotent(t, newBackend) })
	t.Run("PutReplaces", func(t *testing.T) { testPutReplaces(t, newBackend) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newBackend) })
	t.Run("UnknownType", func(t *testing.T) { testUnknownType(t, newBackend) })
	t.Run("InvalidQuery", func(t *testing.T) { testInvalidQuery(t, newBackend) })
	t.Run("RebuildReplacesContents", func(t *testing.T) { testRebuildReplaces(t, newBackend) })
	t.Run("RebuildIsAtomic", func(t *testing.T) { testRebuildAtomic(t, newBackend) })
	t.Run("FailedRebuildKeepsLiveIndex", func(t *testing.T) { testRebuildFailure(t, newBackend) })
	t.Run("ConcurrentRebuildRejected", func(t *testing.T) { testConcurrentRebuild(t, newBackend) })
	t.Run("WritesDuringRebuildSurvive", func(t *testing.T) { testWritesDuringRebuild(t, newBackend) })
}

// Seeded returns a backend holding rows, or every fixture article when rows is empty.
func Seeded(t *testing.T, newBackend Factory, rows ...Article) backend.Backend {
	t.Helper()
	ctx := context.Background()
	b := newBackend(t)
	if err := b.EnsureSchema(ctx, []schema.ObjectType{ArticleType()}); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	for _, doc := range Documents(rows...) {
		if err := b.PutDocument(ctx, doc); err != nil {
			t.Fatalf("PutDocument(%s): %v", doc.ID(), err)
		}
	}
	if err := b.Refresh(ctx, ArticleKey); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return b
}

// Check asserts res against a scenario.
func Check(t *testing.T, sc Scenario, res result.SearchResult) {
	t.Helper()
	if res.Total != sc.WantTotal() {
		t.Errorf("total = %d, want %d", res.Total, sc.WantTotal())
	}
	AssertIDs(t, res, sc.Want, sc.Ordered)
}

// AssertIDs compares hit ids with want, in order when ordered is set.
func AssertIDs(t *testing.T, res result.SearchResult, want []string, ordered bool) {
	t.Helper()
	got := res.IDs()
	if !ordered {
		got = slices.Sorted(slices.Values(got))
		want = slices.Sorted(slices.Values(want))
	}
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !slices.Equal(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func search(t *testing.T, b backend.Backend, q query.Node) result.SearchResult {
	t.Helper()
	res, err := b.Search(context.Background(), ArticleKey, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return res
}

func refresh(t *testing.T, b backend.Backend) {
	t.Helper()
	if err := b.Refresh(context.Background(), ArticleKey); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

func allIDs() []string { return IDs("1", "2", "3", "4", "5", "6", "7", "8") }

func testPutIdempotent(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	doc := Articles[0].Document()
	for range 3 {
		if err := b.PutDocument(context.Background(), doc); err != nil {
			t.Fatalf("PutDocument: %v", err)
		}
	}
	refresh(t, b)

	res := search(t, b, query.Term{Field: "title", Text: "patterns"})
	AssertIDs(t, res, IDs("1"), false)
	if total := search(t, b, query.MatchAll{}).Total; total != len(Articles) {
		t.Errorf("total = %d, want %d", total, len(Articles))
	}
}

func testPutReplaces(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	row := Articles[5]
	row.Title = "Go pasta"
	row.Tags = []string{"go"}
	if err := b.PutDocument(context.Background(), row.Document()); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	refresh(t, b)

	AssertIDs(t, search(t, b, query.Term{Text: "cooking"}), nil, false)
	AssertIDs(t, search(t, b, query.Term{Field: "title", Text: "go"}), IDs("1", "3", "6", "8"), false)
	AssertIDs(t, search(t, b, query.Equals("tags", "food")), nil, false)
}

func testDeleteIdempotent(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	ctx := context.Background()
	for range 2 {
		if err := b.DeleteDocument(ctx, Articles[0].ID()); err != nil {
			t.Fatalf("DeleteDocument: %v", err)
		}
	}
	if err := b.DeleteDocument(ctx, IDs("missing")[0]); err != nil {
		t.Fatalf("DeleteDocument(missing): %v", err)
	}
	refresh(t, b)

	AssertIDs(t, search(t, b, query.Term{Text: "go"}), IDs("3", "8"), false)
	if total := search(t, b, query.MatchAll{}).Total; total != len(Articles)-1 {
		t.Errorf("total = %d, want %d", total, len(Articles)-1)
	}
}

func testUnknownType(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	ctx := context.Background()

	if _, err := b.Search(ctx, "nope", query.MatchAll{}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Search err = %v, want ErrConfig", err)
	}
	doc, err := document.New("nope", "1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.PutDocument(ctx, doc); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("PutDocument err = %v, want ErrConfig", err)
	}
	if err := b.BulkRebuild(ctx, "nope", document.FromSlice(nil)); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("BulkRebuild err = %v, want ErrConfig", err)
	}
}

func testInvalidQuery(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	bad := []query.Node{
		query.Equals("missing", "x"),
		query.Filter{Field: "published", Op: query.Gt, Value: true},
		query.Term{Field: "rating", Text: "go"},
		query.Sorted(query.MatchAll{}, "title", false),
		query.Page(query.MatchAll{}, -1, 10),
	}
	for _, q := range bad {
		if _, err := b.Search(context.Background(), ArticleKey, q); !errors.Is(err, domain.ErrQuery) {
			t.Errorf("Search(%s) err = %v, want ErrQuery", q.Name(), err)
		}
	}
}

func testRebuildReplaces(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	row := Articles[1]
	row.Title = "Rust ownership revisited"
	docs := Documents(Articles[0], row)

	if err := b.BulkRebuild(context.Background(), ArticleKey, document.FromSlice(docs)); err != nil {
		t.Fatalf("BulkRebuild: %v", err)
	}
	refresh(t, b)

	AssertIDs(t, search(t, b, query.MatchAll{}), IDs("1", "2"), false)
	AssertIDs(t, search(t, b, query.Term{Text: "revisited"}), IDs("2"), false)
}

// gatedStream yields docs, pausing before index pause until gate is closed.
func gatedStream(docs []document.Document, pause int, reached chan<- struct{}, gate <-chan struct{}) document.Stream {
	return func(yield func(document.Document, error) bool) {
		for i, d := range docs {
			if i == pause {
				close(reached)
				<-gate
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}

func testRebuildAtomic(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	docs := Documents(Articles[:4]...)
	reached, gate := make(chan struct{}), make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- b.BulkRebuild(context.Background(), ArticleKey, gatedStream(docs, 3, reached, gate))
	}()
	waitFor(t, reached)

	// mid-rebuild readers still see the previous contents
	AssertIDs(t, search(t, b, query.MatchAll{}), allIDs(), false)
	AssertIDs(t, search(t, b, query.Term{Text: "pasta"}), IDs("6"), false)

	close(gate)
	if err := <-errc; err != nil {
		t.Fatalf("BulkRebuild: %v", err)
	}
	refresh(t, b)
	AssertIDs(t, search(t, b, query.MatchAll{}), IDs("1", "2", "3", "4"), false)
}

func testRebuildFailure(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	boom := errors.New("source exploded")
	stream := func(yield func(document.Document, error) bool) {
		for _, d := range Documents(Articles[:3]...) {
			if !yield(d, nil) {
				return
			}
		}
		yield(document.Document{}, boom)
	}

	err := b.BulkRebuild(context.Background(), ArticleKey, stream)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	refresh(t, b)
	AssertIDs(t, search(t, b, query.MatchAll{}), allIDs(), false)

	// the type stays usable
	if err := b.BulkRebuild(context.Background(), ArticleKey, document.FromSlice(Documents(Articles[0]))); err != nil {
		t.Fatalf("second BulkRebuild: %v", err)
	}
	refresh(t, b)
	AssertIDs(t, search(t, b, query.MatchAll{}), IDs("1"), false)
}

func testConcurrentRebuild(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	reached, gate := make(chan struct{}), make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- b.BulkRebuild(context.Background(), ArticleKey, gatedStream(Documents(), 2, reached, gate))
	}()
	waitFor(t, reached)

	err := b.BulkRebuild(context.Background(), ArticleKey, document.FromSlice(nil))
	close(gate)
	if !errors.Is(err, domain.ErrRebuildInProgress) {
		t.Errorf("err = %v, want ErrRebuildInProgress", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("first BulkRebuild: %v", err)
	}
}

func testWritesDuringRebuild(t *testing.T, newBackend Factory) {
	b := Seeded(t, newBackend)
	reached, gate := make(chan struct{}), make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- b.BulkRebuild(context.Background(), ArticleKey, gatedStream(Documents(Articles[:3]...), 2, reached, gate))
	}()
	waitFor(t, reached)

	extra := Article{PK: "9", Title: "Written while rebuilding", Body: "late arrival", Author: "Late Writer",
		Tags: []string{"late"}, Published: true, Created: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}

	var wg sync.WaitGroup
	var putErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		putErr = b.PutDocument(context.Background(), extra.Document())
	}()
	close(gate)
	wg.Wait()

	if putErr != nil {
		t.Fatalf("PutDocument: %v", putErr)
	}
	if err := <-errc; err != nil {
		t.Fatalf("BulkRebuild: %v", err)
	}
	refresh(t, b)
	AssertIDs(t, search(t, b, query.MatchAll{}), IDs("1", "2", "3", "9"), false)
}
