package embedded

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/backend/backendtest"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

func newTestBackend(t *testing.T, dir string) *Backend {
	t.Helper()
	b := New(Config{Dir: dir, BatchSize: 2}, nil, zap.NewNop())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_SuiteInMemory(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return newTestBackend(t, "")
	}, backendtest.Options{})
}

func TestBackend_SuiteOnDisk(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return newTestBackend(t, t.TempDir())
	}, backendtest.Options{})
}

func readCurrent(t *testing.T, dir string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, backendtest.ArticleKey, currentFile))
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(raw))
}

func TestBackend_LiveGenerationSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	first := New(Config{Dir: dir}, nil, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return first })
	ctx := context.Background()
	if err := first.BulkRebuild(ctx, backendtest.ArticleKey, document.FromSlice(backendtest.Documents())); err != nil {
		t.Fatal(err)
	}
	if got := readCurrent(t, dir); got != "2" {
		t.Errorf("CURRENT = %q, want 2", got)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := newTestBackend(t, dir)
	if err := second.EnsureSchema(ctx, []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	if st := second.States(); st[0].Live != 2 {
		t.Errorf("states = %+v", st)
	}
	res, err := second.Search(ctx, backendtest.ArticleKey, query.Term{Text: "go"})
	if err != nil {
		t.Fatal(err)
	}
	backendtest.AssertIDs(t, res, backendtest.IDs("1", "3", "8"), false)
}

func TestBackend_RestartDropsOrphans(t *testing.T) {
	dir := t.TempDir()
	first := New(Config{Dir: dir}, nil, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return first })
	if err := first.CreateGeneration(context.Background(), backendtest.ArticleType(), 5); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second := newTestBackend(t, dir)
	if err := second.EnsureSchema(context.Background(), []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, backendtest.ArticleKey, "g5")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("orphan still present: %v", err)
	}
	res, err := second.Search(context.Background(), backendtest.ArticleKey, query.MatchAll{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != len(backendtest.Articles) {
		t.Errorf("total = %d", res.Total)
	}
}

func TestBackend_Drop(t *testing.T) {
	dir := t.TempDir()
	b := newTestBackend(t, dir)
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return b })
	ctx := context.Background()

	if err := b.Drop(ctx, backendtest.ArticleKey); err != nil {
		t.Fatal(err)
	}
	res, err := b.Search(ctx, backendtest.ArticleKey, query.MatchAll{})
	if err != nil || res.Total != 0 {
		t.Errorf("search after drop = %+v, %v", res, err)
	}
	if err := b.PutDocument(ctx, backendtest.Articles[0].Document()); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("put after drop err = %v", err)
	}
	if st := b.States(); st[0].State != lifecycle.Dropped {
		t.Errorf("states = %+v", st)
	}
}

func TestCompiler_CommonTermsRejected(t *testing.T) {
	ot := backendtest.ArticleType()
	plan, err := query.NewPlan(query.CommonTerms{Text: "go", Cutoff: 0.1}, query.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	var qe *domain.QueryError
	if _, err := (compiler{ot: ot}).request(plan); !errors.As(err, &qe) || qe.Node != "CommonTerms" {
		t.Errorf("err = %v", err)
	}
}

func TestCompiler_RequestShape(t *testing.T) {
	ot := backendtest.ArticleType()
	plan, err := query.NewPlan(query.Page(query.Sorted(query.MatchAll{}, "rating", true), 4, 7), query.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	req, err := (compiler{ot: ot}).request(plan)
	if err != nil {
		t.Fatal(err)
	}
	if req.From != 4 || req.Size != 7 {
		t.Errorf("from/size = %d/%d", req.From, req.Size)
	}
	if len(req.Sort) != 2 {
		t.Fatalf("sort = %v", req.Sort)
	}
	if req.Sort[0].RequiresFields()[0] != "rating" || !req.Sort[0].Descending() {
		t.Errorf("first sort key = %+v", req.Sort[0])
	}
	if !req.Sort[1].RequiresDocID() {
		t.Error("doc id tie breaker missing")
	}
}
