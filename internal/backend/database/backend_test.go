package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/searchcore/internal/backend"
	"github.com/kailas-cloud/searchcore/internal/backend/backendtest"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

func newFileBackend(t *testing.T, path string, logger *zap.Logger) *Backend {
	t.Helper()
	b, err := New(Config{Path: path, MaxConns: 4, BatchSize: 2}, nil, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// The suite needs concurrent readers during a rebuild, which an in-memory database on a
// single connection cannot serve.
func TestBackend_Suite(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return newFileBackend(t, filepath.Join(t.TempDir(), "search.db"), zap.NewNop())
	}, backendtest.Options{CommonTerms: false})
}

func TestBackend_InMemory(t *testing.T) {
	b, err := New(Config{Path: ":memory:"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	backendtest.Seeded(t, func(*testing.T) backend.Backend { return b })
	for _, sc := range backendtest.Scenarios {
		res, err := b.Search(context.Background(), backendtest.ArticleKey, sc.Query)
		if err != nil {
			t.Fatalf("%s: %v", sc.Name, err)
		}
		backendtest.Check(t, sc, res)
	}
}

func TestBackend_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	first := newFileBackend(t, path, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return first })
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := newFileBackend(t, path, zap.NewNop())
	if err := second.EnsureSchema(context.Background(), []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	res, err := second.Search(context.Background(), backendtest.ArticleKey, query.Term{Text: "go"})
	if err != nil {
		t.Fatal(err)
	}
	backendtest.AssertIDs(t, res, backendtest.IDs("1", "3", "8"), false)
}

func TestBackend_SchemaChangeResetsType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	first := newFileBackend(t, path, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return first })
	_ = first.Close()

	fields := append([]schema.FieldSpec{{Name: "summary", Kind: schema.Text}}, backendtest.ArticleFields...)
	changed, err := schema.NewObjectType(backendtest.ArticleKey, fields)
	if err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	second := newFileBackend(t, path, zap.New(core))
	if err := second.EnsureSchema(context.Background(), []schema.ObjectType{changed}); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessageSnippet("rebuild required").Len() != 1 {
		t.Error("schema change not logged")
	}
	res, err := second.Search(context.Background(), backendtest.ArticleKey, query.MatchAll{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Errorf("total after reset = %d", res.Total)
	}
}

// Indexes written with an older tokenizer are reset so the next rebuild re-splits the text.
func TestBackend_TokenizerChangeResetsType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	first := newFileBackend(t, path, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return first })
	legacy := strings.Join(searchColumns(backendtest.ArticleType()), ",")
	if _, err := first.db.ExecContext(context.Background(),
		`UPDATE search_schema SET columns = ? WHERE object_type = ?`, legacy, backendtest.ArticleKey); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	second := newFileBackend(t, path, zap.New(core))
	if err := second.EnsureSchema(context.Background(), []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessageSnippet("rebuild required").Len() != 1 {
		t.Error("tokenizer change not logged")
	}
	res, err := second.Search(context.Background(), backendtest.ArticleKey, query.MatchAll{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Errorf("total after reset = %d", res.Total)
	}
}

func TestBackend_Drop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	b := newFileBackend(t, path, zap.NewNop())
	backendtest.Seeded(t, func(*testing.T) backend.Backend { return b })
	ctx := context.Background()

	if err := b.Drop(ctx, backendtest.ArticleKey); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := b.Search(ctx, backendtest.ArticleKey, query.MatchAll{}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Search after drop: err = %v, want ErrConfig", err)
	}
	if err := b.PutDocument(ctx, backendtest.Documents()[0]); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Put after drop: err = %v, want ErrConfig", err)
	}

	// Registering the type again starts from an empty index.
	if err := b.EnsureSchema(ctx, []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	res, err := b.Search(ctx, backendtest.ArticleKey, query.MatchAll{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Errorf("total after re-create = %d, want 0", res.Total)
	}
}

func TestBackend_StatesReportRebuild(t *testing.T) {
	guard := lifecycle.NewGuard()
	b, err := New(Config{}, guard, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.EnsureSchema(context.Background(), []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}

	release, err := guard.Acquire(backendtest.ArticleKey)
	if err != nil {
		t.Fatal(err)
	}
	if st := b.States(); len(st) != 1 || st[0].State != lifecycle.Building {
		t.Errorf("states = %+v", st)
	}
	release()
	if st := b.States(); st[0].State != lifecycle.Live {
		t.Errorf("states = %+v", st)
	}
}

func TestBackend_ClosedDatabaseIsUnavailable(t *testing.T) {
	b, err := New(Config{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.EnsureSchema(context.Background(), []schema.ObjectType{backendtest.ArticleType()}); err != nil {
		t.Fatal(err)
	}
	_ = b.Close()

	_, err = b.Search(context.Background(), backendtest.ArticleKey, query.MatchAll{})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("err = %v", err)
	}
	if err := b.Ping(context.Background()); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("ping err = %v", err)
	}
}

func TestCompile(t *testing.T) {
	ot := backendtest.ArticleType()
	plan, err := query.NewPlan(query.Page(query.Sorted(
		query.NewAnd(query.Boost{Child: query.Term{Text: "go"}, Weight: 2}, query.Equals("published", true)),
		"rating", true), 5, 10), query.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	plan, err = query.Validate(plan, ot)
	if err != nil {
		t.Fatal(err)
	}
	c, err := compile(plan, ot)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`-bm25("search_fts_article", 2, 1, 1)`,
		`) * 2`,
		`d.rowid IN (SELECT rowid FROM "search_fts_article" WHERE "search_fts_article" MATCH ?)`,
		`EXISTS (SELECT 1 FROM json_each(d.data, ?) WHERE value = ?)`,
		`ORDER BY json_extract(d.data, '$.rating') IS NULL, json_extract(d.data, '$.rating') DESC, d.doc_id ASC`,
		`LIMIT ? OFFSET ?`,
	} {
		if !strings.Contains(c.selectSQL, want) {
			t.Errorf("select missing %q\n%s", want, c.selectSQL)
		}
	}
	if strings.Contains(c.countSQL, "bm25") || strings.Contains(c.countSQL, "LIMIT") {
		t.Errorf("count query = %s", c.countSQL)
	}

	// score match, type key, text match, filter path and value, limit, offset
	wantArgs := []any{`{title body author} : ("go")`, "article", `{title body author} : ("go")`, "$.published", int64(1), 10, 5}
	if len(c.selectArgs) != len(wantArgs) {
		t.Fatalf("args = %v", c.selectArgs)
	}
	for i := range wantArgs {
		if c.selectArgs[i] != wantArgs[i] {
			t.Errorf("arg %d = %#v, want %#v", i, c.selectArgs[i], wantArgs[i])
		}
	}
}

func TestCompile_CommonTermsRejected(t *testing.T) {
	ot := backendtest.ArticleType()
	plan, err := query.NewPlan(query.CommonTerms{Text: "go", Cutoff: 0.1}, query.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := compile(plan, ot); !errors.Is(err, domain.ErrQuery) {
		t.Errorf("err = %v", err)
	}
}

func TestPrefixExpr(t *testing.T) {
	if got := prefixExpr([]string{"rob", "pi"}); got != `"rob" OR "pi" *` {
		t.Errorf("got %s", got)
	}
	if got := quote(`a"b`); got != `"a""b"` {
		t.Errorf("quote = %s", got)
	}
}
