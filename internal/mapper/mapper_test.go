package mapper

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	err := r.Register("article", []schema.FieldSpec{
		{Name: "title", Kind: schema.Text, Boost: 2},
		{Name: "body", Kind: schema.Text, Nullable: true},
		{Name: "published", Kind: schema.Filterable, Type: schema.Bool},
		{Name: "rating", Kind: schema.Filterable, Type: schema.Number, Nullable: true},
		{Name: "tags", Kind: schema.RelatedID, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Freeze()
	return r
}

func TestMap_AllFields(t *testing.T) {
	m := New(newRegistry(t), MapAccessor{}, zap.NewNop())
	doc, err := m.Map("article", map[string]any{
		"id":        7,
		"title":     "Wagtail tips",
		"body":      "Some body",
		"published": "true",
		"rating":    4,
		"tags":      []int{1, 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "article:7" {
		t.Errorf("ID() = %q", doc.ID())
	}
	fields := doc.Fields()
	if len(fields) != 5 {
		t.Fatalf("len(fields) = %d, want 5", len(fields))
	}
	// schema order is preserved
	want := []string{"title", "body", "published", "rating", "tags"}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Errorf("field %d = %q, want %q", i, f.Name, want[i])
		}
	}
	if f, _ := doc.Field("title"); f.Boost != 2 {
		t.Errorf("title boost = %v", f.Boost)
	}
	if f, _ := doc.Field("published"); f.Value != true {
		t.Errorf("published = %#v", f.Value)
	}
	if f, _ := doc.Field("rating"); f.Value != 4.0 {
		t.Errorf("rating = %#v", f.Value)
	}
}

func TestMap_FieldCoercionIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m := New(newRegistry(t), MapAccessor{}, zap.New(core))
	before := testutil.ToFloat64(metrics.MappingErrorsTotal.WithLabelValues("article", "rating"))

	doc, fieldErrs, err := m.MapWithErrors("article", map[string]any{
		"id":        "a1",
		"title":     "Still indexed",
		"published": true,
		"rating":    "five stars",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Field("rating"); ok {
		t.Error("malformed field was not dropped")
	}
	if f, ok := doc.Field("title"); !ok || f.Text() != "Still indexed" {
		t.Error("valid field missing after sibling failure")
	}
	if len(fieldErrs) != 1 || fieldErrs[0].Field != "rating" {
		t.Fatalf("fieldErrs = %v", fieldErrs)
	}
	if !errors.Is(fieldErrs[0], domain.ErrMapping) {
		t.Error("errors.Is(ErrMapping) = false")
	}
	if logs.FilterField(zap.String("field", "rating")).Len() != 1 {
		t.Errorf("expected one warning for rating, got %d", logs.Len())
	}
	after := testutil.ToFloat64(metrics.MappingErrorsTotal.WithLabelValues("article", "rating"))
	if after-before != 1 {
		t.Errorf("mapping_errors_total delta = %v, want 1", after-before)
	}
}

func TestMap_NilValues(t *testing.T) {
	m := New(newRegistry(t), MapAccessor{}, zap.NewNop())
	doc, fieldErrs, err := m.MapWithErrors("article", map[string]any{
		"id":    "a1",
		"title": "T",
		"body":  nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Field("body"); ok {
		t.Error("nil nullable field present")
	}
	// published is required but missing
	if len(fieldErrs) != 1 || fieldErrs[0].Field != "published" {
		t.Errorf("fieldErrs = %v", fieldErrs)
	}
}

func TestMap_DocumentLevelErrors(t *testing.T) {
	m := New(newRegistry(t), MapAccessor{}, zap.NewNop())

	if _, err := m.Map("unknown", map[string]any{"id": 1}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("unknown type err = %v", err)
	}
	if _, err := m.Map("article", map[string]any{"title": "x"}); err == nil {
		t.Error("missing primary key: expected error")
	}
	if _, err := m.Map("article", map[string]any{"id": ""}); err == nil {
		t.Error("empty primary key: expected error")
	}
	if _, err := m.Map("article", "not a map"); err == nil {
		t.Error("bad instance: expected error")
	}
}

func TestMap_Deterministic(t *testing.T) {
	m := New(newRegistry(t), MapAccessor{KeyField: "pk"}, zap.NewNop())
	inst := map[string]any{"pk": "x", "title": "A", "published": false, "tags": "t1"}

	d1, _ := m.Map("article", inst)
	d2, _ := m.Map("article", inst)
	if d1.ID() != d2.ID() || len(d1.Fields()) != len(d2.Fields()) {
		t.Fatal("mapping is not deterministic")
	}
	for i, f := range d1.Fields() {
		if f.Name != d2.Fields()[i].Name {
			t.Errorf("field order differs at %d", i)
		}
	}
}
