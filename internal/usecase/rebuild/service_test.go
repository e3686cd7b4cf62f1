package rebuild

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/mapper"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// --- Mocks ---

type mockObjects struct {
	objects map[string][]map[string]any
	err     error
}

func (m *mockObjects) All(_ context.Context, objectType string) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for _, obj := range m.objects[objectType] {
			if !yield(obj, nil) {
				return
			}
		}
		if m.err != nil {
			yield(nil, m.err)
		}
	}
}

type mockIndex struct {
	rebuilt map[string][]string
	errFor  map[string]error
}

func (m *mockIndex) BulkRebuild(_ context.Context, objectType string, docs document.Stream) error {
	if err := m.errFor[objectType]; err != nil {
		return err
	}
	all, err := document.Collect(docs)
	if err != nil {
		return err
	}
	if m.rebuilt == nil {
		m.rebuilt = map[string][]string{}
	}
	for _, d := range all {
		m.rebuilt[objectType] = append(m.rebuilt[objectType], d.ID())
	}
	return nil
}

func newService(t *testing.T, objs *mockObjects, idx *mockIndex) *Service {
	t.Helper()
	reg := schema.NewRegistry()
	for _, key := range []string{"note", "task"} {
		if err := reg.Register(key, []schema.FieldSpec{{Name: "title", Kind: schema.Text}}); err != nil {
			t.Fatal(err)
		}
	}
	reg.Freeze()
	return New(reg, objs, mapper.New(reg, mapper.MapAccessor{}, zap.NewNop()), idx, zap.NewNop())
}

// --- Tests ---

func TestRebuild_StreamsObjects(t *testing.T) {
	objs := &mockObjects{objects: map[string][]map[string]any{
		"note": {{"id": "1", "title": "a"}, {"id": "2", "title": "b"}},
	}}
	idx := &mockIndex{}
	svc := newService(t, objs, idx)
	before := testutil.ToFloat64(metrics.RebuildsTotal.WithLabelValues("note", "ok"))

	rep, err := svc.Rebuild(context.Background(), "note")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Documents != 2 || rep.Skipped != 0 {
		t.Errorf("report = %+v", rep)
	}
	if got := idx.rebuilt["note"]; len(got) != 2 || got[0] != "note:1" {
		t.Errorf("rebuilt = %v", got)
	}
	if got := testutil.ToFloat64(metrics.RebuildsTotal.WithLabelValues("note", "ok")); got != before+1 {
		t.Errorf("rebuilds ok = %v, want %v", got, before+1)
	}
}

func TestRebuild_SkipsUnmappableObjects(t *testing.T) {
	objs := &mockObjects{objects: map[string][]map[string]any{
		"note": {{"title": "no id"}, {"id": "2", "title": "b"}},
	}}
	idx := &mockIndex{}
	rep, err := newService(t, objs, idx).Rebuild(context.Background(), "note")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Documents != 1 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRebuild_StoreErrorFails(t *testing.T) {
	objs := &mockObjects{err: errors.New("scan failed")}
	_, err := newService(t, objs, &mockIndex{}).Rebuild(context.Background(), "note")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRebuild_UnknownType(t *testing.T) {
	_, err := newService(t, &mockObjects{}, &mockIndex{}).Rebuild(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestRebuildAll_ContinuesPastFailure(t *testing.T) {
	objs := &mockObjects{objects: map[string][]map[string]any{
		"task": {{"id": "1", "title": "t"}},
	}}
	idx := &mockIndex{errFor: map[string]error{"note": domain.Unavailable("test", "bulk_rebuild", errors.New("down"))}}
	reports, err := newService(t, objs, idx).RebuildAll(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].Error == "" || reports[1].Documents != 1 {
		t.Errorf("reports = %+v", reports)
	}
}

func TestReconcile_InProgressIsCovered(t *testing.T) {
	idx := &mockIndex{errFor: map[string]error{"note": domain.ErrRebuildInProgress}}
	svc := newService(t, &mockObjects{}, idx)
	if err := svc.Reconcile(context.Background(), "note"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	idx.errFor["note"] = errors.New("boom")
	if err := svc.Reconcile(context.Background(), "note"); err == nil {
		t.Error("expected error")
	}
}
