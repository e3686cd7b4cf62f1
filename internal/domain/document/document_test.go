package document

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

func TestNew_Valid(t *testing.T) {
	fields := []Field{
		{Name: "title", Kind: schema.Text, Type: schema.String, Boost: 2, Value: "Hello"},
		{Name: "live", Kind: schema.Filterable, Type: schema.Bool, Boost: 1, Value: true},
	}
	doc, err := New("article", "42", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "article:42" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if doc.Type() != "article" || doc.PrimaryKey() != "42" {
		t.Errorf("Type()/PrimaryKey() = %q/%q", doc.Type(), doc.PrimaryKey())
	}
	if f, ok := doc.Field("title"); !ok || f.Text() != "Hello" {
		t.Errorf("Field(title) = %+v, %v", f, ok)
	}

	// Mutating the input slice must not affect the document
	fields[0].Value = "mutated"
	if f, _ := doc.Field("title"); f.Text() != "Hello" {
		t.Error("field mutation leaked into document")
	}
}

func TestNew_Invalid(t *testing.T) {
	long := make([]byte, MaxPrimaryKeyLen+1)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name       string
		objectType string
		pk         string
	}{
		{"empty type", "", "1"},
		{"type with separator", "a:b", "1"},
		{"empty pk", "article", ""},
		{"pk too long", "article", string(long)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.objectType, tt.pk, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	typ, pk, err := ParseID("article:a:b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != "article" || pk != "a:b" {
		t.Errorf("ParseID = %q, %q", typ, pk)
	}

	for _, bad := range []string{"", "article", ":1", "article:"} {
		if _, _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) expected error", bad)
		}
	}
}

func TestSource_TimeInUTC(t *testing.T) {
	loc := time.FixedZone("x", 3*3600)
	ts := time.Date(2024, 1, 2, 15, 0, 0, 0, loc)
	doc, _ := New("event", "1", []Field{{Name: "at", Kind: schema.Filterable, Type: schema.Time, Value: ts}})

	if got := doc.Source()["at"]; got != "2024-01-02T12:00:00Z" {
		t.Errorf("Source()[at] = %v", got)
	}
}

func TestCollect_StopsAtError(t *testing.T) {
	d1, _ := New("article", "1", nil)
	boom := errors.New("boom")
	s := func(yield func(Document, error) bool) {
		if !yield(d1, nil) {
			return
		}
		yield(Document{}, boom)
	}

	docs, err := Collect(s)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(docs) != 1 {
		t.Errorf("len(docs) = %d, want 1", len(docs))
	}
}

func TestFromSlice_EarlyBreak(t *testing.T) {
	d1, _ := New("article", "1", nil)
	d2, _ := New("article", "2", nil)

	n := 0
	for range FromSlice([]Document{d1, d2}) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d, want 1", n)
	}
}
