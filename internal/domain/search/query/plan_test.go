package query

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

func TestNewPlan_Defaults(t *testing.T) {
	p, err := NewPlan(Term{Field: "title", Text: "go"}, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("window = %d/%d", p.Offset, p.Limit)
	}
	if !p.ScoreSorted() {
		t.Errorf("Sort = %v, want score desc", p.Sort)
	}
	if _, ok := p.Root.(Term); !ok {
		t.Errorf("Root = %T", p.Root)
	}
}

func TestNewPlan_PeelsWrappers(t *testing.T) {
	n := Page(Sorted(Term{Text: "go"}, "published_at", true), 10, 5)
	p, err := NewPlan(n, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Offset != 10 || p.Limit != 5 {
		t.Errorf("window = %d/%d", p.Offset, p.Limit)
	}
	if len(p.Sort) != 1 || p.Sort[0].Field != "published_at" || !p.Sort[0].Desc {
		t.Errorf("Sort = %v", p.Sort)
	}
	if p.ScoreSorted() {
		t.Error("ScoreSorted() = true")
	}

	// order of wrappers does not matter
	p2, err := NewPlan(Sorted(Page(Term{Text: "go"}, 1, 2), "", false), DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.Sort[0].Field != ScoreField || p2.Offset != 1 {
		t.Errorf("plan = %+v", p2)
	}
}

func TestNewPlan_ClampsLimit(t *testing.T) {
	p, err := NewPlan(Page(MatchAll{}, 0, 10_000), Limits{DefaultLimit: 10, MaxLimit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Limit != 50 {
		t.Errorf("Limit = %d, want 50", p.Limit)
	}
}

func TestNewPlan_NilChildIsMatchAll(t *testing.T) {
	p, err := NewPlan(Paginate{Offset: 0, Limit: 3}, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Root.(MatchAll); !ok {
		t.Errorf("Root = %T, want MatchAll", p.Root)
	}
}

func TestNewPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"negative offset", Page(MatchAll{}, -1, 10), "Paginate"},
		{"negative limit", Page(MatchAll{}, 0, -5), "Paginate"},
		{"nested paginate", NewAnd(Term{Text: "a"}, Page(MatchAll{}, 0, 1)), "Paginate"},
		{"nested order", NewOr(Sorted(MatchAll{}, "x", true)), "OrderBy"},
		{"double paginate", Page(Page(MatchAll{}, 0, 1), 0, 1), "Paginate"},
		{"empty and", And{}, "And"},
		{"empty or", Or{}, "Or"},
		{"zero boost", Boost{Child: Term{Text: "a"}, Weight: 0}, "Boost"},
		{"empty text", Term{Field: "title", Text: " !! "}, "Term"},
		{"bad cutoff", CommonTerms{Text: "a", Cutoff: 2}, "CommonTerms"},
		{"bad op", Filter{Field: "x", Op: "~", Value: 1}, "Filter"},
		{"filter without field", Filter{Op: Eq, Value: 1}, "Filter"},
		{"no sort keys", OrderBy{Child: MatchAll{}}, "OrderBy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.node, DefaultLimits())
			var qe *domain.QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("err = %v, want QueryError", err)
			}
			if qe.Node != tt.want {
				t.Errorf("Node = %q, want %q", qe.Node, tt.want)
			}
			if !errors.Is(err, domain.ErrQuery) {
				t.Error("errors.Is(ErrQuery) = false")
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Hello, Wagtail-CMS 2024!", []string{"hello", "wagtail", "cms", "2024"}},
		{"Don't panic", []string{"don't", "panic"}},
		{"Café culture", []string{"café", "culture"}},
		{"pi is 3.14", []string{"pi", "is", "3.14"}},
		{"  ...  ", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.text)
		if len(got) != len(tt.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q) token %d = %q, want %q", tt.text, i, got[i], tt.want[i])
			}
		}
	}
}
