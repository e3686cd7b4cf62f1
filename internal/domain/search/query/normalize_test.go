package query

import (
	"reflect"
	"testing"
)

func TestNegationNormalForm(t *testing.T) {
	a := Term{Field: "title", Text: "a"}
	b := Term{Field: "title", Text: "b"}

	tests := []struct {
		name string
		in   Node
		want Node
	}{
		{"leaf", a, a},
		{"double negation", Not{Child: Not{Child: a}}, a},
		{"not and", Not{Child: NewAnd(a, b)}, NewOr(Not{Child: a}, Not{Child: b})},
		{"not or", Not{Child: NewOr(a, b)}, NewAnd(Not{Child: a}, Not{Child: b})},
		{"not boost", Not{Child: Boost{Child: a, Weight: 3}}, Not{Child: a}},
		{"boost kept", Boost{Child: Not{Child: a}, Weight: 2}, Boost{Child: Not{Child: a}, Weight: 2}},
		{"not eq", Not{Child: Equals("x", 1)}, Filter{Field: "x", Op: Ne, Value: 1}},
		{"not ne", Not{Child: Filter{Field: "x", Op: Ne, Value: 1}}, Equals("x", 1)},
		{"not range", Not{Child: Filter{Field: "x", Op: Gt, Value: 1}}, Not{Child: Filter{Field: "x", Op: Gt, Value: 1}}},
		{
			"nested",
			NewOr(a, Not{Child: NewAnd(b, Not{Child: a})}),
			NewOr(a, NewOr(Not{Child: b}, a)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NegationNormalForm(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NNF = %#v\nwant %#v", got, tt.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	n := Page(NewAnd(Term{Text: "a"}, Not{Child: CommonTerms{Text: "b", Cutoff: 0.1}}), 0, 10)
	found, ok := Find(n, func(c Node) bool { _, is := c.(CommonTerms); return is })
	if !ok || found.Name() != "CommonTerms" {
		t.Errorf("Find = %v, %v", found, ok)
	}
	if _, ok := Find(n, func(c Node) bool { _, is := c.(Phrase); return is }); ok {
		t.Error("Find(Phrase) = true")
	}
}
