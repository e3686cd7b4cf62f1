package schema

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestCoerce(t *testing.T) {
	u, _ := url.Parse("https://example.com/a")
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))

	tests := []struct {
		name  string
		spec  FieldSpec
		in    any
		want  any
		isErr bool
	}{
		{"text string", FieldSpec{Kind: Text}, "hello", "hello", false},
		{"text bytes", FieldSpec{Kind: Text}, []byte("hi"), "hi", false},
		{"text slice", FieldSpec{Kind: Text}, []string{"a", "b"}, "a b", false},
		{"text stringer", FieldSpec{Kind: Autocomplete}, u, "https://example.com/a", false},
		{"text int", FieldSpec{Kind: Text}, 5, nil, true},
		{"string int", FieldSpec{Kind: Filterable, Type: String}, 42, "42", false},
		{"string uint", FieldSpec{Kind: Filterable, Type: String}, uint8(7), "7", false},
		{"string float", FieldSpec{Kind: Filterable, Type: String}, 1.5, nil, true},
		{"bool", FieldSpec{Kind: Filterable, Type: Bool}, true, true, false},
		{"bool string", FieldSpec{Kind: Filterable, Type: Bool}, " false ", false, false},
		{"bool garbage", FieldSpec{Kind: Filterable, Type: Bool}, "yes please", nil, true},
		{"number int", FieldSpec{Kind: Filterable, Type: Number}, int32(3), 3.0, false},
		{"number json", FieldSpec{Kind: Filterable, Type: Number}, json.Number("2.5"), 2.5, false},
		{"number string", FieldSpec{Kind: Filterable, Type: Number}, "10", 10.0, false},
		{"number nan", FieldSpec{Kind: Filterable, Type: Number}, math.NaN(), nil, true},
		{"number inf", FieldSpec{Kind: Filterable, Type: Number}, math.Inf(1), nil, true},
		{"number bool", FieldSpec{Kind: Filterable, Type: Number}, true, nil, true},
		{"time", FieldSpec{Kind: Filterable, Type: Time}, ts, ts.UTC(), false},
		{"time string", FieldSpec{Kind: Filterable, Type: Time}, "2024-03-01T09:00:00Z", ts.UTC(), false},
		{"time bad", FieldSpec{Kind: Filterable, Type: Time}, "yesterday", nil, true},
		{"time zero", FieldSpec{Kind: Filterable, Type: Time}, time.Time{}, nil, true},
		{"ids slice", FieldSpec{Kind: RelatedID}, []int{1, 2}, []string{"1", "2"}, false},
		{"ids any", FieldSpec{Kind: RelatedID}, []any{"a", nil, 3}, []string{"a", "3"}, false},
		{"ids scalar", FieldSpec{Kind: RelatedID}, int64(9), []string{"9"}, false},
		{"ids bad elem", FieldSpec{Kind: RelatedID}, []any{1.5}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Coerce(tt.in)
			if tt.isErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Coerce(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerce_Nil(t *testing.T) {
	var p *time.Time
	for _, in := range []any{nil, p, []string(nil)} {
		if _, err := (FieldSpec{Kind: Text}).Coerce(in); !errors.Is(err, ErrNilValue) {
			t.Errorf("Coerce(%#v) err = %v, want ErrNilValue", in, err)
		}
	}
}
