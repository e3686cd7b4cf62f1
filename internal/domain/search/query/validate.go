package query

import (
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

// Validate checks a plan against an object type and returns a copy whose filter values
// are coerced to the field value types (string, bool, float64, time.Time).
func Validate(p Plan, ot schema.ObjectType) (Plan, error) {
	root, err := bind(p.Root, ot)
	if err != nil {
		return Plan{}, err
	}
	for _, k := range p.Sort {
		if k.IsScore() {
			continue
		}
		f, ok := ot.Field(k.Field)
		if !ok {
			return Plan{}, domain.NewQueryError("OrderBy", "unknown field %q on %s", k.Field, ot.Key())
		}
		if f.Kind != schema.Filterable {
			return Plan{}, domain.NewQueryError("OrderBy", "field %q is not filterable", k.Field)
		}
	}
	out := p
	out.Root = root
	return out, nil
}

func bind(n Node, ot schema.ObjectType) (Node, error) {
	switch x := n.(type) {
	case Term:
		return x, checkSearchable(x.Name(), x.Field, ot)
	case Phrase:
		return x, checkSearchable(x.Name(), x.Field, ot)
	case CommonTerms:
		return x, checkSearchable(x.Name(), x.Field, ot)
	case Autocomplete:
		if err := checkSearchable(x.Name(), x.Field, ot); err != nil {
			return nil, err
		}
		if x.Field != "" {
			if f, _ := ot.Field(x.Field); f.Kind != schema.Autocomplete {
				return nil, domain.NewQueryError(x.Name(), "field %q is not an autocomplete field", x.Field)
			}
		} else if len(autocompleteFields(ot)) == 0 {
			return nil, domain.NewQueryError(x.Name(), "%s has no autocomplete fields", ot.Key())
		}
		return x, nil
	case And:
		children, err := bindAll(x.Children, ot)
		return And{Children: children}, err
	case Or:
		children, err := bindAll(x.Children, ot)
		return Or{Children: children}, err
	case Not:
		c, err := bind(x.Child, ot)
		return Not{Child: c}, err
	case Boost:
		c, err := bind(x.Child, ot)
		return Boost{Child: c, Weight: x.Weight}, err
	case Filter:
		return bindFilter(x, ot)
	case MatchAll:
		return x, nil
	}
	return nil, domain.NewQueryError(fmt.Sprintf("%T", n), "unsupported node")
}

func bindAll(nodes []Node, ot schema.ObjectType) ([]Node, error) {
	out := make([]Node, len(nodes))
	for i, c := range nodes {
		b, err := bind(c, ot)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func checkSearchable(node, field string, ot schema.ObjectType) error {
	if field == "" {
		if len(ot.SearchableFields()) == 0 {
			return domain.NewQueryError(node, "%s has no searchable fields", ot.Key())
		}
		return nil
	}
	f, ok := ot.Field(field)
	if !ok {
		return domain.NewQueryError(node, "unknown field %q on %s", field, ot.Key())
	}
	if !f.Kind.Searchable() {
		return domain.NewQueryError(node, "field %q is not searchable", field)
	}
	return nil
}

func autocompleteFields(ot schema.ObjectType) []schema.FieldSpec {
	var out []schema.FieldSpec
	for _, f := range ot.Fields() {
		if f.Kind == schema.Autocomplete {
			out = append(out, f)
		}
	}
	return out
}

func bindFilter(x Filter, ot schema.ObjectType) (Node, error) {
	f, ok := ot.Field(x.Field)
	if !ok {
		return nil, domain.NewQueryError(x.Name(), "unknown field %q on %s", x.Field, ot.Key())
	}
	if f.Kind != schema.Filterable && f.Kind != schema.RelatedID {
		return nil, domain.NewQueryError(x.Name(), "field %q is not filterable", x.Field)
	}
	if x.Op.IsRange() && (f.Kind == schema.RelatedID || f.Type == schema.Bool) {
		return nil, domain.NewQueryError(x.Name(), "operator %s not supported on %q", x.Op, x.Field)
	}

	if x.Op == In {
		raw, ok := x.Value.([]any)
		if !ok || len(raw) == 0 {
			return nil, domain.NewQueryError(x.Name(), "operator in needs a non-empty list for %q", x.Field)
		}
		vals := make([]any, len(raw))
		for i, v := range raw {
			c, err := schema.CoerceScalar(f.Type, v)
			if err != nil {
				return nil, domain.NewQueryError(x.Name(), "value %d for %q: %v", i, x.Field, err)
			}
			vals[i] = c
		}
		return Filter{Field: x.Field, Op: x.Op, Value: vals}, nil
	}

	v, err := schema.CoerceScalar(f.Type, x.Value)
	if err != nil {
		return nil, domain.NewQueryError(x.Name(), "value for %q: %v", x.Field, err)
	}
	return Filter{Field: x.Field, Op: x.Op, Value: v}, nil
}

// Fields returns the fields a text node targets: the named field, or every searchable
// field of the type when the node's field is empty.
func Fields(field string, ot schema.ObjectType) []schema.FieldSpec {
	if field != "" {
		f, ok := ot.Field(field)
		if !ok {
			return nil
		}
		return []schema.FieldSpec{f}
	}
	return ot.SearchableFields()
}

// AutocompleteFields returns the autocomplete fields an Autocomplete node targets.
func AutocompleteFields(field string, ot schema.ObjectType) []schema.FieldSpec {
	if field != "" {
		return Fields(field, ot)
	}
	return autocompleteFields(ot)
}
