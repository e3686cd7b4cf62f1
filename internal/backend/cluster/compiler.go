package cluster

import (
	"strconv"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// compiler renders plans into search request bodies for one dialect.
type compiler struct {
	dialect Dialect
	ot      schema.ObjectType
}

// searchBody renders plan. from and size are passed separately so callers can clamp them
// to the result window.
func (c compiler) searchBody(plan query.Plan, from, size int) (map[string]any, error) {
	q, err := c.node(plan.Root, 1.0)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"query":            q,
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"sort":             c.sort(plan.Sort),
		"_source":          false,
	}
	if !plan.ScoreSorted() {
		body["track_scores"] = true
	}
	return body, nil
}

func (c compiler) sort(keys []query.SortKey) []any {
	out := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		order := "asc"
		if k.Desc {
			order = "desc"
		}
		if k.IsScore() {
			out = append(out, map[string]any{"_score": map[string]any{"order": order}})
			continue
		}
		out = append(out, map[string]any{k.Field: map[string]any{"order": order, "missing": "_last"}})
	}
	return append(out, map[string]any{schema.DocIDField: map[string]any{"order": "asc"}})
}

// node compiles n with the product of enclosing Boost weights.
func (c compiler) node(n query.Node, boost float64) (map[string]any, error) {
	switch x := n.(type) {
	case query.MatchAll:
		return map[string]any{"match_all": map[string]any{}}, nil
	case query.Term:
		return c.match("match", "best_fields", x.Field, x.Text, boost)
	case query.Phrase:
		return c.match("match_phrase", "phrase", x.Field, x.Text, boost)
	case query.Autocomplete:
		return c.autocomplete(x, boost)
	case query.CommonTerms:
		return c.common(x, boost)
	case query.Filter:
		f, err := c.filter(x)
		if err != nil {
			return nil, err
		}
		return boolQuery(nil, []any{f}, nil, nil), nil
	case query.And:
		var must, filter, mustNot []any
		for _, ch := range x.Children {
			switch cx := ch.(type) {
			case query.Filter:
				f, err := c.filter(cx)
				if err != nil {
					return nil, err
				}
				filter = append(filter, f)
			case query.Not:
				q, err := c.node(cx.Child, boost)
				if err != nil {
					return nil, err
				}
				mustNot = append(mustNot, q)
			default:
				q, err := c.node(ch, boost)
				if err != nil {
					return nil, err
				}
				must = append(must, q)
			}
		}
		return boolQuery(must, filter, nil, mustNot), nil
	case query.Or:
		should := make([]any, 0, len(x.Children))
		for _, ch := range x.Children {
			q, err := c.node(ch, boost)
			if err != nil {
				return nil, err
			}
			should = append(should, q)
		}
		b := boolQuery(nil, nil, should, nil)
		b["bool"].(map[string]any)["minimum_should_match"] = 1
		return b, nil
	case query.Not:
		q, err := c.node(x.Child, boost)
		if err != nil {
			return nil, err
		}
		return boolQuery(nil, nil, nil, []any{q}), nil
	case query.Boost:
		return c.node(x.Child, boost*x.Weight)
	}
	return nil, domain.NewQueryError(n.Name(), "not supported by %s", c.dialect.Name)
}

func boolQuery(must, filter, should, mustNot []any) map[string]any {
	b := map[string]any{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(filter) > 0 {
		b["filter"] = filter
	}
	if len(should) > 0 {
		b["should"] = should
	}
	if len(mustNot) > 0 {
		b["must_not"] = mustNot
	}
	return map[string]any{"bool": b}
}

// match renders a Term or Phrase leaf. A named field gets a single-field clause; an empty
// field fans out over every searchable field with per-field boosts.
func (c compiler) match(kind, multiType, field, text string, boost float64) (map[string]any, error) {
	fields := query.Fields(field, c.ot)
	if len(fields) == 0 {
		return nil, domain.NewQueryError(kind, "no searchable fields")
	}
	if field != "" {
		f := fields[0]
		return map[string]any{kind: map[string]any{
			f.Name: map[string]any{"query": text, "boost": f.Boost * boost},
		}}, nil
	}
	return map[string]any{"multi_match": map[string]any{
		"query":  text,
		"type":   multiType,
		"fields": boostedFields(fields),
		"boost":  boost,
	}}, nil
}

func (c compiler) autocomplete(x query.Autocomplete, boost float64) (map[string]any, error) {
	fields := query.AutocompleteFields(x.Field, c.ot)
	if len(fields) == 0 {
		return nil, domain.NewQueryError(x.Name(), "no autocomplete fields")
	}
	var names []string
	for _, f := range fields {
		w := "^" + strconv.FormatFloat(f.Boost, 'g', -1, 64)
		names = append(names, f.Name+w, f.Name+"._2gram"+w, f.Name+"._3gram"+w)
	}
	return map[string]any{"multi_match": map[string]any{
		"query":  x.Text,
		"type":   "bool_prefix",
		"fields": names,
		"boost":  boost,
	}}, nil
}

func (c compiler) common(x query.CommonTerms, boost float64) (map[string]any, error) {
	if !c.dialect.CommonTerms {
		return nil, domain.NewQueryError(x.Name(), "not supported by %s", c.dialect.Name)
	}
	fields := query.Fields(x.Field, c.ot)
	should := make([]any, 0, len(fields))
	for _, f := range fields {
		should = append(should, map[string]any{"common": map[string]any{
			f.Name: map[string]any{
				"query":            x.Text,
				"cutoff_frequency": x.Cutoff,
				"boost":            f.Boost * boost,
			},
		}})
	}
	if len(should) == 1 {
		return should[0].(map[string]any), nil
	}
	b := boolQuery(nil, nil, should, nil)
	b["bool"].(map[string]any)["minimum_should_match"] = 1
	return b, nil
}

func (c compiler) filter(f query.Filter) (map[string]any, error) {
	switch f.Op {
	case query.Eq:
		return map[string]any{"term": map[string]any{f.Field: wireValue(f.Value)}}, nil
	case query.Ne:
		term := map[string]any{"term": map[string]any{f.Field: wireValue(f.Value)}}
		return boolQuery(nil, nil, nil, []any{term}), nil
	case query.Lt, query.Lte, query.Gt, query.Gte:
		return map[string]any{"range": map[string]any{
			f.Field: map[string]any{rangeKey(f.Op): wireValue(f.Value)},
		}}, nil
	case query.In:
		vals, _ := f.Value.([]any)
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = wireValue(v)
		}
		return map[string]any{"terms": map[string]any{f.Field: out}}, nil
	}
	return nil, domain.NewQueryError(f.Name(), "unsupported operator %q", f.Op)
}

func rangeKey(op query.Op) string {
	switch op {
	case query.Lt:
		return "lt"
	case query.Lte:
		return "lte"
	case query.Gt:
		return "gt"
	}
	return "gte"
}

func boostedFields(fields []schema.FieldSpec) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name + "^" + strconv.FormatFloat(f.Boost, 'g', -1, 64)
	}
	return out
}
