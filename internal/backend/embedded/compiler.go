package embedded

import (
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// compiler renders plans into bleve queries for one object type.
type compiler struct {
	ot schema.ObjectType
}

// request renders plan as a search request. Negations are pushed to the leaves first so
// every Not compiles to a single must-not clause.
func (c compiler) request(plan query.Plan) (*bleve.SearchRequest, error) {
	q, err := c.node(query.NegationNormalForm(plan.Root), 1.0)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(q, plan.Limit, plan.Offset, false)
	req.SortByCustom(c.sort(plan.Sort))
	return req, nil
}

func (c compiler) sort(keys []query.SortKey) search.SortOrder {
	order := make(search.SortOrder, 0, len(keys)+1)
	for _, k := range keys {
		if k.IsScore() {
			order = append(order, &search.SortScore{Desc: k.Desc})
			continue
		}
		order = append(order, &search.SortField{
			Field:   k.Field,
			Desc:    k.Desc,
			Type:    search.SortFieldAuto,
			Mode:    search.SortFieldDefault,
			Missing: search.SortFieldMissingLast,
		})
	}
	return append(order, &search.SortDocID{})
}

func (c compiler) node(n query.Node, boost float64) (bq.Query, error) {
	switch x := n.(type) {
	case query.MatchAll:
		return bleve.NewMatchAllQuery(), nil
	case query.Term:
		return c.text(x.Name(), query.Fields(x.Field, c.ot), boost, func(field string) bq.Query {
			q := bleve.NewMatchQuery(x.Text)
			q.SetField(field)
			q.SetOperator(bq.MatchQueryOperatorOr)
			return q
		})
	case query.Phrase:
		return c.text(x.Name(), query.Fields(x.Field, c.ot), boost, func(field string) bq.Query {
			q := bleve.NewMatchPhraseQuery(x.Text)
			q.SetField(field)
			return q
		})
	case query.Autocomplete:
		return c.text(x.Name(), query.AutocompleteFields(x.Field, c.ot), boost, func(field string) bq.Query {
			return prefixQuery(field, query.Tokenize(x.Text))
		})
	case query.CommonTerms:
		return nil, domain.NewQueryError(x.Name(), "not supported by the embedded backend")
	case query.And:
		b := bleve.NewBooleanQuery()
		for _, ch := range x.Children {
			if not, ok := ch.(query.Not); ok {
				q, err := c.node(not.Child, boost)
				if err != nil {
					return nil, err
				}
				b.AddMustNot(q)
				continue
			}
			q, err := c.node(ch, boost)
			if err != nil {
				return nil, err
			}
			b.AddMust(q)
		}
		if b.Must == nil {
			b.AddMust(bleve.NewMatchAllQuery())
		}
		return b, nil
	case query.Or:
		d := bleve.NewDisjunctionQuery()
		for _, ch := range x.Children {
			q, err := c.node(ch, boost)
			if err != nil {
				return nil, err
			}
			d.AddQuery(q)
		}
		d.SetMin(1)
		return d, nil
	case query.Not:
		q, err := c.node(x.Child, boost)
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	case query.Boost:
		return c.node(x.Child, boost*x.Weight)
	case query.Filter:
		return c.filter(x)
	}
	return nil, domain.NewQueryError(n.Name(), "not supported by the embedded backend")
}

// text builds one leaf per target field, weighted by field boost, joined by a disjunction.
func (c compiler) text(node string, fields []schema.FieldSpec, boost float64, leaf func(field string) bq.Query) (bq.Query, error) {
	if len(fields) == 0 {
		return nil, domain.NewQueryError(node, "no searchable fields")
	}
	d := bleve.NewDisjunctionQuery()
	for _, f := range fields {
		q := leaf(f.Name)
		if bs, ok := q.(bq.BoostableQuery); ok {
			bs.SetBoost(f.Boost * boost)
		}
		d.AddQuery(q)
	}
	d.SetMin(1)
	return d, nil
}

// prefixQuery matches any leading token exactly or the last token as a prefix.
func prefixQuery(field string, tokens []string) bq.Query {
	d := bleve.NewDisjunctionQuery()
	for i, t := range tokens {
		if i == len(tokens)-1 {
			p := bleve.NewPrefixQuery(t)
			p.SetField(field)
			d.AddQuery(p)
			continue
		}
		tq := bleve.NewTermQuery(t)
		tq.SetField(field)
		d.AddQuery(tq)
	}
	d.SetMin(1)
	return d
}

func negate(q bq.Query) bq.Query {
	b := bleve.NewBooleanQuery()
	b.AddMust(bleve.NewMatchAllQuery())
	b.AddMustNot(q)
	return b
}

func (c compiler) filter(f query.Filter) (bq.Query, error) {
	spec, _ := c.ot.Field(f.Field)
	switch f.Op {
	case query.Eq:
		return c.equals(spec, f.Value)
	case query.Ne:
		q, err := c.equals(spec, f.Value)
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	case query.In:
		vals, _ := f.Value.([]any)
		d := bleve.NewDisjunctionQuery()
		for _, v := range vals {
			q, err := c.equals(spec, v)
			if err != nil {
				return nil, err
			}
			d.AddQuery(q)
		}
		d.SetMin(1)
		return d, nil
	case query.Lt, query.Lte, query.Gt, query.Gte:
		return c.rangeQuery(spec, f.Op, f.Value)
	}
	return nil, domain.NewQueryError(f.Name(), "unsupported operator %q", f.Op)
}

func (c compiler) equals(spec schema.FieldSpec, v any) (bq.Query, error) {
	incl := true
	switch x := v.(type) {
	case string:
		q := bleve.NewTermQuery(x)
		q.SetField(spec.Name)
		return q, nil
	case bool:
		q := bleve.NewBoolFieldQuery(x)
		q.SetField(spec.Name)
		return q, nil
	case float64:
		q := bleve.NewNumericRangeInclusiveQuery(&x, &x, &incl, &incl)
		q.SetField(spec.Name)
		return q, nil
	case time.Time:
		q := bleve.NewDateRangeInclusiveQuery(x, x, &incl, &incl)
		q.SetField(spec.Name)
		return q, nil
	}
	return nil, domain.NewQueryError("Filter", "unsupported value %T for %q", v, spec.Name)
}

func (c compiler) rangeQuery(spec schema.FieldSpec, op query.Op, v any) (bq.Query, error) {
	inclusive := op == query.Lte || op == query.Gte
	lower := op == query.Gt || op == query.Gte

	switch x := v.(type) {
	case float64:
		var q *bq.NumericRangeQuery
		if lower {
			q = bleve.NewNumericRangeInclusiveQuery(&x, nil, &inclusive, nil)
		} else {
			q = bleve.NewNumericRangeInclusiveQuery(nil, &x, nil, &inclusive)
		}
		q.SetField(spec.Name)
		return q, nil
	case time.Time:
		var q *bq.DateRangeQuery
		if lower {
			q = bleve.NewDateRangeInclusiveQuery(x, time.Time{}, &inclusive, nil)
		} else {
			q = bleve.NewDateRangeInclusiveQuery(time.Time{}, x, nil, &inclusive)
		}
		q.SetField(spec.Name)
		return q, nil
	case string:
		var q *bq.TermRangeQuery
		if lower {
			q = bleve.NewTermRangeInclusiveQuery(x, "", &inclusive, nil)
		} else {
			q = bleve.NewTermRangeInclusiveQuery("", x, nil, &inclusive)
		}
		q.SetField(spec.Name)
		return q, nil
	}
	return nil, domain.NewQueryError("Filter", "unsupported range value %T for %q", v, spec.Name)
}
