package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

// compiled is a search plan rendered to SQL.
type compiled struct {
	selectSQL  string
	selectArgs []any
	countSQL   string
	countArgs  []any
}

// compiler renders one plan. Score and WHERE fragments collect their own args so the final
// statement can stitch them in textual order.
type compiler struct {
	ot        schema.ObjectType
	fts       string
	weights   string
	where     []any
	score     []string
	scoreArgs []any
}

// compile renders plan for object type ot into a hits query and a count query.
func compile(plan query.Plan, ot schema.ObjectType) (compiled, error) {
	c := &compiler{ot: ot, fts: ftsTable(ot.Key()), weights: bm25Weights(ot)}

	where, err := c.node(plan.Root, 1.0, true)
	if err != nil {
		return compiled{}, err
	}

	score := "0.0"
	if len(c.score) > 0 {
		score = strings.Join(c.score, " + ")
	}
	orderBy, err := c.orderBy(plan.Sort)
	if err != nil {
		return compiled{}, err
	}

	from := "FROM search_documents d WHERE d.object_type = ? AND " + where

	sel := "SELECT d.doc_id, " + score + " AS score " + from + " ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	selArgs := make([]any, 0, len(c.scoreArgs)+len(c.where)+3)
	selArgs = append(selArgs, c.scoreArgs...)
	selArgs = append(selArgs, ot.Key())
	selArgs = append(selArgs, c.where...)
	selArgs = append(selArgs, plan.Limit, plan.Offset)

	countArgs := make([]any, 0, len(c.where)+1)
	countArgs = append(countArgs, ot.Key())
	countArgs = append(countArgs, c.where...)

	return compiled{
		selectSQL:  sel,
		selectArgs: selArgs,
		countSQL:   "SELECT COUNT(*) " + from,
		countArgs:  countArgs,
	}, nil
}

// node renders n as a WHERE fragment. boost is the product of enclosing Boost weights;
// scoring is false below a Not.
func (c *compiler) node(n query.Node, boost float64, scoring bool) (string, error) {
	switch x := n.(type) {
	case query.MatchAll:
		return "1", nil
	case query.Term:
		return c.text(x.Name(), query.Fields(x.Field, c.ot), termExpr(query.Tokenize(x.Text)), boost, scoring)
	case query.Phrase:
		return c.text(x.Name(), query.Fields(x.Field, c.ot), phraseExpr(query.Tokenize(x.Text)), boost, scoring)
	case query.Autocomplete:
		return c.text(x.Name(), query.AutocompleteFields(x.Field, c.ot), prefixExpr(query.Tokenize(x.Text)), boost, scoring)
	case query.CommonTerms:
		return "", domain.NewQueryError(x.Name(), "not supported by the database backend")
	case query.And:
		return c.join(x.Children, " AND ", boost, scoring)
	case query.Or:
		return c.join(x.Children, " OR ", boost, scoring)
	case query.Not:
		inner, err := c.node(x.Child, boost, false)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case query.Boost:
		return c.node(x.Child, boost*x.Weight, scoring)
	case query.Filter:
		return c.filter(x)
	}
	return "", domain.NewQueryError(n.Name(), "not supported by the database backend")
}

func (c *compiler) join(children []query.Node, sep string, boost float64, scoring bool) (string, error) {
	parts := make([]string, 0, len(children))
	for _, ch := range children {
		p, err := c.node(ch, boost, scoring)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// text renders a full-text leaf as a rowid membership test and, when scoring, adds its
// weighted bm25 to the score expression.
func (c *compiler) text(node string, fields []schema.FieldSpec, expr string, boost float64, scoring bool) (string, error) {
	if len(fields) == 0 {
		return "", domain.NewQueryError(node, "no searchable fields")
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	match := "{" + strings.Join(cols, " ") + "} : (" + expr + ")"

	c.where = append(c.where, match)
	frag := fmt.Sprintf(`d.rowid IN (SELECT rowid FROM %s WHERE %s MATCH ?)`, c.fts, c.fts)

	if scoring {
		c.score = append(c.score, fmt.Sprintf(
			`IFNULL((SELECT -bm25(%s%s) FROM %s WHERE %s MATCH ? AND rowid = d.rowid), 0) * %s`,
			c.fts, c.weights, c.fts, c.fts, strconv.FormatFloat(boost, 'g', -1, 64),
		))
		c.scoreArgs = append(c.scoreArgs, match)
	}
	return frag, nil
}

func (c *compiler) filter(f query.Filter) (string, error) {
	path := jsonPath(f.Field)
	switch f.Op {
	case query.Eq:
		c.where = append(c.where, path, sqlValue(f.Value))
		return "EXISTS (SELECT 1 FROM json_each(d.data, ?) WHERE value = ?)", nil
	case query.Ne:
		c.where = append(c.where, path, sqlValue(f.Value))
		return "NOT EXISTS (SELECT 1 FROM json_each(d.data, ?) WHERE value = ?)", nil
	case query.Lt, query.Lte, query.Gt, query.Gte:
		c.where = append(c.where, path, sqlValue(f.Value))
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(d.data, ?) WHERE value %s ?)", f.Op), nil
	case query.In:
		vals, _ := f.Value.([]any)
		if len(vals) == 0 {
			return "", domain.NewQueryError(f.Name(), "empty value list")
		}
		c.where = append(c.where, path)
		marks := make([]string, len(vals))
		for i, v := range vals {
			marks[i] = "?"
			c.where = append(c.where, sqlValue(v))
		}
		return "EXISTS (SELECT 1 FROM json_each(d.data, ?) WHERE value IN (" + strings.Join(marks, ", ") + "))", nil
	}
	return "", domain.NewQueryError(f.Name(), "unsupported operator %q", f.Op)
}

func (c *compiler) orderBy(keys []query.SortKey) (string, error) {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		if k.IsScore() {
			parts = append(parts, "score "+dir)
			continue
		}
		if _, ok := c.ot.Field(k.Field); !ok {
			return "", domain.NewQueryError("OrderBy", "unknown field %q", k.Field)
		}
		// field names are validated identifiers; missing values sort last
		expr := fmt.Sprintf("json_extract(d.data, '%s')", jsonPath(k.Field))
		parts = append(parts, expr+" IS NULL", expr+" "+dir)
	}
	parts = append(parts, "d.doc_id ASC")
	return strings.Join(parts, ", "), nil
}

func termExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quote(t)
	}
	return strings.Join(quoted, " OR ")
}

func phraseExpr(tokens []string) string {
	return quote(strings.Join(tokens, " "))
}

func prefixExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quote(t)
	}
	quoted[len(quoted)-1] += " *"
	return strings.Join(quoted, " OR ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func jsonPath(field string) string { return "$." + field }

// sqlValue converts a coerced filter value to the representation stored in the JSON data
// column: booleans as 0/1 and times as Unix milliseconds.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UnixMilli()
	}
	return v
}

// bm25Weights renders the per-column bm25 weights in FTS column order.
func bm25Weights(ot schema.ObjectType) string {
	var b strings.Builder
	for _, f := range ot.SearchableFields() {
		b.WriteString(", ")
		b.WriteString(strconv.FormatFloat(f.Boost, 'g', -1, 64))
	}
	return b.String()
}

// ftsTable returns the quoted FTS5 table name of an object type.
func ftsTable(objectType string) string {
	return `"search_fts_` + objectType + `"`
}
