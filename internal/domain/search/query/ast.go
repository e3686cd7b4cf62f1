// Package query defines the backend-neutral search query tree.
//
// A tree is built from the node types below, normalised with NewPlan, checked against an
// object type with Validate and handed to a backend compiler. Trees are never executed
// directly and are never mutated once built.
package query

// Node is a query tree node.
type Node interface {
	// Name identifies the node kind in errors.
	Name() string
	node()
}

// Op is a filter comparison operator.
type Op string

// Filter operators.
const (
	Eq  Op = "="
	Ne  Op = "!="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
	In  Op = "in"
)

// IsValid reports whether the operator is supported.
func (o Op) IsValid() bool {
	switch o {
	case Eq, Ne, Lt, Lte, Gt, Gte, In:
		return true
	}
	return false
}

// IsRange reports whether the operator compares order.
func (o Op) IsRange() bool {
	return o == Lt || o == Lte || o == Gt || o == Gte
}

// Term matches documents whose field contains any token of Text. An empty Field targets
// every searchable field of the type.
type Term struct {
	Field string
	Text  string
}

// Phrase matches documents whose field contains the tokens of Text in order.
type Phrase struct {
	Field string
	Text  string
}

// And matches documents matched by every child.
type And struct{ Children []Node }

// Or matches documents matched by at least one child.
type Or struct{ Children []Node }

// Not matches documents not matched by Child. It never contributes to the score.
type Not struct{ Child Node }

// Filter is a non-scoring predicate on a filterable or related-id field.
// For In, Value is a []any of candidates. Ne also matches documents lacking the field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Boost multiplies the score contribution of Child by Weight.
type Boost struct {
	Child  Node
	Weight float64
}

// ScoreField names the relevance score in sort keys.
const ScoreField = "_score"

// SortKey is one ordering criterion.
type SortKey struct {
	Field string
	Desc  bool
}

// IsScore reports whether the key orders by relevance.
func (k SortKey) IsScore() bool { return k.Field == "" || k.Field == ScoreField }

// OrderBy orders the results of Child. Only allowed at the top of a tree.
type OrderBy struct {
	Child Node
	Keys  []SortKey
}

// Paginate windows the results of Child. Only allowed at the top of a tree.
type Paginate struct {
	Child  Node
	Offset int
	Limit  int
}

// MatchAll matches every document of the type with a constant score.
type MatchAll struct{}

// Autocomplete matches documents whose field has tokens starting with the tokens of Text,
// the last token matched as a prefix.
type Autocomplete struct {
	Field string
	Text  string
}

// CommonTerms is a term match that down-weights tokens above the Cutoff document frequency.
// Only some cluster dialects support it.
type CommonTerms struct {
	Field  string
	Text   string
	Cutoff float64
}

func (Term) Name() string         { return "Term" }
func (Phrase) Name() string       { return "Phrase" }
func (And) Name() string          { return "And" }
func (Or) Name() string           { return "Or" }
func (Not) Name() string          { return "Not" }
func (Filter) Name() string       { return "Filter" }
func (Boost) Name() string        { return "Boost" }
func (OrderBy) Name() string      { return "OrderBy" }
func (Paginate) Name() string     { return "Paginate" }
func (MatchAll) Name() string     { return "MatchAll" }
func (Autocomplete) Name() string { return "Autocomplete" }
func (CommonTerms) Name() string  { return "CommonTerms" }

func (Term) node()         {}
func (Phrase) node()       {}
func (And) node()          {}
func (Or) node()           {}
func (Not) node()          {}
func (Filter) node()       {}
func (Boost) node()        {}
func (OrderBy) node()      {}
func (Paginate) node()     {}
func (MatchAll) node()     {}
func (Autocomplete) node() {}
func (CommonTerms) node()  {}

// NewAnd builds an And node.
func NewAnd(children ...Node) And { return And{Children: children} }

// NewOr builds an Or node.
func NewOr(children ...Node) Or { return Or{Children: children} }

// Equals builds an equality filter.
func Equals(field string, value any) Filter { return Filter{Field: field, Op: Eq, Value: value} }

// OneOf builds an In filter.
func OneOf(field string, values ...any) Filter { return Filter{Field: field, Op: In, Value: values} }

// Page wraps n in a Paginate node.
func Page(n Node, offset, limit int) Paginate { return Paginate{Child: n, Offset: offset, Limit: limit} }

// Sorted wraps n in an OrderBy node with a single key.
func Sorted(n Node, field string, desc bool) OrderBy {
	return OrderBy{Child: n, Keys: []SortKey{{Field: field, Desc: desc}}}
}
