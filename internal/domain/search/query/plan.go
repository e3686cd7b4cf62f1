package query

import (
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

// Default pagination limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Limits bounds pagination.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}
}

// Plan is a normalised query: the matching tree plus the peeled ordering and window.
type Plan struct {
	Root   Node
	Sort   []SortKey
	Offset int
	Limit  int
}

// ScoreSorted reports whether ordering is by relevance only.
func (p Plan) ScoreSorted() bool {
	return len(p.Sort) == 1 && p.Sort[0].IsScore() && p.Sort[0].Desc
}

// NewPlan peels the top-level Paginate and OrderBy wrappers off n, applies limits and
// checks the structure of the remaining tree. Paginate and OrderBy below the top level,
// empty connectives, non-positive boosts and empty text are QueryErrors.
func NewPlan(n Node, limits Limits) (Plan, error) {
	if limits.MaxLimit <= 0 {
		limits.MaxLimit = MaxLimit
	}
	if limits.DefaultLimit <= 0 || limits.DefaultLimit > limits.MaxLimit {
		limits.DefaultLimit = min(DefaultLimit, limits.MaxLimit)
	}

	p := Plan{Limit: -1}
	seenPage, seenOrder := false, false
peel:
	for {
		switch x := n.(type) {
		case Paginate:
			if seenPage {
				return Plan{}, domain.NewQueryError(x.Name(), "nested pagination")
			}
			seenPage = true
			if x.Offset < 0 {
				return Plan{}, domain.NewQueryError(x.Name(), "offset must be >= 0, got %d", x.Offset)
			}
			if x.Limit < 0 {
				return Plan{}, domain.NewQueryError(x.Name(), "limit must be >= 0, got %d", x.Limit)
			}
			p.Offset, p.Limit = x.Offset, x.Limit
			n = x.Child
		case OrderBy:
			if seenOrder {
				return Plan{}, domain.NewQueryError(x.Name(), "nested ordering")
			}
			seenOrder = true
			if len(x.Keys) == 0 {
				return Plan{}, domain.NewQueryError(x.Name(), "no sort keys")
			}
			p.Sort = append([]SortKey(nil), x.Keys...)
			n = x.Child
		default:
			break peel
		}
	}

	if n == nil {
		n = MatchAll{}
	}
	if err := checkTree(n); err != nil {
		return Plan{}, err
	}
	p.Root = n

	switch {
	case p.Limit <= 0:
		p.Limit = limits.DefaultLimit
	case p.Limit > limits.MaxLimit:
		p.Limit = limits.MaxLimit
	}
	if len(p.Sort) == 0 {
		p.Sort = []SortKey{{Field: ScoreField, Desc: true}}
	}
	for i := range p.Sort {
		if p.Sort[i].Field == "" {
			p.Sort[i].Field = ScoreField
		}
	}
	return p, nil
}

func checkTree(n Node) error {
	switch x := n.(type) {
	case nil:
		return domain.NewQueryError("nil", "missing node")
	case Term:
		return checkText(x.Name(), x.Text)
	case Phrase:
		return checkText(x.Name(), x.Text)
	case Autocomplete:
		return checkText(x.Name(), x.Text)
	case CommonTerms:
		if x.Cutoff <= 0 || x.Cutoff >= 1 {
			return domain.NewQueryError(x.Name(), "cutoff must be in (0, 1), got %v", x.Cutoff)
		}
		return checkText(x.Name(), x.Text)
	case And:
		return checkChildren(x.Name(), x.Children)
	case Or:
		return checkChildren(x.Name(), x.Children)
	case Not:
		return checkTree(x.Child)
	case Boost:
		if !(x.Weight > 0) {
			return domain.NewQueryError(x.Name(), "weight must be positive, got %v", x.Weight)
		}
		return checkTree(x.Child)
	case Filter:
		if x.Field == "" {
			return domain.NewQueryError(x.Name(), "field is required")
		}
		if !x.Op.IsValid() {
			return domain.NewQueryError(x.Name(), "unknown operator %q", x.Op)
		}
		return nil
	case MatchAll:
		return nil
	case Paginate, OrderBy:
		return domain.NewQueryError(n.Name(), "only allowed at the top of the query")
	}
	return domain.NewQueryError(fmt.Sprintf("%T", n), "unsupported node")
}

func checkText(node, text string) error {
	if len(Tokenize(text)) == 0 {
		return domain.NewQueryError(node, "text has no searchable tokens")
	}
	return nil
}

func checkChildren(node string, children []Node) error {
	if len(children) == 0 {
		return domain.NewQueryError(node, "no children")
	}
	for _, c := range children {
		if err := checkTree(c); err != nil {
			return err
		}
	}
	return nil
}
