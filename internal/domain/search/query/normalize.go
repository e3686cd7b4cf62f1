package query

// NegationNormalForm pushes Not nodes down to the leaves using De Morgan's laws and
// removes double negation. Boost weights under a Not are dropped since negated clauses
// never score. Not(Filter =) becomes Filter !=.
func NegationNormalForm(n Node) Node {
	return nnf(n, false)
}

func nnf(n Node, negate bool) Node {
	switch x := n.(type) {
	case Not:
		return nnf(x.Child, !negate)
	case And:
		children := nnfAll(x.Children, negate)
		if negate {
			return Or{Children: children}
		}
		return And{Children: children}
	case Or:
		children := nnfAll(x.Children, negate)
		if negate {
			return And{Children: children}
		}
		return Or{Children: children}
	case Boost:
		if negate {
			return nnf(x.Child, true)
		}
		return Boost{Child: nnf(x.Child, false), Weight: x.Weight}
	case Filter:
		if negate && x.Op == Eq {
			return Filter{Field: x.Field, Op: Ne, Value: x.Value}
		}
		if negate && x.Op == Ne {
			return Filter{Field: x.Field, Op: Eq, Value: x.Value}
		}
	}
	if negate {
		return Not{Child: n}
	}
	return n
}

func nnfAll(nodes []Node, negate bool) []Node {
	out := make([]Node, len(nodes))
	for i, c := range nodes {
		out[i] = nnf(c, negate)
	}
	return out
}

// Walk calls fn for n and each descendant in depth-first order until fn returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	switch x := n.(type) {
	case And:
		for _, c := range x.Children {
			if !Walk(c, fn) {
				return false
			}
		}
	case Or:
		for _, c := range x.Children {
			if !Walk(c, fn) {
				return false
			}
		}
	case Not:
		return Walk(x.Child, fn)
	case Boost:
		return Walk(x.Child, fn)
	case OrderBy:
		return Walk(x.Child, fn)
	case Paginate:
		return Walk(x.Child, fn)
	}
	return true
}

// Find returns the first node in n for which match reports true.
func Find(n Node, match func(Node) bool) (Node, bool) {
	var found Node
	Walk(n, func(c Node) bool {
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}
