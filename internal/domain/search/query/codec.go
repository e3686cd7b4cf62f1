package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

// MaxDepth bounds the nesting of decoded trees.
const MaxDepth = 32

type textJSON struct {
	Field  string  `json:"field,omitempty"`
	Text   string  `json:"text"`
	Cutoff float64 `json:"cutoff,omitempty"`
}

type filterJSON struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

type boostJSON struct {
	Weight float64         `json:"weight"`
	Query  json.RawMessage `json:"query"`
}

type orderJSON struct {
	Keys  []sortKeyJSON   `json:"keys"`
	Query json.RawMessage `json:"query"`
}

type sortKeyJSON struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

type pageJSON struct {
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
	Query  json.RawMessage `json:"query"`
}

// Decode parses the JSON form of a query tree. Every node is an object with exactly one
// key naming its kind, e.g. {"and":[{"term":{"field":"title","text":"go"}}]}.
// Numbers are kept as json.Number until validation coerces them.
func Decode(data []byte) (Node, error) {
	return decode(data, 0)
}

func decode(data []byte, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, domain.NewQueryError("query", "nesting deeper than %d", MaxDepth)
	}
	var obj map[string]json.RawMessage
	if err := unmarshal(data, &obj); err != nil {
		return nil, domain.NewQueryError("query", "invalid JSON: %v", err)
	}
	if len(obj) != 1 {
		return nil, domain.NewQueryError("query", "node must have exactly one key, got %d", len(obj))
	}

	for kind, raw := range obj {
		switch kind {
		case "term", "phrase", "autocomplete", "common_terms":
			var t textJSON
			if err := unmarshal(raw, &t); err != nil {
				return nil, domain.NewQueryError(kind, "invalid body: %v", err)
			}
			switch kind {
			case "term":
				return Term{Field: t.Field, Text: t.Text}, nil
			case "phrase":
				return Phrase{Field: t.Field, Text: t.Text}, nil
			case "autocomplete":
				return Autocomplete{Field: t.Field, Text: t.Text}, nil
			default:
				return CommonTerms{Field: t.Field, Text: t.Text, Cutoff: t.Cutoff}, nil
			}
		case "and", "or":
			var items []json.RawMessage
			if err := unmarshal(raw, &items); err != nil {
				return nil, domain.NewQueryError(kind, "expected a list: %v", err)
			}
			children := make([]Node, 0, len(items))
			for _, it := range items {
				c, err := decode(it, depth+1)
				if err != nil {
					return nil, err
				}
				children = append(children, c)
			}
			if kind == "and" {
				return And{Children: children}, nil
			}
			return Or{Children: children}, nil
		case "not":
			c, err := decode(raw, depth+1)
			if err != nil {
				return nil, err
			}
			return Not{Child: c}, nil
		case "filter":
			var f filterJSON
			if err := unmarshal(raw, &f); err != nil {
				return nil, domain.NewQueryError(kind, "invalid body: %v", err)
			}
			return Filter(f), nil
		case "boost":
			var b boostJSON
			if err := unmarshal(raw, &b); err != nil {
				return nil, domain.NewQueryError(kind, "invalid body: %v", err)
			}
			c, err := decode(b.Query, depth+1)
			if err != nil {
				return nil, err
			}
			return Boost{Child: c, Weight: b.Weight}, nil
		case "order_by":
			var o orderJSON
			if err := unmarshal(raw, &o); err != nil {
				return nil, domain.NewQueryError(kind, "invalid body: %v", err)
			}
			c, err := decodeOptional(o.Query, depth+1)
			if err != nil {
				return nil, err
			}
			keys := make([]SortKey, len(o.Keys))
			for i, k := range o.Keys {
				keys[i] = SortKey(k)
			}
			return OrderBy{Child: c, Keys: keys}, nil
		case "paginate":
			var p pageJSON
			if err := unmarshal(raw, &p); err != nil {
				return nil, domain.NewQueryError(kind, "invalid body: %v", err)
			}
			c, err := decodeOptional(p.Query, depth+1)
			if err != nil {
				return nil, err
			}
			return Paginate{Child: c, Offset: p.Offset, Limit: p.Limit}, nil
		case "match_all":
			return MatchAll{}, nil
		default:
			return nil, domain.NewQueryError(kind, "unknown node kind")
		}
	}
	return nil, domain.NewQueryError("query", "empty node")
}

func decodeOptional(raw json.RawMessage, depth int) (Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return MatchAll{}, nil
	}
	return decode(raw, depth)
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Encode renders n in the form accepted by Decode.
func Encode(n Node) ([]byte, error) {
	v, err := encode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func encode(n Node) (map[string]any, error) {
	switch x := n.(type) {
	case Term:
		return map[string]any{"term": textJSON{Field: x.Field, Text: x.Text}}, nil
	case Phrase:
		return map[string]any{"phrase": textJSON{Field: x.Field, Text: x.Text}}, nil
	case Autocomplete:
		return map[string]any{"autocomplete": textJSON{Field: x.Field, Text: x.Text}}, nil
	case CommonTerms:
		return map[string]any{"common_terms": textJSON(x)}, nil
	case And:
		children, err := encodeAll(x.Children)
		return map[string]any{"and": children}, err
	case Or:
		children, err := encodeAll(x.Children)
		return map[string]any{"or": children}, err
	case Not:
		c, err := encode(x.Child)
		return map[string]any{"not": c}, err
	case Filter:
		return map[string]any{"filter": filterJSON(x)}, nil
	case Boost:
		c, err := encode(x.Child)
		return map[string]any{"boost": map[string]any{"weight": x.Weight, "query": c}}, err
	case OrderBy:
		c, err := encode(x.Child)
		keys := make([]sortKeyJSON, len(x.Keys))
		for i, k := range x.Keys {
			keys[i] = sortKeyJSON(k)
		}
		return map[string]any{"order_by": map[string]any{"keys": keys, "query": c}}, err
	case Paginate:
		c, err := encode(x.Child)
		return map[string]any{"paginate": map[string]any{"offset": x.Offset, "limit": x.Limit, "query": c}}, err
	case MatchAll:
		return map[string]any{"match_all": map[string]any{}}, nil
	}
	return nil, fmt.Errorf("encode: unsupported node %T", n)
}

func encodeAll(nodes []Node) ([]map[string]any, error) {
	out := make([]map[string]any, len(nodes))
	for i, c := range nodes {
		v, err := encode(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
