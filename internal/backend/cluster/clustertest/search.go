package clustertest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
)

type searchRequest struct {
	Query          map[string]any   `json:"query"`
	From           int              `json:"from"`
	Size           *int             `json:"size"`
	Sort           []map[string]any `json:"sort"`
	TrackTotalHits any              `json:"track_total_hits"`
	TrackScores    bool             `json:"track_scores"`
}

type hit struct {
	id    string
	doc   map[string]any
	score float64
}

type badRequest struct{ typ, reason string }

func (e badRequest) Error() string { return e.typ + ": " + e.reason }

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "parsing_exception", err.Error())
		return
	}
	size := 10
	if req.Size != nil {
		size = *req.Size
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.resolve(chi.URLParam(r, "index"))
	if idx == nil {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+chi.URLParam(r, "index")+"]")
		return
	}
	if req.From+size > idx.maxWindow {
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", fmt.Sprintf(
			"Result window is too large, from + size must be less than or equal to: [%d] but was [%d].",
			idx.maxWindow, req.From+size))
		return
	}

	ev := evaluator{idx: idx, commonTerms: s.commonTerms}
	var hits []hit
	for id, doc := range idx.docs {
		ok, score, err := ev.eval(req.Query, doc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.typ, err.reason)
			return
		}
		if ok {
			hits = append(hits, hit{id: id, doc: doc, score: score})
		}
	}
	if err := ev.sort(hits, req.Sort); err != nil {
		writeError(w, http.StatusBadRequest, err.typ, err.reason)
		return
	}

	total := len(hits)
	page := []any{}
	for i := req.From; i < total && i < req.From+size; i++ {
		page = append(page, map[string]any{"_index": idx.name, "_id": hits[i].id, "_score": hits[i].score})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"took":      1,
		"timed_out": false,
		"hits": map[string]any{
			"total": map[string]any{"value": total, "relation": "eq"},
			"hits":  page,
		},
	})
}

type evaluator struct {
	idx         *index
	commonTerms bool
}

func (e evaluator) eval(q map[string]any, doc map[string]any) (bool, float64, *badRequest) {
	if len(q) != 1 {
		return false, 0, &badRequest{"parsing_exception", "query must have exactly one clause"}
	}
	for kind, raw := range q {
		body, _ := raw.(map[string]any)
		switch kind {
		case "match_all":
			return true, 1, nil
		case "match", "match_phrase":
			field, text, boost := fieldQuery(body)
			ok, score := e.text(kind, field, text, doc)
			return ok, score * boost, nil
		case "common":
			if !e.commonTerms {
				return false, 0, &badRequest{"parsing_exception", "unknown query [common]"}
			}
			field, text, boost := fieldQuery(body)
			ok, score := e.text("match", field, text, doc)
			return ok, score * boost, nil
		case "multi_match":
			return e.multiMatch(body, doc)
		case "term":
			for field, v := range body {
				if m, ok := v.(map[string]any); ok {
					v = m["value"]
				}
				return e.anyValue(field, doc, func(dv any) bool { return e.compare(field, dv, v) == 0 }), 1, nil
			}
		case "terms":
			for field, v := range body {
				vals, _ := v.([]any)
				return e.anyValue(field, doc, func(dv any) bool {
					for _, want := range vals {
						if e.compare(field, dv, want) == 0 {
							return true
						}
					}
					return false
				}), 1, nil
			}
		case "range":
			for field, v := range body {
				bounds, _ := v.(map[string]any)
				return e.anyValue(field, doc, func(dv any) bool { return e.inRange(field, dv, bounds) }), 1, nil
			}
		case "bool":
			return e.boolean(body, doc)
		}
		return false, 0, &badRequest{"parsing_exception", "unknown query [" + kind + "]"}
	}
	return false, 0, nil
}

func (e evaluator) boolean(body map[string]any, doc map[string]any) (bool, float64, *badRequest) {
	var score float64
	clauses := func(key string) []map[string]any {
		list, _ := body[key].([]any)
		out := make([]map[string]any, 0, len(list))
		for _, c := range list {
			if m, ok := c.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	must, filter, should, mustNot := clauses("must"), clauses("filter"), clauses("should"), clauses("must_not")

	for _, c := range must {
		ok, s, err := e.eval(c, doc)
		if err != nil || !ok {
			return false, 0, err
		}
		score += s
	}
	for _, c := range filter {
		ok, _, err := e.eval(c, doc)
		if err != nil || !ok {
			return false, 0, err
		}
	}
	for _, c := range mustNot {
		ok, _, err := e.eval(c, doc)
		if err != nil {
			return false, 0, err
		}
		if ok {
			return false, 0, nil
		}
	}
	minShould := 0
	if len(must) == 0 && len(filter) == 0 && len(should) > 0 {
		minShould = 1
	}
	if v, ok := body["minimum_should_match"].(float64); ok {
		minShould = int(v)
	}
	matched := 0
	for _, c := range should {
		ok, s, err := e.eval(c, doc)
		if err != nil {
			return false, 0, err
		}
		if ok {
			matched++
			score += s
		}
	}
	if matched < minShould {
		return false, 0, nil
	}
	return true, score, nil
}

func (e evaluator) multiMatch(body map[string]any, doc map[string]any) (bool, float64, *badRequest) {
	text, _ := body["query"].(string)
	typ, _ := body["type"].(string)
	boost := number(body["boost"], 1)
	fields, _ := body["fields"].([]any)

	best, found := 0.0, false
	for _, raw := range fields {
		spec, _ := raw.(string)
		field, weight := splitBoost(spec)
		var ok bool
		var score float64
		switch typ {
		case "phrase":
			ok, score = e.text("match_phrase", field, text, doc)
		case "bool_prefix":
			ok, score = e.prefix(field, text, doc)
		case "", "best_fields":
			ok, score = e.text("match", field, text, doc)
		default:
			return false, 0, &badRequest{"parsing_exception", "unsupported multi_match type [" + typ + "]"}
		}
		if ok {
			found = true
			best = math.Max(best, score*weight)
		}
	}
	return found, best * boost, nil
}

// text evaluates match and match_phrase against the analyzed field text.
func (e evaluator) text(kind, field, text string, doc map[string]any) (bool, float64) {
	want := query.Tokenize(text)
	have := query.Tokenize(fieldText(doc[field]))
	if len(want) == 0 || len(have) == 0 {
		return false, 0
	}
	if kind == "match_phrase" {
		for i := 0; i+len(want) <= len(have); i++ {
			if equalTokens(have[i:i+len(want)], want) {
				return true, float64(len(want))
			}
		}
		return false, 0
	}
	matched := 0
	for _, t := range want {
		if containsToken(have, t) {
			matched++
		}
	}
	return matched > 0, float64(matched)
}

// prefix evaluates bool_prefix: leading tokens are terms, the last one a prefix.
func (e evaluator) prefix(field, text string, doc map[string]any) (bool, float64) {
	want := query.Tokenize(text)
	have := query.Tokenize(fieldText(doc[field]))
	if len(want) == 0 {
		return false, 0
	}
	matched := 0
	for _, t := range want[:len(want)-1] {
		if containsToken(have, t) {
			matched++
		}
	}
	last := want[len(want)-1]
	for _, h := range have {
		if strings.HasPrefix(h, last) {
			matched++
			break
		}
	}
	return matched > 0, float64(matched)
}

func (e evaluator) anyValue(field string, doc map[string]any, pred func(any) bool) bool {
	switch v := doc[field].(type) {
	case nil:
		return false
	case []any:
		for _, x := range v {
			if pred(x) {
				return true
			}
		}
		return false
	default:
		return pred(v)
	}
}

func (e evaluator) inRange(field string, dv any, bounds map[string]any) bool {
	for op, bound := range bounds {
		c := e.compare(field, dv, bound)
		if c == incomparable {
			return false
		}
		switch op {
		case "gt":
			if c <= 0 {
				return false
			}
		case "gte":
			if c < 0 {
				return false
			}
		case "lt":
			if c >= 0 {
				return false
			}
		case "lte":
			if c > 0 {
				return false
			}
		}
	}
	return true
}

const incomparable = math.MinInt

// compare orders a document value against a query value using the field mapping.
func (e evaluator) compare(field string, dv, qv any) int {
	switch e.idx.mappings[field] {
	case "boolean":
		a, ok1 := asBool(dv)
		b, ok2 := asBool(qv)
		if !ok1 || !ok2 {
			return incomparable
		}
		return boolCmp(a, b)
	case "double":
		a, ok1 := dv.(float64)
		b, ok2 := qv.(float64)
		if !ok1 || !ok2 {
			return incomparable
		}
		return floatCmp(a, b)
	case "date":
		a, ok1 := asMillis(dv)
		b, ok2 := asMillis(qv)
		if !ok1 || !ok2 {
			return incomparable
		}
		return floatCmp(a, b)
	}
	return strings.Compare(asString(dv), asString(qv))
}

func (e evaluator) sort(hits []hit, keys []map[string]any) *badRequest {
	type key struct {
		field string
		desc  bool
	}
	var ks []key
	for _, k := range keys {
		for field, raw := range k {
			opts, _ := raw.(map[string]any)
			order, _ := opts["order"].(string)
			if field != "_score" {
				if _, ok := e.idx.mappings[field]; !ok {
					return &badRequest{"query_shard_exception", "No mapping found for [" + field + "] in order to sort on"}
				}
			}
			ks = append(ks, key{field: field, desc: order == "desc"})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, k := range ks {
			var c int
			if k.field == "_score" {
				c = floatCmp(hits[i].score, hits[j].score)
			} else {
				a, aok := firstValue(hits[i].doc[k.field])
				b, bok := firstValue(hits[j].doc[k.field])
				switch {
				case !aok && !bok:
					c = 0
				case !aok:
					return false
				case !bok:
					return true
				default:
					c = e.compare(k.field, a, b)
				}
			}
			if c == 0 || c == incomparable {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return hits[i].id < hits[j].id
	})
	return nil
}

func fieldQuery(body map[string]any) (string, string, float64) {
	for field, raw := range body {
		switch v := raw.(type) {
		case string:
			return field, v, 1
		case map[string]any:
			text, _ := v["query"].(string)
			return field, text, number(v["boost"], 1)
		}
	}
	return "", "", 1
}

func splitBoost(spec string) (string, float64) {
	field, w, found := strings.Cut(spec, "^")
	weight := 1.0
	if found {
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			weight = f
		}
	}
	if base, sub, ok := strings.Cut(field, "."); ok && strings.HasPrefix(sub, "_") {
		field = base
	}
	return field, weight
}

func fieldText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, asString(p))
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	}
	return asString(v)
}

func firstValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case []any:
		if len(x) == 0 {
			return nil, false
		}
		return x[0], true
	}
	return v, true
}

func number(v any, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	}
	return false, false
}

func asMillis(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return 0, false
		}
		return float64(t.UnixMilli()), true
	}
	return 0, false
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func floatCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsToken(tokens []string, t string) bool {
	for _, x := range tokens {
		if x == t {
			return true
		}
	}
	return false
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
