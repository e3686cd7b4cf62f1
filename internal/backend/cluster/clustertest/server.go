// Package clustertest provides an in-process fake of the Elasticsearch/OpenSearch REST
// surface used by the cluster backend: index and alias management, _bulk, _refresh and
// _search with the query clauses the compiler emits.
package clustertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// DefaultMaxResultWindow mirrors the engine default.
const DefaultMaxResultWindow = 10000

type index struct {
	name      string
	mappings  map[string]string
	docs      map[string]map[string]any
	pending   map[string]map[string]any // nil value = pending delete
	maxWindow int
}

// Server is a fake cluster.
type Server struct {
	mu           sync.Mutex
	version      string
	distribution string
	commonTerms  bool
	indices      map[string]*index
	aliases      map[string]string
	unavailable  bool
	requests     []string
}

// New creates a fake speaking the given dialect name
// (elasticsearch7, elasticsearch8 or opensearch2).
func New(dialect string) *Server {
	s := &Server{indices: map[string]*index{}, aliases: map[string]string{}}
	switch dialect {
	case "elasticsearch7":
		s.version, s.commonTerms = "7.17.18", true
	case "opensearch2":
		s.version, s.distribution, s.commonTerms = "2.11.1", "opensearch", true
	default:
		s.version = "8.12.2"
	}
	return s
}

// Start serves a fake over HTTP until the test ends and returns it with its URL.
func Start(t testing.TB, dialect string) (*Server, string) {
	t.Helper()
	s := New(dialect)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

// SetUnavailable makes every request fail with 503 while true.
func (s *Server) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Indices returns the physical index names, sorted.
func (s *Server) Indices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.indices))
	for name := range s.indices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AliasTarget returns the index an alias points at.
func (s *Server) AliasTarget(alias string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases[alias]
}

// DocCount returns the number of visible documents in an index or alias.
func (s *Server) DocCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.resolve(name)
	if idx == nil {
		return 0
	}
	return len(idx.docs)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/", s.handleRoot)
	r.Post("/_bulk", s.handleBulk)
	r.Post("/_aliases", s.handleAliases)
	r.Put("/{index}", s.handleCreate)
	r.Delete("/{index}", s.handleDelete)
	r.Get("/{index}/_alias", s.handleGetAlias)
	r.Put("/{index}/_settings", s.handleSettings)
	r.Post("/{index}/_refresh", s.handleRefresh)
	r.Post("/{index}/_search", s.handleSearch)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		down := s.unavailable
		s.mu.Unlock()
		if down {
			writeError(w, http.StatusServiceUnavailable, "cluster_block_exception", "cluster unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	version := map[string]any{"number": s.version}
	if s.distribution != "" {
		version["distribution"] = s.distribution
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": "fake", "version": version, "tagline": "You Know, for Search"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "index")
	var body struct {
		Settings struct {
			Index struct {
				MaxResultWindow int `json:"max_result_window"`
			} `json:"index"`
		} `json:"settings"`
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indices[name]; exists {
		writeError(w, http.StatusBadRequest, "resource_already_exists_exception", "index ["+name+"] already exists")
		return
	}
	if _, isAlias := s.aliases[name]; isAlias {
		writeError(w, http.StatusBadRequest, "invalid_index_name_exception", "an alias with the same name exists")
		return
	}
	idx := &index{
		name:      name,
		mappings:  map[string]string{},
		docs:      map[string]map[string]any{},
		pending:   map[string]map[string]any{},
		maxWindow: body.Settings.Index.MaxResultWindow,
	}
	if idx.maxWindow <= 0 {
		idx.maxWindow = DefaultMaxResultWindow
	}
	for field, p := range body.Mappings.Properties {
		idx.mappings[field] = p.Type
	}
	s.indices[name] = idx
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": name})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "index")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[name]; !ok {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+name+"]")
		return
	}
	delete(s.indices, name)
	for alias, target := range s.aliases {
		if target == name {
			delete(s.aliases, alias)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *Server) handleGetAlias(w http.ResponseWriter, r *http.Request) {
	pattern := chi.URLParam(r, "index")
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]any{}
	for name := range s.indices {
		if !matchPattern(pattern, name) {
			continue
		}
		aliases := map[string]any{}
		for alias, target := range s.aliases {
			if target == name {
				aliases[alias] = map[string]any{}
			}
		}
		out[name] = map[string]any{"aliases": aliases}
	}
	if len(out) == 0 && !strings.Contains(pattern, "*") {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+pattern+"]")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAliases(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actions []map[string]struct {
			Index string `json:"index"`
			Alias string `json:"alias"`
		} `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// validate everything first so the request applies atomically
	for _, action := range body.Actions {
		for kind, a := range action {
			if _, ok := s.indices[a.Index]; !ok {
				writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index ["+a.Index+"]")
				return
			}
			if kind == "remove" && s.aliases[a.Alias] != a.Index {
				writeError(w, http.StatusNotFound, "aliases_not_found_exception", "aliases ["+a.Alias+"] missing")
				return
			}
			if kind != "add" && kind != "remove" {
				writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported action ["+kind+"]")
				return
			}
		}
	}
	for _, action := range body.Actions {
		for kind, a := range action {
			if kind == "remove" {
				delete(s.aliases, a.Alias)
			}
		}
	}
	for _, action := range body.Actions {
		for kind, a := range action {
			if kind == "add" {
				s.aliases[a.Alias] = a.Index
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolve(chi.URLParam(r, "index")) == nil {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.resolve(chi.URLParam(r, "index"))
	if idx == nil {
		writeError(w, http.StatusNotFound, "index_not_found_exception", "no such index")
		return
	}
	for id, doc := range idx.pending {
		if doc == nil {
			delete(idx.docs, id)
		} else {
			idx.docs[id] = doc
		}
	}
	idx.pending = map[string]map[string]any{}
	writeJSON(w, http.StatusOK, map[string]any{"_shards": map[string]any{"total": 1, "successful": 1, "failed": 0}})
}

// resolve returns the index behind an index or alias name. Caller holds s.mu.
func (s *Server) resolve(name string) *index {
	if target, ok := s.aliases[name]; ok {
		name = target
	}
	return s.indices[name]
}

func matchPattern(pattern, name string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	writeJSON(w, status, map[string]any{
		"error":  map[string]any{"type": typ, "reason": reason},
		"status": status,
	})
}
