package clustertest

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
)

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1<<20), 64<<20)

	s.mu.Lock()
	defer s.mu.Unlock()

	var items []any
	failed := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var action map[string]bulkMeta
		if err := json.Unmarshal([]byte(line), &action); err != nil {
			writeError(w, http.StatusBadRequest, "illegal_argument_exception", "malformed action: "+err.Error())
			return
		}
		for kind, meta := range action {
			var src map[string]any
			if kind == "index" {
				if !sc.Scan() {
					writeError(w, http.StatusBadRequest, "illegal_argument_exception", "missing source")
					return
				}
				if err := json.Unmarshal(sc.Bytes(), &src); err != nil {
					writeError(w, http.StatusBadRequest, "illegal_argument_exception", "malformed source: "+err.Error())
					return
				}
			}
			item, ok := s.apply(kind, meta, src)
			if !ok {
				failed = true
			}
			items = append(items, map[string]any{kind: item})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": failed, "items": items})
}

// apply performs one bulk action. Caller holds s.mu.
func (s *Server) apply(kind string, meta bulkMeta, src map[string]any) (map[string]any, bool) {
	item := map[string]any{"_index": meta.Index, "_id": meta.ID}
	fail := func(status int, typ, reason string) (map[string]any, bool) {
		item["status"] = status
		item["error"] = map[string]any{"type": typ, "reason": reason}
		return item, false
	}

	idx := s.resolve(meta.Index)
	if idx == nil {
		return fail(http.StatusNotFound, "index_not_found_exception", "no such index ["+meta.Index+"]")
	}
	item["_index"] = idx.name

	switch kind {
	case "index":
		for field := range src {
			if _, ok := idx.mappings[field]; !ok {
				return fail(http.StatusBadRequest, "strict_dynamic_mapping_exception",
					"mapping set to strict, dynamic introduction of ["+field+"] is not allowed")
			}
		}
		created := !idx.exists(meta.ID)
		idx.pending[meta.ID] = src
		item["status"] = http.StatusOK
		item["result"] = "updated"
		if created {
			item["status"] = http.StatusCreated
			item["result"] = "created"
		}
		return item, true
	case "delete":
		if !idx.exists(meta.ID) {
			item["status"] = http.StatusNotFound
			item["result"] = "not_found"
			return item, true
		}
		idx.pending[meta.ID] = nil
		item["status"] = http.StatusOK
		item["result"] = "deleted"
		return item, true
	}
	return fail(http.StatusBadRequest, "illegal_argument_exception", "unsupported action ["+kind+"]")
}

// exists reports whether id exists, taking unrefreshed writes into account.
func (i *index) exists(id string) bool {
	if doc, ok := i.pending[id]; ok {
		return doc != nil
	}
	_, ok := i.docs[id]
	return ok
}
