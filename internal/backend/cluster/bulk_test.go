package cluster

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/searchcore/internal/backend/backendtest"
	"github.com/kailas-cloud/searchcore/internal/domain"
)

func TestBulkBuilder_NDJSON(t *testing.T) {
	var bb bulkBuilder
	doc := backendtest.Articles[0].Document()
	if err := bb.index("idx_g1", doc); err != nil {
		t.Fatal(err)
	}
	if err := bb.delete("idx_g2", "article:2"); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(string(bb.bytes()), "\n"), "\n")
	if len(lines) != 3 || bb.n != 2 {
		t.Fatalf("lines = %d, n = %d", len(lines), bb.n)
	}
	if lines[0] != `{"index":{"_id":"article:1","_index":"idx_g1"}}` {
		t.Errorf("index meta = %s", lines[0])
	}
	var src map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &src); err != nil {
		t.Fatal(err)
	}
	if src["doc_id"] != "article:1" || src["doc_type"] != "article" || src["created"] != "2024-01-10T12:00:00Z" {
		t.Errorf("source = %v", src)
	}
	if lines[2] != `{"delete":{"_id":"article:2","_index":"idx_g2"}}` {
		t.Errorf("delete meta = %s", lines[2])
	}
}

func parseReply(t *testing.T, raw string) bulkReply {
	t.Helper()
	var r bulkReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBulkReply_Err(t *testing.T) {
	ok := parseReply(t, `{"errors":false,"items":[{"index":{"_index":"a","_id":"1","status":201}}]}`)
	if err := ok.err("put"); err != nil {
		t.Errorf("ok reply: %v", err)
	}

	missingDelete := parseReply(t, `{"errors":true,"items":[{"delete":{"_index":"a","_id":"1","status":404,"result":"not_found"}}]}`)
	if err := missingDelete.err("delete"); err != nil {
		t.Errorf("missing delete: %v", err)
	}

	rejected := parseReply(t, `{"errors":true,"items":[
		{"index":{"_index":"a","_id":"1","status":201}},
		{"index":{"_index":"a","_id":"2","status":400,"error":{"type":"strict_dynamic_mapping_exception","reason":"nope"}}}]}`)
	err := rejected.err("put")
	if err == nil || errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("rejected item err = %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "strict_dynamic_mapping_exception") {
		t.Errorf("reason lost: %v", err)
	}

	throttled := parseReply(t, `{"errors":true,"items":[{"index":{"_index":"a","_id":"1","status":429,"error":{"type":"es_rejected_execution_exception","reason":"queue full"}}}]}`)
	if err := throttled.err("put"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("throttled err = %v", err)
	}
}
