package cluster

import (
	"testing"
	"time"

	"github.com/kailas-cloud/searchcore/internal/backend/backendtest"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
)

func TestIndexBody(t *testing.T) {
	cfg := Config{Shards: 2, Replicas: 1, MaxResultWindow: 500}
	body := indexBody(backendtest.ArticleType(), cfg)

	settings := body["settings"].(map[string]any)["index"].(map[string]any)
	if settings["refresh_interval"] != "-1" || settings["max_result_window"] != 500 || settings["number_of_shards"] != 2 {
		t.Errorf("settings = %v", settings)
	}

	mappings := body["mappings"].(map[string]any)
	if mappings["dynamic"] != "strict" {
		t.Errorf("dynamic = %v", mappings["dynamic"])
	}
	props := mappings["properties"].(map[string]any)
	want := map[string]string{
		schema.DocIDField:   "keyword",
		schema.DocTypeField: "keyword",
		"title":             "text",
		"author":            "search_as_you_type",
		"tags":              "keyword",
		"published":         "boolean",
		"rating":            "double",
		"created":           "date",
	}
	for field, typ := range want {
		m, ok := props[field].(map[string]any)
		if !ok || m["type"] != typ {
			t.Errorf("%s mapping = %v, want type %s", field, props[field], typ)
		}
	}
}

func TestWireValue(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := wireValue(ts); got != int64(1704067200000) {
		t.Errorf("time = %v", got)
	}
	if got := wireValue("x"); got != "x" {
		t.Errorf("string = %v", got)
	}
}
