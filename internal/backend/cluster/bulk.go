package cluster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
)

// bulkBuilder accumulates NDJSON bulk actions.
type bulkBuilder struct {
	buf bytes.Buffer
	n   int
}

func (b *bulkBuilder) index(index string, doc document.Document) error {
	meta, err := json.Marshal(map[string]any{"index": map[string]any{"_index": index, "_id": doc.ID()}})
	if err != nil {
		return err
	}
	src, err := json.Marshal(source(doc))
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.ID(), err)
	}
	b.buf.Write(meta)
	b.buf.WriteByte('\n')
	b.buf.Write(src)
	b.buf.WriteByte('\n')
	b.n++
	return nil
}

func (b *bulkBuilder) delete(index, id string) error {
	meta, err := json.Marshal(map[string]any{"delete": map[string]any{"_index": index, "_id": id}})
	if err != nil {
		return err
	}
	b.buf.Write(meta)
	b.buf.WriteByte('\n')
	b.n++
	return nil
}

func (b *bulkBuilder) bytes() []byte { return b.buf.Bytes() }

// bulkReply is the _bulk response.
type bulkReply struct {
	Errors bool                       `json:"errors"`
	Items  []map[string]bulkItemReply `json:"items"`
}

type bulkItemReply struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Result string `json:"result"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// err summarises failed items. Deletes of absent documents are not failures. Any
// throttled or server-side item failure makes the whole batch BackendUnavailable.
func (r bulkReply) err(op string) error {
	if !r.Errors {
		return nil
	}
	var msgs []string
	retryable := false
	for _, item := range r.Items {
		for action, res := range item {
			if res.Status < http.StatusMultipleChoices {
				continue
			}
			if action == "delete" && res.Status == http.StatusNotFound {
				continue
			}
			if transient(res.Status) {
				retryable = true
			}
			reason := ""
			if res.Error != nil {
				reason = res.Error.Type + ": " + res.Error.Reason
			}
			msgs = append(msgs, fmt.Sprintf("%s %s/%s: %d %s", action, res.Index, res.ID, res.Status, reason))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	err := fmt.Errorf("%d bulk items failed: %s", len(msgs), strings.Join(msgs, "; "))
	if retryable {
		return domain.Unavailable(Name, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
