package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
)

// alias returns the read alias of an object type.
func (b *Backend) alias(objectType string) string {
	return b.cfg.IndexPrefix + objectType
}

// generationIndex returns the physical index name of one generation.
func (b *Backend) generationIndex(objectType string, gen int) string {
	return b.alias(objectType) + "_g" + strconv.Itoa(gen)
}

// Generations lists the physical generations of objectType and the one the alias targets.
func (b *Backend) Generations(ctx context.Context, objectType string) (int, []int, error) {
	alias := b.alias(objectType)
	prefix := alias + "_g"

	var reply map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	params := url.Values{"allow_no_indices": {"true"}, "expand_wildcards": {"open"}}
	if err := b.client.do(ctx, "generations", http.MethodGet, "/"+prefix+"*/_alias", params, nil, &reply); err != nil {
		if IsNotFound(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	live := 0
	var all []int
	for index, info := range reply {
		n, err := strconv.Atoi(strings.TrimPrefix(index, prefix))
		if err != nil || !strings.HasPrefix(index, prefix) || n <= 0 {
			continue
		}
		all = append(all, n)
		if _, ok := info.Aliases[alias]; ok {
			live = n
		}
	}
	slices.Sort(all)
	return live, all, nil
}

// CreateGeneration creates the physical index of one generation.
func (b *Backend) CreateGeneration(ctx context.Context, ot schema.ObjectType, gen int) error {
	index := b.generationIndex(ot.Key(), gen)
	return b.client.do(ctx, "create_index", http.MethodPut, "/"+index, nil, indexBody(ot, b.cfg), nil)
}

// WriteGeneration bulk-indexes docs into one generation.
func (b *Backend) WriteGeneration(ctx context.Context, objectType string, gen int, docs []document.Document) error {
	index := b.generationIndex(objectType, gen)
	var bb bulkBuilder
	for _, d := range docs {
		if d.Type() != objectType {
			return fmt.Errorf("document %s does not belong to %s", d.ID(), objectType)
		}
		if err := bb.index(index, d); err != nil {
			return err
		}
	}
	return b.bulk(ctx, "bulk_rebuild", &bb)
}

// SealGeneration restores the refresh interval and refreshes the generation.
func (b *Backend) SealGeneration(ctx context.Context, objectType string, gen int) error {
	index := b.generationIndex(objectType, gen)
	settings := map[string]any{"index": map[string]any{"refresh_interval": b.cfg.RefreshInterval}}
	if err := b.client.do(ctx, "seal", http.MethodPut, "/"+index+"/_settings", nil, settings, nil); err != nil {
		return err
	}
	return b.client.do(ctx, "seal", http.MethodPost, "/"+index+"/_refresh", nil, nil, nil)
}

// SwapGeneration repoints the alias in a single _aliases request.
func (b *Backend) SwapGeneration(ctx context.Context, objectType string, from, to int) error {
	alias := b.alias(objectType)
	var actions []any
	if from != 0 {
		actions = append(actions, map[string]any{"remove": map[string]any{"index": b.generationIndex(objectType, from), "alias": alias}})
	}
	if to != 0 {
		actions = append(actions, map[string]any{"add": map[string]any{"index": b.generationIndex(objectType, to), "alias": alias}})
	}
	if len(actions) == 0 {
		return nil
	}
	return b.client.do(ctx, "swap_alias", http.MethodPost, "/_aliases", nil, map[string]any{"actions": actions}, nil)
}

// DropGeneration deletes the physical index of one generation.
func (b *Backend) DropGeneration(ctx context.Context, objectType string, gen int) error {
	err := b.client.do(ctx, "drop_index", http.MethodDelete, "/"+b.generationIndex(objectType, gen), nil, nil, nil)
	if IsNotFound(err) {
		return lifecycle.ErrGenerationNotFound
	}
	return err
}
