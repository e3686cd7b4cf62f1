// Package search runs index queries and hydrates the hits from the object store.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/logger"
)

// Item is one hydrated search hit.
type Item struct {
	ID         string         `json:"id"`
	PrimaryKey string         `json:"pk"`
	Score      float64        `json:"score"`
	Object     map[string]any `json:"object,omitempty"`
}

// Page is a ranked page of items plus the total number of index matches.
type Page struct {
	Items  []Item `json:"items"`
	Total  int    `json:"total"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// Service runs searches and hydrates hits from the object store.
type Service struct {
	types   TypeSource
	index   Searcher
	objects ObjectStore
	limits  query.Limits
	logger  *zap.Logger
}

// New creates a search service. objects may be nil, in which case hits are not hydrated.
func New(types TypeSource, index Searcher, objects ObjectStore, limits query.Limits, l *zap.Logger) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{types: types, index: index, objects: objects, limits: limits, logger: l}
}

// Search runs q against objectType. Hits whose object no longer exists are dropped from
// the page; Total still counts them.
func (s *Service) Search(ctx context.Context, objectType string, q query.Node) (Page, error) {
	if _, err := s.types.Type(objectType); err != nil {
		return Page{}, err
	}
	plan, err := query.NewPlan(q, s.limits)
	if err != nil {
		return Page{}, err
	}

	res, err := s.index.Search(ctx, objectType, q)
	if err != nil {
		return Page{}, fmt.Errorf("search %s: %w", objectType, err)
	}

	page := Page{Items: make([]Item, 0, len(res.Hits)), Total: res.Total, Offset: plan.Offset, Limit: plan.Limit}
	pks := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		_, pk, err := document.ParseID(h.ID)
		if err != nil {
			continue
		}
		page.Items = append(page.Items, Item{ID: h.ID, PrimaryKey: pk, Score: h.Score})
		pks = append(pks, pk)
	}
	if s.objects == nil || len(pks) == 0 {
		return page, nil
	}

	objs, err := s.objects.GetMany(ctx, objectType, pks)
	if err != nil {
		return Page{}, fmt.Errorf("hydrate %s: %w", objectType, err)
	}
	kept := page.Items[:0]
	for _, it := range page.Items {
		obj, ok := objs[it.PrimaryKey]
		if !ok {
			logger.FromContextOr(ctx, s.logger).Debug("Stale hit dropped",
				zap.String("object_type", objectType),
				zap.String("doc_id", it.ID),
			)
			continue
		}
		it.Object = obj
		kept = append(kept, it)
	}
	page.Items = kept
	return page, nil
}

// SearchText matches free text against every searchable field. Empty text matches all
// documents.
func (s *Service) SearchText(ctx context.Context, objectType, text string, offset, limit int) (Page, error) {
	var n query.Node = query.MatchAll{}
	if t := strings.TrimSpace(text); t != "" {
		n = query.Term{Text: t}
	}
	return s.Search(ctx, objectType, query.Page(n, offset, limit))
}
