package searchcore

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	"github.com/kailas-cloud/searchcore/internal/lifecycle"
	"github.com/kailas-cloud/searchcore/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/searchcore/internal/usecase/search"
)

// Query is a backend-neutral query tree. Build one with SearchBuilder or ParseQuery.
type Query = query.Node

// Page is a ranked page of hydrated objects.
type Page = searchuc.Page

// RebuildReport describes one finished rebuild.
type RebuildReport = rebuild.Report

// IndexStatus is the lifecycle state of one object type's index.
type IndexStatus = lifecycle.Status

// ParseQuery decodes the JSON query format accepted by the HTTP API.
func ParseQuery(data []byte) (Query, error) {
	q, err := query.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return q, nil
}

// Search runs q against objectType and hydrates the hits as plain objects.
func (c *Client) Search(ctx context.Context, objectType string, q Query) (Page, error) {
	page, err := c.app.Search.Search(ctx, objectType, q)
	if err != nil {
		return Page{}, fmt.Errorf("search %s: %w", objectType, err)
	}
	return page, nil
}

// SearchText matches text against every searchable field of objectType.
func (c *Client) SearchText(ctx context.Context, objectType, text string, offset, limit int) (Page, error) {
	page, err := c.app.Search.SearchText(ctx, objectType, text, offset, limit)
	if err != nil {
		return Page{}, fmt.Errorf("search %s: %w", objectType, err)
	}
	return page, nil
}

// Rebuild reindexes objectType from the object store.
func (c *Client) Rebuild(ctx context.Context, objectType string) (RebuildReport, error) {
	return c.app.Rebuild.Rebuild(ctx, objectType)
}

// RebuildAll reindexes every declared type, continuing past failures.
func (c *Client) RebuildAll(ctx context.Context) ([]RebuildReport, error) {
	return c.app.Rebuild.RebuildAll(ctx)
}

// Status reports the lifecycle state of every index.
func (c *Client) Status() []IndexStatus {
	return c.app.Backends.States()
}
