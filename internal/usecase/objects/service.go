// Package objects writes source-of-truth objects and announces every change to the index.
package objects

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain/event"
)

// Service handles object CRUD.
type Service struct {
	repo   Repository
	types  TypeSource
	notify Notifier
}

// New creates an object service.
func New(repo Repository, types TypeSource, notify Notifier) *Service {
	return &Service{repo: repo, types: types, notify: notify}
}

// Put stores obj and emits a created or updated event.
// Returns the primary key and whether the object was created.
func (s *Service) Put(ctx context.Context, objectType string, obj map[string]any) (string, bool, error) {
	if _, err := s.types.Type(objectType); err != nil {
		return "", false, err
	}
	pk, created, err := s.repo.Put(ctx, objectType, obj)
	if err != nil {
		return "", false, fmt.Errorf("put object: %w", err)
	}

	kind := event.Updated
	if created {
		kind = event.Created
	}
	ev := event.Event{Kind: kind, ObjectType: objectType, PrimaryKey: pk, Instance: obj}
	if err := s.notify.OnObjectChanged(ctx, ev); err != nil {
		return pk, created, fmt.Errorf("notify %s: %w", kind, err)
	}
	return pk, created, nil
}

// Get returns one object or ErrNotFound.
func (s *Service) Get(ctx context.Context, objectType, pk string) (map[string]any, error) {
	if _, err := s.types.Type(objectType); err != nil {
		return nil, err
	}
	obj, err := s.repo.Get(ctx, objectType, pk)
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// Delete removes an object and emits a deleted event. Deleting an absent object still
// emits the event so a stale document is cleaned up.
func (s *Service) Delete(ctx context.Context, objectType, pk string) error {
	if _, err := s.types.Type(objectType); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, objectType, pk); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	ev := event.Event{Kind: event.Deleted, ObjectType: objectType, PrimaryKey: pk}
	if err := s.notify.OnObjectChanged(ctx, ev); err != nil {
		return fmt.Errorf("notify deleted: %w", err)
	}
	return nil
}
