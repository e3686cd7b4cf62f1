package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/db"
	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/event"
)

// --- Mocks ---

// memList is an in-process stand-in for the Redis list and SETNX keys.
type memList struct {
	mu     sync.Mutex
	lists  map[string][]string
	keys   map[string]string
	popErr error
}

func newMemList() *memList {
	return &memList{lists: map[string][]string{}, keys: map[string]string{}}
}

func (m *memList) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *memList) BRPop(ctx context.Context, key string, _ time.Duration) (string, error) {
	m.mu.Lock()
	if m.popErr != nil {
		m.mu.Unlock()
		return "", m.popErr
	}
	l := m.lists[key]
	if len(l) > 0 {
		v := l[len(l)-1]
		m.lists[key] = l[:len(l)-1]
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return "", db.ErrKeyNotFound
	}
}

func (m *memList) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *memList) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value
	return true, nil
}

func (m *memList) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memList) len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[key])
}

type recorder struct {
	mu         sync.Mutex
	events     []event.Event
	reconciles []string
	requested  []string
	eventErr   error
}

func (r *recorder) OnObjectChanged(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.eventErr
}

func (r *recorder) Reconcile(_ context.Context, objectType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciles = append(r.reconciles, objectType)
	return nil
}

func (r *recorder) RequestReconcile(_ context.Context, objectType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = append(r.requested, objectType)
	return nil
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

const queueKey = "test:events"

func created(pk string) event.Event {
	return event.Event{Kind: event.Created, ObjectType: "note", PrimaryKey: pk, Instance: map[string]any{"id": pk}}
}

// --- Publisher tests ---

func TestPublisher_OnObjectChanged(t *testing.T) {
	list := newMemList()
	pub := NewPublisher(list, list, "test:", "events", zap.NewNop())

	if err := pub.OnObjectChanged(context.Background(), created("1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := list.len(queueKey); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	msg, err := decode(list.lists[queueKey][0])
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != KindEvent || msg.Event.PrimaryKey != "1" || msg.Event.Instance["id"] != "1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestPublisher_RejectsInvalidEvent(t *testing.T) {
	list := newMemList()
	pub := NewPublisher(list, list, "test:", "events", nil)
	err := pub.OnObjectChanged(context.Background(), event.Event{Kind: event.Deleted, ObjectType: "note"})
	if !errors.Is(err, domain.ErrMapping) {
		t.Errorf("err = %v, want ErrMapping", err)
	}
	if list.len(queueKey) != 0 {
		t.Error("invalid event was queued")
	}
}

func TestPublisher_ReconcileDebounced(t *testing.T) {
	list := newMemList()
	pub := NewPublisher(list, list, "test:", "events", nil)
	ctx := context.Background()

	for range 3 {
		if err := pub.RequestReconcile(ctx, "note"); err != nil {
			t.Fatal(err)
		}
	}
	if got := list.len(queueKey); got != 1 {
		t.Errorf("queued %d reconciles, want 1", got)
	}
	if err := pub.RequestReconcile(ctx, "task"); err != nil {
		t.Fatal(err)
	}
	if got := list.len(queueKey); got != 2 {
		t.Errorf("queued %d reconciles, want 2", got)
	}
}

// --- Worker tests ---

func newWorker(list *memList, rec *recorder, workers int) *Worker {
	return NewWorker(list, rec, rec, rec, WorkerConfig{
		Prefix:     "test:",
		QueueKey:   "events",
		Workers:    workers,
		PopTimeout: 10 * time.Millisecond,
	}, zap.NewNop())
}

func TestWorker_DrainsQueue(t *testing.T) {
	list := newMemList()
	rec := &recorder{}
	pub := NewPublisher(list, list, "test:", "events", nil)
	for _, pk := range []string{"1", "2", "3", "4", "5"} {
		if err := pub.OnObjectChanged(context.Background(), created(pk)); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newWorker(list, rec, 3).Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.eventCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if got := rec.eventCount(); got != 5 {
		t.Errorf("handled %d events, want 5", got)
	}
}

func TestWorker_ReconcileReleasesClaim(t *testing.T) {
	list := newMemList()
	rec := &recorder{}
	pub := NewPublisher(list, list, "test:", "events", nil)
	ctx := context.Background()
	if err := pub.RequestReconcile(ctx, "note"); err != nil {
		t.Fatal(err)
	}

	raw, err := list.BRPop(ctx, queueKey, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	newWorker(list, rec, 1).handle(ctx, raw, zap.NewNop())

	if len(rec.reconciles) != 1 || rec.reconciles[0] != "note" {
		t.Errorf("reconciles = %v", rec.reconciles)
	}
	if _, held := list.keys["test:reconcile:note"]; held {
		t.Error("reconcile claim still held")
	}
}

func TestWorker_EventFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTrigger bool
	}{
		{"transient", domain.Unavailable("store", "get", errors.New("down")), true},
		{"mapping", domain.ErrMapping, false},
		{"config", domain.NewConfigError("schema", "unknown object type %q", "note"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{eventErr: tt.err}
			ev := created("1")
			raw, err := encode(Message{Kind: KindEvent, Event: &ev})
			if err != nil {
				t.Fatal(err)
			}
			newWorker(newMemList(), rec, 1).handle(context.Background(), raw, zap.NewNop())
			if got := len(rec.requested) == 1; got != tt.wantTrigger {
				t.Errorf("reconcile requested = %v, want %v", got, tt.wantTrigger)
			}
		})
	}
}

func TestWorker_DropsMalformed(t *testing.T) {
	rec := &recorder{}
	w := newWorker(newMemList(), rec, 1)
	for _, raw := range []string{"not json", `{"kind":"event"}`, `{"kind":"reconcile"}`, `{"kind":"other"}`} {
		w.handle(context.Background(), raw, zap.NewNop())
	}
	if len(rec.events) != 0 || len(rec.reconciles) != 0 {
		t.Errorf("malformed message dispatched: %+v", rec)
	}
}

func TestWorker_PopErrorBacksOff(t *testing.T) {
	list := newMemList()
	list.popErr = errors.New("connection refused")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := newWorker(list, &recorder{}, 2).Run(ctx); err != nil {
		t.Errorf("Run returned %v", err)
	}
}
