// Package lifecycle manages generation-numbered physical indexes behind a per-type alias.
//
// Readers always query the alias, which points at exactly one live generation. A rebuild
// fills a fresh generation while the live one keeps serving, then repoints the alias in
// one atomic step and drops the old generation. A failed or cancelled rebuild drops the
// building generation and leaves the live one untouched.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/domain"
	"github.com/kailas-cloud/searchcore/internal/domain/document"
	"github.com/kailas-cloud/searchcore/internal/domain/schema"
	"github.com/kailas-cloud/searchcore/internal/metrics"
)

// cleanupTimeout bounds cleanup calls made after the caller's context is done.
const cleanupTimeout = 30 * time.Second

// Generations is the engine-specific part of the lifecycle: physical index primitives.
// Generation numbers start at 1; 0 means "none".
type Generations interface {
	// Generations returns the generation the alias points at and every existing generation.
	Generations(ctx context.Context, objectType string) (live int, all []int, err error)
	CreateGeneration(ctx context.Context, ot schema.ObjectType, gen int) error
	WriteGeneration(ctx context.Context, objectType string, gen int, docs []document.Document) error
	// SealGeneration makes a freshly built generation ready to serve.
	SealGeneration(ctx context.Context, objectType string, gen int) error
	// SwapGeneration atomically repoints the alias from one generation to another.
	// from=0 creates the alias; to=0 removes it.
	SwapGeneration(ctx context.Context, objectType string, from, to int) error
	DropGeneration(ctx context.Context, objectType string, gen int) error
}

type typeState struct {
	ot       schema.ObjectType
	state    State
	live     int
	building int
	next     int

	// writes is held shared by document writers and exclusively while the alias moves,
	// so no write lands only in a generation that is about to be dropped.
	writes sync.RWMutex
}

// Manager drives the per-type index state machine.
type Manager struct {
	gens      Generations
	guard     *Guard
	batchSize int
	logger    *zap.Logger

	mu    sync.RWMutex
	types map[string]*typeState
}

// NewManager creates a Manager. guard may be shared with other components.
func NewManager(gens Generations, guard *Guard, batchSize int, logger *zap.Logger) *Manager {
	if guard == nil {
		guard = NewGuard()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gens:      gens,
		guard:     guard,
		batchSize: batchSize,
		logger:    logger,
		types:     make(map[string]*typeState),
	}
}

// Init discovers the index of ot. Orphaned generations left by an interrupted rebuild are
// dropped. A type without a live generation gets an empty one so writes have a target.
func (m *Manager) Init(ctx context.Context, ot schema.ObjectType) error {
	key := ot.Key()
	live, all, err := m.gens.Generations(ctx, key)
	if err != nil {
		return fmt.Errorf("discover %s: %w", key, err)
	}

	maxGen := live
	for _, g := range all {
		maxGen = max(maxGen, g)
		if g == live {
			continue
		}
		m.logger.Warn("Dropping orphaned index generation",
			zap.String("object_type", key), zap.Int("generation", g))
		if err := m.gens.DropGeneration(ctx, key, g); err != nil {
			return fmt.Errorf("drop orphan %s generation %d: %w", key, g, err)
		}
	}

	st := &typeState{ot: ot, state: Live, live: live, next: maxGen + 1}
	if live == 0 {
		st.state = NoIndex
		gen := st.next
		if err := m.gens.CreateGeneration(ctx, ot, gen); err != nil {
			return fmt.Errorf("create %s generation %d: %w", key, gen, err)
		}
		if err := m.gens.SealGeneration(ctx, key, gen); err != nil {
			return fmt.Errorf("seal %s generation %d: %w", key, gen, err)
		}
		if err := m.gens.SwapGeneration(ctx, key, 0, gen); err != nil {
			return fmt.Errorf("alias %s generation %d: %w", key, gen, err)
		}
		st.state, st.live, st.next = Live, gen, gen+1
		m.logger.Info("Index created", zap.String("object_type", key), zap.Int("generation", gen))
	}

	m.mu.Lock()
	m.types[key] = st
	m.mu.Unlock()
	return nil
}

// Targets returns the generations a document write to objectType must reach: the live
// generation and, during a rebuild, the building one.
func (m *Manager) Targets(objectType string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.types[objectType]
	if !ok {
		return nil, domain.NewConfigError("index", "unknown object type %q", objectType)
	}
	if st.state == Dropped {
		return nil, domain.NewConfigError("index", "index of %q was dropped", objectType)
	}
	targets := []int{st.live}
	if st.building != 0 {
		targets = append(targets, st.building)
	}
	return targets, nil
}

// Write runs fn with the current write targets of objectType. The alias does not move
// while fn runs.
func (m *Manager) Write(objectType string, fn func(targets []int) error) error {
	m.mu.RLock()
	st, ok := m.types[objectType]
	m.mu.RUnlock()
	if !ok {
		return domain.NewConfigError("index", "unknown object type %q", objectType)
	}

	st.writes.RLock()
	defer st.writes.RUnlock()
	targets, err := m.Targets(objectType)
	if err != nil {
		return err
	}
	return fn(targets)
}

// Live returns the live generation of objectType, 0 when none.
func (m *Manager) Live(objectType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.types[objectType]; ok {
		return st.live
	}
	return 0
}

// Rebuild replaces the documents of ot with docs. Concurrent rebuilds of the same type fail
// with ErrRebuildInProgress.
func (m *Manager) Rebuild(ctx context.Context, ot schema.ObjectType, docs document.Stream) (err error) {
	key := ot.Key()
	release, err := m.guard.Acquire(key)
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues(key, "rejected").Inc()
		return err
	}
	defer release()

	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		metrics.RebuildsTotal.WithLabelValues(key, status).Inc()
	}()

	gen, old, err := m.start(ctx, ot)
	if err != nil {
		return err
	}

	start := time.Now()
	count := 0
	err = Batches(ctx, docs, m.batchSize, func(batch []document.Document) error {
		if werr := m.gens.WriteGeneration(ctx, key, gen, batch); werr != nil {
			return werr
		}
		count += len(batch)
		return nil
	})
	if err == nil {
		err = m.gens.SealGeneration(ctx, key, gen)
	}
	if err == nil {
		err = m.swap(ctx, key, old, gen)
	}
	if err != nil {
		return m.abort(ctx, key, gen, err)
	}

	m.logger.Info("Index rebuilt",
		zap.String("object_type", key),
		zap.Int("generation", gen),
		zap.Int("documents", count),
		zap.Duration("duration", time.Since(start)),
	)

	if old != 0 {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		if derr := m.gens.DropGeneration(cctx, key, old); derr != nil {
			m.logger.Warn("Failed to drop previous generation",
				zap.String("object_type", key), zap.Int("generation", old), zap.Error(derr))
		}
	}
	return nil
}

// swap repoints the alias to gen while no document write is in flight.
func (m *Manager) swap(ctx context.Context, key string, old, gen int) error {
	m.mu.RLock()
	st := m.types[key]
	m.mu.RUnlock()

	st.writes.Lock()
	defer st.writes.Unlock()
	if err := m.gens.SwapGeneration(ctx, key, old, gen); err != nil {
		return err
	}
	m.mu.Lock()
	st.state, st.live, st.building = Live, gen, 0
	m.mu.Unlock()
	return nil
}

func (m *Manager) start(ctx context.Context, ot schema.ObjectType) (gen, old int, err error) {
	key := ot.Key()

	m.mu.Lock()
	st, ok := m.types[key]
	if !ok {
		m.mu.Unlock()
		return 0, 0, domain.NewConfigError("index", "unknown object type %q", key)
	}
	if st.state == Dropped {
		m.mu.Unlock()
		return 0, 0, domain.NewConfigError("index", "index of %q was dropped", key)
	}
	gen, old = st.next, st.live
	st.next++
	m.mu.Unlock()

	if err := m.gens.CreateGeneration(ctx, ot, gen); err != nil {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		return 0, 0, errors.Join(
			fmt.Errorf("create %s generation %d: %w", key, gen, err),
			ignoreMissing(m.gens.DropGeneration(cctx, key, gen)),
		)
	}

	m.mu.Lock()
	st.building = gen
	st.state = Building
	m.mu.Unlock()
	return gen, old, nil
}

func (m *Manager) abort(ctx context.Context, key string, gen int, cause error) error {
	m.mu.Lock()
	st := m.types[key]
	st.building = 0
	st.state = Live
	if st.live == 0 {
		st.state = NoIndex
	}
	m.mu.Unlock()

	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	derr := m.gens.DropGeneration(cctx, key, gen)

	m.logger.Error("Index rebuild failed, previous generation kept",
		zap.String("object_type", key),
		zap.Int("generation", gen),
		zap.Error(cause),
	)
	if derr != nil {
		return errors.Join(fmt.Errorf("rebuild %s: %w", key, cause), fmt.Errorf("drop generation %d: %w", gen, derr))
	}
	return fmt.Errorf("rebuild %s: %w", key, cause)
}

// Drop removes the alias and every generation of objectType. The type cannot be written
// or rebuilt afterwards.
func (m *Manager) Drop(ctx context.Context, objectType string) error {
	release, err := m.guard.Acquire(objectType)
	if err != nil {
		return err
	}
	defer release()

	m.mu.RLock()
	st, ok := m.types[objectType]
	m.mu.RUnlock()
	if !ok {
		return domain.NewConfigError("index", "unknown object type %q", objectType)
	}
	st.writes.Lock()
	defer st.writes.Unlock()

	live, all, err := m.gens.Generations(ctx, objectType)
	if err != nil {
		return fmt.Errorf("discover %s: %w", objectType, err)
	}
	if live != 0 {
		if err := m.gens.SwapGeneration(ctx, objectType, live, 0); err != nil {
			return fmt.Errorf("remove %s alias: %w", objectType, err)
		}
	}
	var errs []error
	for _, g := range all {
		if err := m.gens.DropGeneration(ctx, objectType, g); err != nil {
			errs = append(errs, fmt.Errorf("drop generation %d: %w", g, err))
		}
	}

	m.mu.Lock()
	st.state, st.live, st.building = Dropped, 0, 0
	m.mu.Unlock()

	m.logger.Info("Index dropped", zap.String("object_type", objectType))
	return errors.Join(errs...)
}

// States reports the status of every known object type, sorted by type key.
func (m *Manager) States() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.types))
	for key, st := range m.types {
		out = append(out, Status{ObjectType: key, State: st.state, Live: st.live, Building: st.building})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ObjectType < out[j].ObjectType })
	return out
}

// Types returns the object types the manager knows.
func (m *Manager) Types() []schema.ObjectType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.types))
	for k := range m.types {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]schema.ObjectType, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.types[k].ot)
	}
	return out
}

// Type returns the registered object type for key.
func (m *Manager) Type(key string) (schema.ObjectType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.types[key]
	if !ok {
		return schema.ObjectType{}, false
	}
	return st.ot, true
}

func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// ErrGenerationNotFound is returned by Generations implementations for a missing generation.
var ErrGenerationNotFound = errors.New("generation not found")

func ignoreMissing(err error) error {
	if errors.Is(err, ErrGenerationNotFound) {
		return nil
	}
	return err
}
