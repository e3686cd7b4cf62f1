package lifecycle

import (
	"fmt"
	"sync"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

// Guard admits at most one rebuild per object type.
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Acquire claims objectType. It fails with ErrRebuildInProgress when the type is already
// claimed. The returned release func is idempotent.
func (g *Guard) Acquire(objectType string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[objectType]; busy {
		return nil, fmt.Errorf("%w: %s", domain.ErrRebuildInProgress, objectType)
	}
	g.active[objectType] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, objectType)
			g.mu.Unlock()
		})
	}, nil
}

// Active reports whether a rebuild of objectType is in flight.
func (g *Guard) Active(objectType string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[objectType]
	return busy
}
