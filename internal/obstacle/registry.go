package obstacle

import (
	"sync"

	"github.com/qppath/qppath/pkg/core"
)

// Projector maps a world box onto the reference line.
type Projector interface {
	SLBoundary(box core.Box) core.SLBoundary
}

// Registry holds the obstacles tracked for the current cycle in insertion
// order. The corridor builder is order dependent, so Obstacles always
// returns them in the order they were first added.
type Registry struct {
	mu    sync.Mutex
	order []string
	byID  map[string]core.Obstacle
}

func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]core.Obstacle),
	}
}

// Add inserts o, or replaces an obstacle with the same ID in place.
func (r *Registry) Add(o core.Obstacle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[o.ID]; !ok {
		r.order = append(r.order, o.ID)
	}
	r.byID[o.ID] = o
}

// Remove drops the obstacle with the given ID. It reports whether one was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(id string) (core.Obstacle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	return o, ok
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byID = make(map[string]core.Obstacle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Obstacles returns a snapshot in insertion order.
func (r *Registry) Obstacles() []core.Obstacle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Obstacle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// FromBox builds an obstacle from a world-frame box.
func FromBox(id string, static bool, box core.Box, p Projector) core.Obstacle {
	return core.Obstacle{
		ID:       id,
		Static:   static,
		Boundary: p.SLBoundary(box),
	}
}
