package router

import (
	"sync"

	"percolator/internal/common"
)

// Registry is the governance-maintained list of Slabs the Router is willing
// to route to, plus each Slab's committed risk parameters. Grounded on
// state/registry.rs's SlabRegistry (array of SlabEntry, register/find/
// deactivate/update_risk_params), generalized from a fixed MAX_SLABS array
// to a Go map keyed by SlabID.
type Registry struct {
	mu      sync.RWMutex
	entries map[common.SlabID]*SlabEntry
	order   []common.SlabID
}

// NewRegistry returns an empty slab registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[common.SlabID]*SlabEntry)}
}

// Register adds a new slab entry, failing if the slab is already
// registered or the registry is at MaxSlabsInRegistry, mirroring
// register_slab's capacity check.
func (r *Registry) Register(entry SlabEntry) *common.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.SlabID]; ok {
		return common.New(common.InvalidInstruction, "slab %s already registered", entry.SlabID)
	}
	if len(r.entries) >= MaxSlabsInRegistry {
		return common.New(common.PoolFull, "registry full at %d slabs", MaxSlabsInRegistry)
	}
	entry.Active = true
	cp := entry
	r.entries[entry.SlabID] = &cp
	r.order = append(r.order, entry.SlabID)
	return nil
}

// Find returns the active entry for slabID, grounded on find_slab (which
// only returns entries where active is true).
func (r *Registry) Find(slabID common.SlabID) (*SlabEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[slabID]
	if !ok || !e.Active {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// ValidateVersion reports whether slabID is registered, active, and its
// stored version hash matches want.
func (r *Registry) ValidateVersion(slabID common.SlabID, want [32]byte) bool {
	e, ok := r.Find(slabID)
	return ok && e.VersionHash == want
}

// Deactivate flips a registered slab's Active flag off, grounded on
// deactivate_slab.
func (r *Registry) Deactivate(slabID common.SlabID) *common.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[slabID]
	if !ok {
		return common.New(common.InvalidInstrument, "slab %s not registered", slabID)
	}
	e.Active = false
	return nil
}

// UpdateRiskParams overwrites IMR/MMR for an already-registered slab,
// grounded on update_risk_params.
func (r *Registry) UpdateRiskParams(slabID common.SlabID, imrBps, mmrBps uint64) *common.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[slabID]
	if !ok {
		return common.New(common.InvalidInstrument, "slab %s not registered", slabID)
	}
	e.IMRBps, e.MMRBps = imrBps, mmrBps
	return nil
}

// Active returns every currently-active slab's ID, in registration order.
func (r *Registry) Active() []common.SlabID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.SlabID, 0, len(r.order))
	for _, id := range r.order {
		if r.entries[id].Active {
			out = append(out, id)
		}
	}
	return out
}
