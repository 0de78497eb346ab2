// Package stats exposes per-server rad_data/rad_error state and daemon
// self-monitoring counters, for Prometheus scraping, the -x one-shot mode,
// and the SIGUSR2 diagnostic dump (spec.md §6, SPEC_FULL.md DOMAIN STACK).
package stats

import (
	"sync"

	"github.com/facebook/radclock/algo"
)

// ServerSnapshot is one server's published state at the moment of capture.
type ServerSnapshot struct {
	ServerID string
	Data     algo.RadData
	Err      algo.RadError
	Preferred bool
}

// Registry holds the latest snapshot for every configured server. PROC
// updates it after each processed stamp; the Prometheus exporter,
// the tablewriter dump, and the -x one-shot mode all read from it.
type Registry struct {
	mu        sync.RWMutex
	snapshots map[string]ServerSnapshot
	preferred string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{snapshots: make(map[string]ServerSnapshot)}
}

// Update records serverID's latest rad_data/rad_error.
func (r *Registry) Update(serverID string, data algo.RadData, errData algo.RadError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[serverID] = ServerSnapshot{ServerID: serverID, Data: data, Err: errData}
}

// SetPreferred records which server is currently elected preferred (§4.6).
func (r *Registry) SetPreferred(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred = serverID
}

// Snapshot returns a stable copy of every server's latest state, preferred
// flag included, ordered by nothing in particular — callers sort if needed.
func (r *Registry) Snapshot() []ServerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerSnapshot, 0, len(r.snapshots))
	for id, snap := range r.snapshots {
		snap.Preferred = id == r.preferred
		out = append(out, snap)
	}
	return out
}

// AllWarmedUp reports whether every tracked server has cleared WARMUP,
// feeding the -x one-shot mode's exit condition.
func (r *Registry) AllWarmedUp(serverIDs []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(serverIDs) == 0 {
		return false
	}
	for _, id := range serverIDs {
		snap, ok := r.snapshots[id]
		if !ok || snap.Data.Status.Has(algo.StatusWarmup) {
			return false
		}
	}
	return true
}
