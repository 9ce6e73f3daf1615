package hc2sdk

import (
	"sync"
	"time"

	"github.com/hc2-project/hc2/pkg/hc2types"
)

// SyncStatus is the RouteTable's freshness state: a two-value enum instead
// of the ad-hoc "status.fresh"/"status.stale" string literals.
type SyncStatus int

const (
	StatusFresh SyncStatus = iota
	StatusStale
)

func (s SyncStatus) String() string {
	if s == StatusFresh {
		return "fresh"
	}
	return "stale"
}

// SyncInfo is what ready() returns: the last sync time, the known service
// names, and whether that sync succeeded.
type SyncInfo struct {
	ReadyAt  time.Time
	Services []string
	Status   SyncStatus
}

// routeTable is the SDK-local snapshot of profiles used to dispatch calls.
type routeTable struct {
	mu       sync.RWMutex
	profiles map[string]hc2types.ServiceProfile
	lastSync time.Time
	status   SyncStatus

	lastResult SyncInfo
	hasSynced  bool
}

func newRouteTable() *routeTable {
	return &routeTable{profiles: make(map[string]hc2types.ServiceProfile)}
}

// rebuild atomically clears and repopulates the table. It is the single
// critical section clear-then-fill requires.
func (rt *routeTable) rebuild(profiles []hc2types.ServiceProfile) []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.profiles = make(map[string]hc2types.ServiceProfile, len(profiles))
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		rt.profiles[p.Name] = p
		names = append(names, p.Name)
	}
	rt.lastSync = time.Now()
	rt.status = StatusFresh
	return names
}

func (rt *routeTable) markStale() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.status = StatusStale
}

func (rt *routeTable) lookup(serviceName string) (hc2types.ServiceProfile, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	p, ok := rt.profiles[serviceName]
	return p, ok
}

func (rt *routeTable) snapshotNames() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	names := make([]string, 0, len(rt.profiles))
	for name := range rt.profiles {
		names = append(names, name)
	}
	return names
}
