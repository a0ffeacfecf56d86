// Package registry holds the set of LIFX devices seen on the network.
//
// Records are keyed by device identity and replaced whole on every update,
// so a reader never observes an identity paired with a stale address.
// Nothing is removed automatically; callers that want a TTL call Prune.
package registry

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/muurk/lifxlab/internal/protocol"
)

// Device is one discovered device
type Device struct {
	Identity  protocol.Target `json:"identity"`
	Addr      netip.AddrPort  `json:"addr"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
}

// Registry is a concurrency-safe map of devices keyed by identity
type Registry struct {
	mu      sync.RWMutex
	devices map[protocol.Target]Device
	clock   clock.Clock
}

// New creates an empty registry using the wall clock
func New() *Registry {
	return NewWithClock(clock.New())
}

// NewWithClock creates an empty registry that timestamps records with c
func NewWithClock(c clock.Clock) *Registry {
	return &Registry{
		devices: make(map[protocol.Target]Device),
		clock:   c,
	}
}

// Upsert records that id was seen at addr.
// Returns true only when id was not already present.
func (r *Registry) Upsert(id protocol.Target, addr netip.AddrPort) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	existing, exists := r.devices[id]

	record := Device{
		Identity:  id,
		Addr:      addr,
		FirstSeen: now,
		LastSeen:  now,
	}
	if exists {
		record.FirstSeen = existing.FirstSeen
	}
	r.devices[id] = record

	return !exists
}

// Get returns the device with the given identity
func (r *Registry) Get(id protocol.Target) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	return d, ok
}

// Snapshot returns a point-in-time copy of all devices, sorted by identity
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Identity < devices[j].Identity
	})
	return devices
}

// Len returns the number of devices
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Remove deletes a device and returns what was stored for it.
// Returns false if it was not present.
func (r *Registry) Remove(id protocol.Target) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	delete(r.devices, id)
	return d, true
}

// Prune removes devices not seen within olderThan and returns them sorted
// by identity. A non-positive olderThan removes nothing.
func (r *Registry) Prune(olderThan time.Duration) []Device {
	if olderThan <= 0 {
		return nil
	}

	r.mu.Lock()
	cutoff := r.clock.Now().Add(-olderThan)
	var removed []Device
	for id, d := range r.devices {
		if d.LastSeen.Before(cutoff) {
			removed = append(removed, d)
			delete(r.devices, id)
		}
	}
	r.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Identity < removed[j].Identity
	})
	return removed
}
