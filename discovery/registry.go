// Package discovery implements the discovery worker and its in-memory
// peer registry. The wire transport used to learn about peers is an
// external collaborator; this package maintains the local view.
package discovery

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PeerStatus represents the freshness of a peer entry.
type PeerStatus uint8

const (
	// PeerStatusUnknown means the peer has never been seen
	PeerStatusUnknown PeerStatus = iota

	// PeerStatusAlive means the peer was seen recently
	PeerStatusAlive

	// PeerStatusStale means the peer has not been seen within the
	// staleness window
	PeerStatusStale
)

// String returns the string representation of PeerStatus.
func (s PeerStatus) String() string {
	switch s {
	case PeerStatusUnknown:
		return "unknown"
	case PeerStatusAlive:
		return "alive"
	case PeerStatusStale:
		return "stale"
	default:
		return "invalid"
	}
}

// Peer describes a known peer service.
type Peer struct {
	// Name uniquely identifies the peer
	Name string

	// Address is the peer's advertised endpoint
	Address string

	// Tags are peer labels for categorization
	Tags []string

	// Status is the current freshness classification
	Status PeerStatus

	// RegisteredAt is when the peer was first announced
	RegisteredAt time.Time

	// LastSeen is when the peer was last announced or touched
	LastSeen time.Time
}

// Registry is the in-memory peer table maintained by the discovery
// worker. Entries age into staleness when not refreshed.
type Registry struct {
	mu         sync.RWMutex
	peers      map[string]*Peer
	staleAfter time.Duration
}

// NewRegistry creates a registry whose entries go stale after the given
// duration without an announcement.
func NewRegistry(staleAfter time.Duration) *Registry {
	return &Registry{
		peers:      make(map[string]*Peer),
		staleAfter: staleAfter,
	}
}

// Announce registers a peer or refreshes an existing entry.
func (r *Registry) Announce(name, address string, tags ...string) error {
	if name == "" {
		return fmt.Errorf("peer name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.peers[name]; ok {
		existing.Address = address
		existing.Tags = tags
		existing.Status = PeerStatusAlive
		existing.LastSeen = now
		return nil
	}

	r.peers[name] = &Peer{
		Name:         name,
		Address:      address,
		Tags:         tags,
		Status:       PeerStatusAlive,
		RegisteredAt: now,
		LastSeen:     now,
	}
	return nil
}

// Remove drops a peer from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, name)
}

// Refresh reclassifies entries whose last announcement is older than
// the staleness window. It returns how many entries went stale.
func (r *Registry) Refresh(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var went int
	for _, p := range r.peers {
		if p.Status == PeerStatusAlive && now.Sub(p.LastSeen) > r.staleAfter {
			p.Status = PeerStatusStale
			went++
		}
	}
	return went
}

// Snapshot returns a copy of all known peers, sorted by name.
func (r *Registry) Snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, *p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
