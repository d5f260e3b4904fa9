package session

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

// membership counts connections per display name. Duplicate names are
// accepted, so a name stays listed until its last connection leaves.
type membership struct {
	order  []string
	counts map[string]int
}

func (m *membership) add(name string) {
	if m.counts[name] == 0 {
		m.order = append(m.order, name)
	}
	m.counts[name]++
}

func (m *membership) remove(name string) bool {
	n, ok := m.counts[name]
	if !ok {
		return false
	}
	if n > 1 {
		m.counts[name] = n - 1
		return true
	}
	delete(m.counts, name)
	for i, v := range m.order {
		if v == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *membership) snapshot() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *membership) connections() int {
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*membership
}

// Registry is the process-wide index of live participants per session.
// Mutations on one session id are serialised by that id's shard lock.
type Registry struct {
	shards []*shard
}

func NewRegistry() *Registry { return NewShardedRegistry(defaultShards) }

func NewShardedRegistry(n int) *Registry {
	if n <= 0 {
		n = defaultShards
	}
	r := &Registry{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]*membership)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	return r.shards[xxhash.Sum64String(id)%uint64(len(r.shards))]
}

// AddParticipant creates the entry if needed and returns the updated members.
func (r *Registry) AddParticipant(id, name string) []string {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		m = &membership{counts: make(map[string]int)}
		s.entries[id] = m
	}
	m.add(name)
	return m.snapshot()
}

// RemoveParticipant removes one connection of name. found is false when the
// session or the name was not registered. emptied reports that this call
// deleted the entry.
func (r *Registry) RemoveParticipant(id, name string) (members []string, emptied, found bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		return []string{}, false, false
	}
	if !m.remove(name) {
		return m.snapshot(), false, false
	}
	if len(m.counts) == 0 {
		delete(s.entries, id)
		return []string{}, true, true
	}
	return m.snapshot(), false, true
}

// MembersOf returns a copy of the current members, empty when there is no entry.
func (r *Registry) MembersOf(id string) []string {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		return []string{}
	}
	return m.snapshot()
}

// Delete drops the entry outright and returns how many connections it held.
func (r *Registry) Delete(id string) int {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[id]
	if !ok {
		return 0
	}
	delete(s.entries, id)
	return m.connections()
}

func (r *Registry) Has(id string) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Sessions counts live entries across all shards.
func (r *Registry) Sessions() int {
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}
