package session

import "sync"

// Registry holds the live machines of this process, keyed by session id.
// Sessions are fully independent; the registry only provides lookup, so one
// RWMutex suffices. Machines are removed after a successful commit.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine
}

func NewRegistry() *Registry {
	return &Registry{machines: make(map[string]*Machine)}
}

func (r *Registry) Add(m *Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[m.SessionID()] = m
}

func (r *Registry) Get(sessionID string) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[sessionID]
	return m, ok
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, sessionID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}
