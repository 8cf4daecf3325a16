package pool

import (
	"fmt"
	"sort"
	"sync"
)

// Manager holds named pools so an application can address several
// databases (a primary, replicas, a tenant shard) by name.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// Add registers a pool under a name. Registering a name twice is an
// error; the second pool is not adopted and stays the caller's to close.
func (m *Manager) Add(name string, p *Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[name]; ok {
		return fmt.Errorf("tessera: pool: %q already registered", name)
	}
	m.pools[name] = p
	return nil
}

// Open dials a new pool and registers it under a name.
func (m *Manager) Open(name, dialectName, dsn string, cfg Config) (*Pool, error) {
	p, err := Open(dialectName, dsn, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Add(name, p); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Get returns the pool registered under a name.
func (m *Manager) Get(name string) (*Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[name]
	return p, ok
}

// Names returns the registered pool names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts every registered pool and empties the manager. The first
// error is returned; all pools are closed regardless.
func (m *Manager) Close() error {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*Pool)
	m.mu.Unlock()

	var first error
	for _, p := range pools {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
