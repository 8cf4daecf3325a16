package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source reads and writes migration files in a single directory. Files
// are named "<id>.yaml" and never rewritten once saved.
type Source struct {
	dir string
}

// NewSource returns a source over the given directory.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the directory the source reads from.
func (s *Source) Dir() string { return s.dir }

// Load reads every migration file and returns the migrations ordered so
// that dependencies come before their dependents, ID order breaking ties.
// A missing directory loads as an empty set.
func (s *Source) Load() ([]*Migration, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tessera: reading migrations directory: %w", err)
	}
	var migs []*Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("tessera: reading %s: %w", entry.Name(), err)
		}
		m, err := DecodeMigration(data)
		if err != nil {
			return nil, err
		}
		migs = append(migs, m)
	}
	return orderByDependencies(migs)
}

// Save writes the migration to "<id>.yaml", creating the directory if
// needed. Saving over an existing file is refused since applied files
// must stay immutable.
func (s *Source) Save(m *Migration) (string, error) {
	path := filepath.Join(s.dir, m.ID+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("tessera: migration file %s already exists", path)
	}
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("tessera: writing %s: %w", path, err)
	}
	return path, nil
}

// orderByDependencies topologically sorts migrations over their declared
// dependencies, falling back to ID order among candidates so the result
// is deterministic. Unknown dependencies and cycles are errors.
func orderByDependencies(migs []*Migration) ([]*Migration, error) {
	byID := make(map[string]*Migration, len(migs))
	for _, m := range migs {
		if _, ok := byID[m.ID]; ok {
			return nil, fmt.Errorf("tessera: duplicate migration id %s", m.ID)
		}
		byID[m.ID] = m
	}

	indegree := make(map[string]int, len(migs))
	dependents := make(map[string][]string, len(migs))
	ids := make([]string, 0, len(migs))
	for _, m := range migs {
		ids = append(ids, m.ID)
		indegree[m.ID] += 0
		for _, dep := range m.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("tessera: migration %s depends on unknown migration %s", m.ID, dep)
			}
			indegree[m.ID]++
			dependents[dep] = append(dependents[dep], m.ID)
		}
	}
	sort.Strings(ids)

	var ready []string
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	out := make([]*Migration, 0, len(migs))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		out = append(out, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(out) != len(migs) {
		var stuck []string
		for _, id := range ids {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("tessera: dependency cycle among migrations: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}
