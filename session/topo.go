package session

import (
	"sort"

	"github.com/tessera-orm/tessera/schema"
)

// sortByDependency orders tables so that foreign key parents come before
// their children. Only dependencies between the given tables count; a cycle
// leaves the remaining tables in name order, which is as good an order as
// any once inserts cannot be serialized cleanly.
func sortByDependency(tables []*schema.Table) []*schema.Table {
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	// deps[child] = set of parents within the batch.
	deps := make(map[string]map[string]struct{}, len(tables))
	for _, t := range tables {
		deps[t.Name] = make(map[string]struct{})
		for _, fk := range t.ForeignKeys() {
			if fk.Ref.Table == t.Name {
				continue // self-reference
			}
			if _, in := byName[fk.Ref.Table]; in {
				deps[t.Name][fk.Ref.Table] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)

	ordered := make([]*schema.Table, 0, len(tables))
	done := make(map[string]struct{}, len(tables))
	for len(done) < len(tables) {
		progressed := false
		for _, name := range names {
			if _, ok := done[name]; ok {
				continue
			}
			ready := true
			for parent := range deps[name] {
				if _, ok := done[parent]; !ok {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, byName[name])
				done[name] = struct{}{}
				progressed = true
			}
		}
		if !progressed {
			// Cycle: emit the rest in name order.
			for _, name := range names {
				if _, ok := done[name]; !ok {
					ordered = append(ordered, byName[name])
					done[name] = struct{}{}
				}
			}
		}
	}
	return ordered
}
