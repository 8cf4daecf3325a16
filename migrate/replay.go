package migrate

import (
	"fmt"

	"github.com/tessera-orm/tessera/schema"
)

// workspace is a mutable view of a snapshot used while replaying
// operations. Snapshots themselves stay immutable.
type workspace struct {
	tables map[string]*schema.Table
}

func newWorkspace(s *schema.Snapshot) *workspace {
	w := &workspace{tables: make(map[string]*schema.Table)}
	if s != nil {
		for _, t := range s.Tables {
			w.tables[t.Name] = t.Clone()
		}
	}
	return w
}

func (w *workspace) snapshot() *schema.Snapshot {
	tables := make([]*schema.Table, 0, len(w.tables))
	for _, t := range w.tables {
		tables = append(tables, t)
	}
	return schema.NewSnapshot(tables...)
}

func (w *workspace) table(name string) (*schema.Table, error) {
	t, ok := w.tables[name]
	if !ok {
		return nil, fmt.Errorf("tessera: table %s does not exist", name)
	}
	return t, nil
}

func (w *workspace) drop(name string) error {
	if _, ok := w.tables[name]; !ok {
		return fmt.Errorf("tessera: table %s does not exist", name)
	}
	delete(w.tables, name)
	return nil
}

func (w *workspace) dropColumn(t *schema.Table, name string) error {
	if !t.DropColumn(name) {
		return fmt.Errorf("tessera: column %s.%s does not exist", t.Name, name)
	}
	return nil
}

func (w *workspace) renameColumn(t *schema.Table, from, to string) error {
	if t.HasColumn(to) {
		return fmt.Errorf("tessera: column %s.%s already exists", t.Name, to)
	}
	if !t.RenameColumn(from, to) {
		return fmt.Errorf("tessera: column %s.%s does not exist", t.Name, from)
	}
	return nil
}

func (w *workspace) dropIndex(t *schema.Table, name string) error {
	for i, idx := range t.Indexes {
		if idx.Name == name {
			t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("tessera: index %s on %s does not exist", name, t.Name)
}

func (w *workspace) dropConstraint(t *schema.Table, name string) error {
	for i, c := range t.Constraints {
		if c.Name == name {
			t.Constraints = append(t.Constraints[:i], t.Constraints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("tessera: constraint %s on %s does not exist", name, t.Name)
}

// Replay applies operation lists in order to a base snapshot and returns
// the resulting snapshot. A nil base means an empty schema.
func Replay(base *schema.Snapshot, migrations ...*Migration) (*schema.Snapshot, error) {
	w := newWorkspace(base)
	for _, m := range migrations {
		for _, op := range m.Operations {
			if err := op.apply(w); err != nil {
				return nil, fmt.Errorf("replaying %s (%s): %w", m.ID, op.Describe(), err)
			}
		}
	}
	return w.snapshot(), nil
}
