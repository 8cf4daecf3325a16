package schema

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// ConstraintKind identifies the flavor of a table constraint.
type ConstraintKind string

// Table constraint kinds.
const (
	KindUnique     ConstraintKind = "unique"
	KindCheck      ConstraintKind = "check"
	KindForeignKey ConstraintKind = "foreign-key"
)

// RefAction is a referential action on a foreign key.
type RefAction string

// Referential actions.
const (
	NoAction RefAction = "NO ACTION"
	Restrict RefAction = "RESTRICT"
	Cascade  RefAction = "CASCADE"
	SetNull  RefAction = "SET NULL"
)

// Reference is the target side of a foreign key.
type Reference struct {
	Table    string    `msgpack:"table"`
	Columns  []string  `msgpack:"columns"`
	OnDelete RefAction `msgpack:"on_delete,omitempty"`
	OnUpdate RefAction `msgpack:"on_update,omitempty"`
}

// Constraint is a named table-level constraint.
type Constraint struct {
	Kind    ConstraintKind `msgpack:"kind"`
	Name    string         `msgpack:"name"`
	Columns []string       `msgpack:"columns,omitempty"`
	Expr    string         `msgpack:"expr,omitempty"` // check expression
	Ref     *Reference     `msgpack:"ref,omitempty"`  // foreign key target
}

// Unique returns a named multi-column unique constraint.
func Unique(name string, columns ...string) *Constraint {
	return &Constraint{Kind: KindUnique, Name: name, Columns: columns}
}

// Check returns a named check constraint over the given expression.
func Check(name, expr string) *Constraint {
	return &Constraint{Kind: KindCheck, Name: name, Expr: expr}
}

// ForeignKey returns a named foreign key from the given columns to ref.
func ForeignKey(name string, columns []string, ref *Reference) *Constraint {
	return &Constraint{Kind: KindForeignKey, Name: name, Columns: columns, Ref: ref}
}

// Index describes a secondary index.
type Index struct {
	Name      string   `msgpack:"name"`
	Columns   []string `msgpack:"columns"`
	Unique    bool     `msgpack:"unique,omitempty"`
	Predicate string   `msgpack:"predicate,omitempty"` // partial index condition
}

// NewIndex returns an index over the given columns. If name is empty a
// deterministic name is derived from the column list when the index is
// attached to a table.
func NewIndex(name string, columns ...string) *Index {
	return &Index{Name: name, Columns: columns}
}

// SetUnique marks the index unique.
func (i *Index) SetUnique() *Index {
	i.Unique = true
	return i
}

// Where restricts the index to rows matching the given condition. Only
// dialects with partial index support accept it.
func (i *Index) Where(predicate string) *Index {
	i.Predicate = predicate
	return i
}

// Table describes one relational table. Tables are assembled with the
// chainable Add* methods at startup and treated as read-only afterwards.
type Table struct {
	Name        string        `msgpack:"name"`
	Columns     []*Column     `msgpack:"columns"`
	PrimaryKey  []string      `msgpack:"primary_key,omitempty"`
	Indexes     []*Index      `msgpack:"indexes,omitempty"`
	Constraints []*Constraint `msgpack:"constraints,omitempty"`

	lookup map[string]int `msgpack:"-"`
}

// NewTable returns a new empty table.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// AddColumns appends columns to the table.
func (t *Table) AddColumns(columns ...*Column) *Table {
	t.Columns = append(t.Columns, columns...)
	t.lookup = nil
	return t
}

// SetPrimaryKey sets the primary key column list.
func (t *Table) SetPrimaryKey(columns ...string) *Table {
	t.PrimaryKey = columns
	return t
}

// AddIndexes appends indexes to the table, deriving a snake_case name
// for any index that has none.
func (t *Table) AddIndexes(indexes ...*Index) *Table {
	for _, idx := range indexes {
		if idx.Name == "" {
			idx.Name = deriveName(t.Name, idx.Columns, "idx")
		}
		t.Indexes = append(t.Indexes, idx)
	}
	return t
}

// AddConstraints appends table-level constraints, deriving a snake_case
// name for any constraint that has none.
func (t *Table) AddConstraints(constraints ...*Constraint) *Table {
	for _, c := range constraints {
		if c.Name == "" {
			switch c.Kind {
			case KindUnique:
				c.Name = deriveName(t.Name, c.Columns, "key")
			case KindForeignKey:
				c.Name = deriveName(t.Name, c.Columns, "fkey")
			case KindCheck:
				c.Name = deriveName(t.Name, nil, "check")
			}
		}
		t.Constraints = append(t.Constraints, c)
	}
	return t
}

func deriveName(table string, columns []string, suffix string) string {
	parts := append([]string{table}, columns...)
	return inflect.Underscore(strings.Join(append(parts, suffix), "_"))
}

// Use applies mixins, appending their columns and indexes.
func (t *Table) Use(mixins ...Mixin) *Table {
	for _, m := range mixins {
		t.AddColumns(m.Columns()...)
		t.AddIndexes(m.Indexes()...)
	}
	return t
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// ColumnIndex returns the ordinal position of the named column. The ordinal
// is stable for the lifetime of the table and is what sessions key entity
// values by.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t.lookup == nil {
		t.lookup = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.lookup[c.Name] = i
		}
	}
	i, ok := t.lookup[name]
	return i, ok
}

// DropColumn removes the named column, reporting whether it existed.
func (t *Table) DropColumn(name string) bool {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return false
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	t.lookup = nil
	return true
}

// RenameColumn renames a column, updating primary key, index, and
// constraint references to it. It reports whether the column existed.
func (t *Table) RenameColumn(from, to string) bool {
	i, ok := t.ColumnIndex(from)
	if !ok {
		return false
	}
	t.Columns[i].Name = to
	t.lookup = nil
	rename := func(names []string) {
		for j, n := range names {
			if n == from {
				names[j] = to
			}
		}
	}
	rename(t.PrimaryKey)
	for _, idx := range t.Indexes {
		rename(idx.Columns)
	}
	for _, c := range t.Constraints {
		rename(c.Columns)
	}
	return true
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// ForeignKeys returns the table's foreign key constraints.
func (t *Table) ForeignKeys() []*Constraint {
	var fks []*Constraint
	for _, c := range t.Constraints {
		if c.Kind == KindForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

// Index returns the index with the given name.
func (t *Table) Index(name string) (*Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}

// Constraint returns the constraint with the given name.
func (t *Table) Constraint(name string) (*Constraint, bool) {
	for _, c := range t.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	tt := &Table{Name: t.Name}
	for _, c := range t.Columns {
		tt.Columns = append(tt.Columns, c.Clone())
	}
	tt.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	for _, idx := range t.Indexes {
		tt.Indexes = append(tt.Indexes, idx.Clone())
	}
	for _, c := range t.Constraints {
		tt.Constraints = append(tt.Constraints, c.Clone())
	}
	return tt
}

// Clone returns a deep copy of the index.
func (i *Index) Clone() *Index {
	cp := *i
	cp.Columns = append([]string(nil), i.Columns...)
	return &cp
}

// Clone returns a deep copy of the constraint.
func (c *Constraint) Clone() *Constraint {
	cp := *c
	cp.Columns = append([]string(nil), c.Columns...)
	if c.Ref != nil {
		ref := *c.Ref
		ref.Columns = append([]string(nil), c.Ref.Columns...)
		cp.Ref = &ref
	}
	return &cp
}
