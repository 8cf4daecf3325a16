package schema

import (
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tessera-orm/tessera"
)

// Snapshot is a point-in-time view of a whole schema: a name-sorted set of
// tables. Snapshots are what the migration differ compares and what
// migration replay produces. Treat a snapshot as immutable once built.
type Snapshot struct {
	Tables []*Table `msgpack:"tables"`
}

// NewSnapshot returns a snapshot over deep copies of the given tables,
// sorted by table name so iteration order is deterministic.
func NewSnapshot(tables ...*Table) *Snapshot {
	s := &Snapshot{Tables: make([]*Table, 0, len(tables))}
	for _, t := range tables {
		s.Tables = append(s.Tables, t.Clone())
	}
	sort.Slice(s.Tables, func(i, j int) bool {
		return s.Tables[i].Name < s.Tables[j].Name
	})
	return s
}

// Table returns the table with the given name.
func (s *Snapshot) Table(name string) (*Table, bool) {
	i := sort.Search(len(s.Tables), func(i int) bool {
		return s.Tables[i].Name >= name
	})
	if i < len(s.Tables) && s.Tables[i].Name == name {
		return s.Tables[i], true
	}
	return nil, false
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	cp := &Snapshot{Tables: make([]*Table, 0, len(s.Tables))}
	for _, t := range s.Tables {
		cp.Tables = append(cp.Tables, t.Clone())
	}
	return cp
}

// Validate checks structural consistency: unique table and column names,
// well-formed type parameters, and primary key, index and constraint
// references that resolve to existing columns and tables. Foreign keys are
// checked against the whole snapshot so cross-table references must
// resolve.
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return tessera.NewSchemaError("", "", "table with empty name")
		}
		if seen[t.Name] {
			return tessera.NewSchemaError(t.Name, "", "duplicate table name")
		}
		seen[t.Name] = true
		if err := s.validateTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Snapshot) validateTable(t *Table) error {
	if len(t.Columns) == 0 {
		return tessera.NewSchemaError(t.Name, "", "table has no columns")
	}
	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return tessera.NewSchemaError(t.Name, "", "column with empty name")
		}
		if cols[c.Name] {
			return tessera.NewSchemaError(t.Name, c.Name, "duplicate column name")
		}
		cols[c.Name] = true
		if err := validateColumn(t.Name, c); err != nil {
			return err
		}
	}
	if len(t.PrimaryKey) == 0 {
		return tessera.NewSchemaError(t.Name, "", "table has no primary key")
	}
	for _, pk := range t.PrimaryKey {
		c, ok := t.Column(pk)
		if !ok {
			return tessera.NewSchemaError(t.Name, pk, "primary key references unknown column")
		}
		if c.Nullable {
			return tessera.NewSchemaError(t.Name, pk, "primary key column cannot be nullable")
		}
	}
	names := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if names[idx.Name] {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("duplicate index name %q", idx.Name))
		}
		names[idx.Name] = true
		if len(idx.Columns) == 0 {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("index %q has no columns", idx.Name))
		}
		for _, col := range idx.Columns {
			if !t.HasColumn(col) {
				return tessera.NewSchemaError(t.Name, col, fmt.Sprintf("index %q references unknown column", idx.Name))
			}
		}
	}
	for _, c := range t.Constraints {
		if err := s.validateConstraint(t, c); err != nil {
			return err
		}
	}
	return nil
}

func validateColumn(table string, c *Column) error {
	if !c.Type.Valid() {
		return tessera.NewSchemaError(table, c.Name, "invalid column type")
	}
	switch c.Type {
	case TypeString:
		if c.Size <= 0 {
			return tessera.NewSchemaError(table, c.Name, "string column requires a positive size")
		}
	case TypeDecimal:
		if c.Precision <= 0 {
			return tessera.NewSchemaError(table, c.Name, "decimal column requires a positive precision")
		}
		if c.Scale < 0 || c.Scale > c.Precision {
			return tessera.NewSchemaError(table, c.Name, "decimal scale must be between 0 and precision")
		}
	case TypeEnum:
		if len(c.Values) == 0 {
			return tessera.NewSchemaError(table, c.Name, "enum column requires at least one value")
		}
	case TypeArray:
		if !c.Elem.Valid() || c.Elem == TypeArray {
			return tessera.NewSchemaError(table, c.Name, "array column requires a valid scalar element type")
		}
	}
	if c.Increment && !c.Type.Integer() {
		return tessera.NewSchemaError(table, c.Name, "auto-increment requires an integer type")
	}
	if c.Default != nil && c.DefaultExpr != "" {
		return tessera.NewSchemaError(table, c.Name, "column has both a literal and an expression default")
	}
	return nil
}

func (s *Snapshot) validateConstraint(t *Table, c *Constraint) error {
	if c.Name == "" {
		return tessera.NewSchemaError(t.Name, "", "constraint with empty name")
	}
	switch c.Kind {
	case KindUnique:
		if len(c.Columns) == 0 {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("unique constraint %q has no columns", c.Name))
		}
	case KindCheck:
		if c.Expr == "" {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("check constraint %q has no expression", c.Name))
		}
	case KindForeignKey:
		if c.Ref == nil {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("foreign key %q has no reference", c.Name))
		}
		if len(c.Columns) == 0 || len(c.Columns) != len(c.Ref.Columns) {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("foreign key %q column count mismatch", c.Name))
		}
		target, ok := s.Table(c.Ref.Table)
		if !ok {
			return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("foreign key %q references unknown table %q", c.Name, c.Ref.Table))
		}
		for _, col := range c.Ref.Columns {
			if !target.HasColumn(col) {
				return tessera.NewSchemaError(c.Ref.Table, col, fmt.Sprintf("foreign key %q references unknown column", c.Name))
			}
		}
	default:
		return tessera.NewSchemaError(t.Name, "", fmt.Sprintf("constraint %q has unknown kind %q", c.Name, c.Kind))
	}
	for _, col := range c.Columns {
		if !t.HasColumn(col) {
			return tessera.NewSchemaError(t.Name, col, fmt.Sprintf("constraint %q references unknown column", c.Name))
		}
	}
	return nil
}

// Encode serializes the snapshot with msgpack. The encoding is used to
// cache replayed snapshots on disk between migration runs.
func (s *Snapshot) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot deserializes a snapshot produced by Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}
