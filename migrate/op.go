package migrate

import (
	"fmt"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

// Operation is one schema change. Implementations render forward SQL for
// any dialect, reverse SQL when the change can be undone, and replay
// themselves onto an in-memory snapshot.
type Operation interface {
	// Describe returns a short human-readable summary.
	Describe() string
	// ForwardSQL renders the statements applying the change.
	ForwardSQL(d dialect.Dialect) ([]string, error)
	// ReverseSQL renders the statements undoing the change. Irreversible
	// operations return an IrreversibleMigrationError.
	ReverseSQL(d dialect.Dialect) ([]string, error)
	// Reversible reports whether ReverseSQL is defined.
	Reversible() bool

	// apply replays the change onto a working snapshot.
	apply(w *workspace) error
}

func irreversible(op Operation) ([]string, error) {
	return nil, tessera.NewIrreversibleMigrationError("", op.Describe())
}

// CreateTable creates a table with its columns, primary key, indexes, and
// inline constraints.
type CreateTable struct {
	Table *schema.Table
}

func (o *CreateTable) Describe() string { return "create table " + o.Table.Name }

func (o *CreateTable) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmts := make([]string, 0, len(o.Table.Indexes)+1)
	ddl, err := d.CreateTableSQL(o.Table)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, ddl)
	for _, idx := range o.Table.Indexes {
		stmt, err := d.CreateIndexSQL(o.Table.Name, idx)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (o *CreateTable) ReverseSQL(d dialect.Dialect) ([]string, error) {
	return []string{"DROP TABLE " + d.QuoteIdent(o.Table.Name)}, nil
}

func (o *CreateTable) Reversible() bool { return true }

func (o *CreateTable) apply(w *workspace) error {
	if _, ok := w.tables[o.Table.Name]; ok {
		return fmt.Errorf("tessera: table %s already exists", o.Table.Name)
	}
	w.tables[o.Table.Name] = o.Table.Clone()
	return nil
}

// DropTable drops a table. The operation does not carry the dropped
// definition, so it has no reverse.
type DropTable struct {
	Name string
}

func (o *DropTable) Describe() string { return "drop table " + o.Name }

func (o *DropTable) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return []string{"DROP TABLE " + d.QuoteIdent(o.Name)}, nil
}

func (o *DropTable) ReverseSQL(d dialect.Dialect) ([]string, error) { return irreversible(o) }

func (o *DropTable) Reversible() bool { return false }

func (o *DropTable) apply(w *workspace) error {
	return w.drop(o.Name)
}

// RenameTable renames a table.
type RenameTable struct {
	From string
	To   string
}

func (o *RenameTable) Describe() string {
	return fmt.Sprintf("rename table %s to %s", o.From, o.To)
}

func (o *RenameTable) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.RenameTableSQL(o.From, o.To)}, nil
}

func (o *RenameTable) ReverseSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.RenameTableSQL(o.To, o.From)}, nil
}

func (o *RenameTable) Reversible() bool { return true }

func (o *RenameTable) apply(w *workspace) error {
	t, err := w.table(o.From)
	if err != nil {
		return err
	}
	delete(w.tables, o.From)
	t.Name = o.To
	w.tables[o.To] = t
	return nil
}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	Table  string
	Column *schema.Column
}

func (o *AddColumn) Describe() string {
	return fmt.Sprintf("add column %s.%s", o.Table, o.Column.Name)
}

func (o *AddColumn) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.AddColumnSQL(o.Table, o.Column)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *AddColumn) ReverseSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.DropColumnSQL(o.Table, o.Column.Name)}, nil
}

func (o *AddColumn) Reversible() bool { return true }

func (o *AddColumn) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	if t.HasColumn(o.Column.Name) {
		return fmt.Errorf("tessera: column %s.%s already exists", o.Table, o.Column.Name)
	}
	t.AddColumns(o.Column.Clone())
	return nil
}

// DropColumn drops a column. The dropped data cannot be restored, so the
// operation has no reverse.
type DropColumn struct {
	Table  string
	Column string
}

func (o *DropColumn) Describe() string {
	return fmt.Sprintf("drop column %s.%s", o.Table, o.Column)
}

func (o *DropColumn) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.DropColumnSQL(o.Table, o.Column)}, nil
}

func (o *DropColumn) ReverseSQL(d dialect.Dialect) ([]string, error) { return irreversible(o) }

func (o *DropColumn) Reversible() bool { return false }

func (o *DropColumn) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	return w.dropColumn(t, o.Column)
}

// AlterColumn changes a column's type, nullability, or default. The
// operation is reversible only when the change is widening: a type change
// or a size/precision decrease may lose data, so those have no reverse.
type AlterColumn struct {
	Table string
	From  *schema.Column
	To    *schema.Column
}

func (o *AlterColumn) Describe() string {
	return fmt.Sprintf("alter column %s.%s", o.Table, o.From.Name)
}

func (o *AlterColumn) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return d.AlterColumnSQL(o.Table, o.From, o.To)
}

func (o *AlterColumn) ReverseSQL(d dialect.Dialect) ([]string, error) {
	if !o.Reversible() {
		return irreversible(o)
	}
	return d.AlterColumnSQL(o.Table, o.To, o.From)
}

func (o *AlterColumn) Reversible() bool { return !o.destructive() }

func (o *AlterColumn) destructive() bool {
	switch {
	case o.From.Type != o.To.Type:
		return true
	case o.To.Size > 0 && o.To.Size < o.From.Size:
		return true
	case o.To.Precision > 0 && o.To.Precision < o.From.Precision:
		return true
	}
	return false
}

func (o *AlterColumn) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	i, ok := t.ColumnIndex(o.From.Name)
	if !ok {
		return fmt.Errorf("tessera: column %s.%s does not exist", o.Table, o.From.Name)
	}
	c := o.To.Clone()
	c.Name = o.From.Name
	t.Columns[i] = c
	return nil
}

// RenameColumn renames a column.
type RenameColumn struct {
	Table string
	From  string
	To    string
}

func (o *RenameColumn) Describe() string {
	return fmt.Sprintf("rename column %s.%s to %s", o.Table, o.From, o.To)
}

func (o *RenameColumn) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.RenameColumnSQL(o.Table, o.From, o.To)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *RenameColumn) ReverseSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.RenameColumnSQL(o.Table, o.To, o.From)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *RenameColumn) Reversible() bool { return true }

func (o *RenameColumn) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	return w.renameColumn(t, o.From, o.To)
}

// CreateIndex creates an index.
type CreateIndex struct {
	Table string
	Index *schema.Index
}

func (o *CreateIndex) Describe() string {
	return fmt.Sprintf("create index %s on %s", o.Index.Name, o.Table)
}

func (o *CreateIndex) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.CreateIndexSQL(o.Table, o.Index)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *CreateIndex) ReverseSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.DropIndexSQL(o.Table, o.Index.Name)}, nil
}

func (o *CreateIndex) Reversible() bool { return true }

func (o *CreateIndex) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	if _, ok := t.Index(o.Index.Name); ok {
		return fmt.Errorf("tessera: index %s on %s already exists", o.Index.Name, o.Table)
	}
	t.AddIndexes(o.Index.Clone())
	return nil
}

// DropIndex drops an index. It carries the dropped definition, so the
// reverse recreates it.
type DropIndex struct {
	Table string
	Index *schema.Index
}

func (o *DropIndex) Describe() string {
	return fmt.Sprintf("drop index %s on %s", o.Index.Name, o.Table)
}

func (o *DropIndex) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return []string{d.DropIndexSQL(o.Table, o.Index.Name)}, nil
}

func (o *DropIndex) ReverseSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.CreateIndexSQL(o.Table, o.Index)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *DropIndex) Reversible() bool { return true }

func (o *DropIndex) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	return w.dropIndex(t, o.Index.Name)
}

// RenameIndex renames an index on dialects that can.
type RenameIndex struct {
	Table string
	From  string
	To    string
}

func (o *RenameIndex) Describe() string {
	return fmt.Sprintf("rename index %s to %s on %s", o.From, o.To, o.Table)
}

func (o *RenameIndex) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.RenameIndexSQL(o.Table, o.From, o.To)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *RenameIndex) ReverseSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.RenameIndexSQL(o.Table, o.To, o.From)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *RenameIndex) Reversible() bool { return true }

func (o *RenameIndex) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	idx, ok := t.Index(o.From)
	if !ok {
		return fmt.Errorf("tessera: index %s on %s does not exist", o.From, o.Table)
	}
	idx.Name = o.To
	return nil
}

// AddConstraint adds a named constraint.
type AddConstraint struct {
	Table      string
	Constraint *schema.Constraint
}

func (o *AddConstraint) Describe() string {
	return fmt.Sprintf("add constraint %s on %s", o.Constraint.Name, o.Table)
}

func (o *AddConstraint) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.AddConstraintSQL(o.Table, o.Constraint)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *AddConstraint) ReverseSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.DropConstraintSQL(o.Table, o.Constraint)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *AddConstraint) Reversible() bool { return true }

func (o *AddConstraint) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	if _, ok := t.Constraint(o.Constraint.Name); ok {
		return fmt.Errorf("tessera: constraint %s on %s already exists", o.Constraint.Name, o.Table)
	}
	t.AddConstraints(o.Constraint.Clone())
	return nil
}

// DropConstraint drops a named constraint. It carries the dropped
// definition, so the reverse recreates it.
type DropConstraint struct {
	Table      string
	Constraint *schema.Constraint
}

func (o *DropConstraint) Describe() string {
	return fmt.Sprintf("drop constraint %s on %s", o.Constraint.Name, o.Table)
}

func (o *DropConstraint) ForwardSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.DropConstraintSQL(o.Table, o.Constraint)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *DropConstraint) ReverseSQL(d dialect.Dialect) ([]string, error) {
	stmt, err := d.AddConstraintSQL(o.Table, o.Constraint)
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

func (o *DropConstraint) Reversible() bool { return true }

func (o *DropConstraint) apply(w *workspace) error {
	t, err := w.table(o.Table)
	if err != nil {
		return err
	}
	return w.dropConstraint(t, o.Constraint.Name)
}

// RunSQL carries raw statements verbatim. Its reverse, when given, is the
// author's responsibility; no snapshot replay happens for raw SQL.
type RunSQL struct {
	Forward []string
	Reverse []string
}

func (o *RunSQL) Describe() string { return "run raw sql" }

func (o *RunSQL) ForwardSQL(d dialect.Dialect) ([]string, error) {
	return o.Forward, nil
}

func (o *RunSQL) ReverseSQL(d dialect.Dialect) ([]string, error) {
	if !o.Reversible() {
		return irreversible(o)
	}
	return o.Reverse, nil
}

func (o *RunSQL) Reversible() bool { return len(o.Reverse) > 0 }

func (o *RunSQL) apply(w *workspace) error { return nil }
