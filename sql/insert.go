package sql

import (
	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

type assignment struct {
	column string
	value  any
}

// InsertBuilder builds an INSERT statement for a single row.
type InsertBuilder struct {
	table      *schema.Table
	sets       []assignment
	conflict   []string
	updateCols []string
	upsert     bool
	returning  []string
	hasRet     bool
	err        error
}

// Insert starts an INSERT into the given table.
func Insert(t *schema.Table) InsertBuilder {
	return InsertBuilder{table: t}
}

// Set binds a column value. Columns render in the order they were set.
func (b InsertBuilder) Set(column string, v any) InsertBuilder {
	if b.err != nil {
		return b
	}
	c, err := resolve(b.table, column)
	if err != nil {
		b.err = err
		return b
	}
	if err := schema.ValidateValue(b.table.Name, c, v); err != nil {
		b.err = err
		return b
	}
	b.sets = cloneAppend(b.sets, assignment{column: column, value: v})
	return b
}

// OnConflict turns the insert into an upsert keyed on the given columns.
// Follow with DoUpdate to choose the columns refreshed on conflict;
// without it the conflicting insert becomes a no-op.
func (b InsertBuilder) OnConflict(columns ...string) InsertBuilder {
	if b.err != nil {
		return b
	}
	for _, col := range columns {
		if !b.table.HasColumn(col) {
			b.err = tessera.NewSchemaError(b.table.Name, col, "unknown column")
			return b
		}
	}
	b.upsert = true
	b.conflict = columns
	return b
}

// DoUpdate sets the columns updated when OnConflict fires.
func (b InsertBuilder) DoUpdate(columns ...string) InsertBuilder {
	if b.err != nil {
		return b
	}
	for _, col := range columns {
		if !b.table.HasColumn(col) {
			b.err = tessera.NewSchemaError(b.table.Name, col, "unknown column")
			return b
		}
	}
	b.updateCols = columns
	return b
}

// Returning asks the statement to return the given columns, or every
// column when none are named. Fails at render time on dialects without
// RETURNING.
func (b InsertBuilder) Returning(columns ...string) InsertBuilder {
	if b.err != nil {
		return b
	}
	for _, col := range columns {
		if !b.table.HasColumn(col) {
			b.err = tessera.NewSchemaError(b.table.Name, col, "unknown column")
			return b
		}
	}
	b.hasRet = true
	b.returning = columns
	return b
}

// Err returns the first error recorded while building.
func (b InsertBuilder) Err() error { return b.err }

// Build renders the statement for the given dialect.
func (b InsertBuilder) Build(d dialect.Dialect) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.sets) == 0 {
		return "", nil, tessera.NewSchemaError(b.table.Name, "", "insert requires at least one column")
	}
	r := newRenderer(d)
	r.write("INSERT INTO ")
	r.ident(b.table.Name)
	r.write(" (")
	for i, a := range b.sets {
		if i > 0 {
			r.write(", ")
		}
		r.ident(a.column)
	}
	r.write(") VALUES (")
	for i, a := range b.sets {
		if i > 0 {
			r.write(", ")
		}
		r.arg(a.value)
	}
	r.write(")")
	if b.upsert {
		clause, err := d.Upsert(b.conflict, b.updateCols)
		if err != nil {
			return "", nil, err
		}
		r.write(" " + clause)
	}
	if err := r.returning(b.returning, b.hasRet); err != nil {
		return "", nil, err
	}
	query, args := r.result()
	return query, args, nil
}
