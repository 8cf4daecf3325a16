package sql

import (
	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	table     *schema.Table
	sets      []assignment
	preds     []Predicate
	returning []string
	hasRet    bool
	err       error
}

// Update starts an UPDATE of the given table.
func Update(t *schema.Table) UpdateBuilder {
	return UpdateBuilder{table: t}
}

// Set binds a column assignment. Assignments render in call order.
func (b UpdateBuilder) Set(column string, v any) UpdateBuilder {
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

// Where adds a predicate; multiple calls are ANDed.
func (b UpdateBuilder) Where(p Predicate) UpdateBuilder {
	if b.err != nil {
		return b
	}
	if err := checkPredicate(scope{b.table}, p); err != nil {
		b.err = err
		return b
	}
	b.preds = cloneAppend(b.preds, p)
	return b
}

// Returning asks the statement to return the given columns.
func (b UpdateBuilder) Returning(columns ...string) UpdateBuilder {
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
func (b UpdateBuilder) Err() error { return b.err }

// Build renders the statement for the given dialect. SET arguments bind
// before WHERE arguments, matching their order in the text.
func (b UpdateBuilder) Build(d dialect.Dialect) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.sets) == 0 {
		return "", nil, tessera.NewSchemaError(b.table.Name, "", "update requires at least one assignment")
	}
	r := newRenderer(d)
	r.write("UPDATE ")
	r.ident(b.table.Name)
	r.write(" SET ")
	for i, a := range b.sets {
		if i > 0 {
			r.write(", ")
		}
		r.ident(a.column)
		r.write(" = ")
		r.arg(a.value)
	}
	if err := r.where(scope{b.table}, b.preds); err != nil {
		return "", nil, err
	}
	if err := r.returning(b.returning, b.hasRet); err != nil {
		return "", nil, err
	}
	query, args := r.result()
	return query, args, nil
}
