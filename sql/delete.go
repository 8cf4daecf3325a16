package sql

import (
	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	table     *schema.Table
	preds     []Predicate
	returning []string
	hasRet    bool
	err       error
}

// Delete starts a DELETE from the given table.
func Delete(t *schema.Table) DeleteBuilder {
	return DeleteBuilder{table: t}
}

// Where adds a predicate; multiple calls are ANDed.
func (b DeleteBuilder) Where(p Predicate) DeleteBuilder {
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
func (b DeleteBuilder) Returning(columns ...string) DeleteBuilder {
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
func (b DeleteBuilder) Err() error { return b.err }

// Build renders the statement for the given dialect.
func (b DeleteBuilder) Build(d dialect.Dialect) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	r := newRenderer(d)
	r.write("DELETE FROM ")
	r.ident(b.table.Name)
	if err := r.where(scope{b.table}, b.preds); err != nil {
		return "", nil, err
	}
	if err := r.returning(b.returning, b.hasRet); err != nil {
		return "", nil, err
	}
	query, args := r.result()
	return query, args, nil
}
