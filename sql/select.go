package sql

import (
	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Field string
	Desc  bool
}

// JoinKind is the join variant. Join conditions are always explicit; the
// builder never infers them from foreign keys.
type JoinKind int

// Join kinds.
const (
	JoinInner JoinKind = iota
	JoinLeft
)

func (k JoinKind) keyword() string {
	if k == JoinLeft {
		return "LEFT JOIN"
	}
	return "JOIN"
}

type joinClause struct {
	kind  JoinKind
	table *schema.Table
	on    Predicate
}

// SelectBuilder builds a SELECT statement. The zero value is not usable;
// start with Select.
type SelectBuilder struct {
	table    *schema.Table
	columns  []string
	aggs     []Aggregate
	joins    []joinClause
	preds    []Predicate
	groupBy  []string
	having   []Predicate
	orderBy  []OrderTerm
	limit    int64
	offset   int64
	distinct bool
	err      error
}

// Select starts a SELECT over the given table. With no columns it selects
// every column of the table in declaration order.
func Select(t *schema.Table, columns ...string) SelectBuilder {
	b := SelectBuilder{table: t, limit: -1, offset: -1}
	for _, col := range columns {
		if !t.HasColumn(col) {
			b.err = tessera.NewSchemaError(t.Name, col, "unknown column")
			return b
		}
	}
	b.columns = columns
	return b
}

// scope is the tables visible to field references, FROM table first.
func (b SelectBuilder) scope() scope {
	sc := make(scope, 0, len(b.joins)+1)
	sc = append(sc, b.table)
	for _, j := range b.joins {
		sc = append(sc, j.table)
	}
	return sc
}

// Join adds an inner join with an explicit ON condition.
func (b SelectBuilder) Join(t *schema.Table, on Predicate) SelectBuilder {
	return b.join(JoinInner, t, on)
}

// LeftJoin adds a left outer join with an explicit ON condition.
func (b SelectBuilder) LeftJoin(t *schema.Table, on Predicate) SelectBuilder {
	return b.join(JoinLeft, t, on)
}

func (b SelectBuilder) join(kind JoinKind, t *schema.Table, on Predicate) SelectBuilder {
	if b.err != nil {
		return b
	}
	if on == nil {
		b.err = tessera.NewSchemaError(t.Name, "", "join requires an ON condition")
		return b
	}
	joined := cloneAppend(b.joins, joinClause{kind: kind, table: t, on: on})
	b.joins = joined
	if err := checkPredicate(b.scope(), on); err != nil {
		b.err = err
		return b
	}
	return b
}

// Aggregate appends aggregated output terms after the plain columns.
func (b SelectBuilder) Aggregate(aggs ...Aggregate) SelectBuilder {
	if b.err != nil {
		return b
	}
	for _, a := range aggs {
		if err := checkAggregate(b.scope(), a); err != nil {
			b.err = err
			return b
		}
	}
	b.aggs = cloneAppend(b.aggs, aggs...)
	return b
}

// Where adds a predicate; multiple calls are ANDed.
func (b SelectBuilder) Where(p Predicate) SelectBuilder {
	if b.err != nil {
		return b
	}
	if err := checkPredicate(b.scope(), p); err != nil {
		b.err = err
		return b
	}
	b.preds = cloneAppend(b.preds, p)
	return b
}

// GroupBy groups result rows by the given fields.
func (b SelectBuilder) GroupBy(fields ...string) SelectBuilder {
	if b.err != nil {
		return b
	}
	for _, f := range fields {
		if _, err := b.scope().resolve(f); err != nil {
			b.err = err
			return b
		}
	}
	b.groupBy = cloneAppend(b.groupBy, fields...)
	return b
}

// Having adds a post-grouping predicate; multiple calls are ANDed.
func (b SelectBuilder) Having(p Predicate) SelectBuilder {
	if b.err != nil {
		return b
	}
	if err := checkPredicate(b.scope(), p); err != nil {
		b.err = err
		return b
	}
	b.having = cloneAppend(b.having, p)
	return b
}

// OrderBy appends an ascending order term.
func (b SelectBuilder) OrderBy(field string) SelectBuilder {
	return b.order(field, false)
}

// OrderByDesc appends a descending order term.
func (b SelectBuilder) OrderByDesc(field string) SelectBuilder {
	return b.order(field, true)
}

func (b SelectBuilder) order(field string, desc bool) SelectBuilder {
	if b.err != nil {
		return b
	}
	if _, err := b.scope().resolve(field); err != nil {
		b.err = err
		return b
	}
	b.orderBy = cloneAppend(b.orderBy, OrderTerm{Field: field, Desc: desc})
	return b
}

// Limit caps the row count. Negative values clear the limit.
func (b SelectBuilder) Limit(n int64) SelectBuilder {
	b.limit = n
	return b
}

// Offset skips the first n rows. Negative values clear the offset.
func (b SelectBuilder) Offset(n int64) SelectBuilder {
	b.offset = n
	return b
}

// Distinct deduplicates result rows.
func (b SelectBuilder) Distinct() SelectBuilder {
	b.distinct = true
	return b
}

// Err returns the first error recorded while building.
func (b SelectBuilder) Err() error { return b.err }

// Columns returns the plain columns the statement will produce, resolving
// the implicit "all columns" form. Aggregated terms are not included.
func (b SelectBuilder) Columns() []string {
	if len(b.columns) > 0 || len(b.aggs) > 0 {
		return b.columns
	}
	all := make([]string, len(b.table.Columns))
	for i, c := range b.table.Columns {
		all[i] = c.Name
	}
	return all
}

// Table returns the table the statement reads from.
func (b SelectBuilder) Table() *schema.Table { return b.table }

// Build renders the statement for the given dialect.
func (b SelectBuilder) Build(d dialect.Dialect) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	sc := b.scope()
	r := newRenderer(d)
	r.write("SELECT ")
	if b.distinct {
		r.write("DISTINCT ")
	}
	terms := 0
	for _, col := range b.Columns() {
		if terms > 0 {
			r.write(", ")
		}
		// Joined statements qualify bare columns with the FROM table
		// so shared names like "id" stay unambiguous.
		if len(b.joins) > 0 && !qualified(col) {
			r.ident(b.table.Name + "." + col)
		} else {
			r.ident(col)
		}
		terms++
	}
	for _, a := range b.aggs {
		if terms > 0 {
			r.write(", ")
		}
		r.aggregate(a)
		if a.Alias != "" {
			r.write(" AS ")
			r.ident(a.Alias)
		}
		terms++
	}
	r.write(" FROM ")
	r.ident(b.table.Name)
	for _, j := range b.joins {
		r.write(" " + j.kind.keyword() + " ")
		r.ident(j.table.Name)
		r.write(" ON ")
		if err := r.predicate(sc, j.on); err != nil {
			return "", nil, err
		}
	}
	if err := r.where(sc, b.preds); err != nil {
		return "", nil, err
	}
	for i, f := range b.groupBy {
		if i == 0 {
			r.write(" GROUP BY ")
		} else {
			r.write(", ")
		}
		r.ident(f)
	}
	if err := r.condition(sc, " HAVING ", b.having); err != nil {
		return "", nil, err
	}
	for i, term := range b.orderBy {
		if i == 0 {
			r.write(" ORDER BY ")
		} else {
			r.write(", ")
		}
		r.ident(term.Field)
		if term.Desc {
			r.write(" DESC")
		}
	}
	if clause := d.LimitOffset(b.limit, b.offset); clause != "" {
		r.write(" " + clause)
	}
	query, args := r.result()
	return query, args, nil
}
