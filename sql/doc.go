// Package sql holds the typed query builder and the statement renderer.
//
// Builders are immutable values bound to a schema table: every chained call
// returns a new builder, so partially-built queries can be shared and
// branched safely. Column references and literal types are checked when the
// builder is constructed; rendering never discovers a schema error that the
// builder could have caught.
//
//	q := sql.Select(users).
//		Where(sql.And(
//			sql.EQ("is_active", true),
//			sql.GTE("age", 18),
//		)).
//		OrderByDesc("created_at").
//		Limit(10)
//
//	query, args, err := q.Build(d)
//
// Rendering is a pure function of the builder and a dialect: no I/O, no
// global state. All literals become bound parameters in left-to-right
// order; values are never interpolated into the SQL text.
package sql
