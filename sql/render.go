package sql

import (
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
)

// renderer accumulates SQL text and bound arguments. Placeholders are
// numbered in the order values are bound, which is the order they appear in
// the statement text.
type renderer struct {
	d    dialect.Dialect
	b    strings.Builder
	args []any
}

func newRenderer(d dialect.Dialect) *renderer {
	return &renderer{d: d}
}

func (r *renderer) write(s string) {
	r.b.WriteString(s)
}

func (r *renderer) ident(name string) {
	if tbl, col, ok := strings.Cut(name, "."); ok {
		r.b.WriteString(r.d.QuoteIdent(tbl))
		r.b.WriteByte('.')
		r.b.WriteString(r.d.QuoteIdent(col))
		return
	}
	r.b.WriteString(r.d.QuoteIdent(name))
}

func (r *renderer) aggregate(a Aggregate) {
	r.write(string(a.Fn) + "(")
	if a.Field == Star {
		r.write(Star)
	} else {
		r.ident(a.Field)
	}
	r.write(")")
}

func (r *renderer) arg(v any) {
	r.args = append(r.args, v)
	r.b.WriteString(r.d.Placeholder(len(r.args)))
}

func (r *renderer) result() (string, []any) {
	return r.b.String(), r.args
}

// predicate renders one node of the filter tree. Array-typed comparisons
// are rejected here since only the dialect knows whether arrays exist.
func (r *renderer) predicate(sc scope, p Predicate) error {
	switch x := p.(type) {
	case *Comparison:
		if c, err := sc.resolve(x.Field); err == nil && c.Type == schema.TypeArray && !r.d.Supports(dialect.FeatureArrays) {
			return tessera.NewUnsupportedFeatureError(r.d.Name(), "array columns")
		}
		r.ident(x.Field)
		r.write(" " + x.Op.Symbol() + " ")
		r.arg(x.Value)
	case *ColumnComparison:
		r.ident(x.Left)
		r.write(" " + x.Op.Symbol() + " ")
		r.ident(x.Right)
	case *AggComparison:
		r.aggregate(x.Agg)
		r.write(" " + x.Op.Symbol() + " ")
		r.arg(x.Value)
	case *AndPred:
		return r.junction(sc, x.Preds, " AND ")
	case *OrPred:
		return r.junction(sc, x.Preds, " OR ")
	case *NotPred:
		r.write("NOT (")
		if err := r.predicate(sc, x.Pred); err != nil {
			return err
		}
		r.write(")")
	case *InPred:
		if len(x.Values) == 0 {
			// Empty lists cannot render as IN (); fold to a constant
			// truth value instead.
			if x.Negated {
				r.write("1 = 1")
			} else {
				r.write("1 = 0")
			}
			return nil
		}
		r.ident(x.Field)
		if x.Negated {
			r.write(" NOT IN (")
		} else {
			r.write(" IN (")
		}
		for i, v := range x.Values {
			if i > 0 {
				r.write(", ")
			}
			r.arg(v)
		}
		r.write(")")
	case *BetweenPred:
		r.ident(x.Field)
		r.write(" BETWEEN ")
		r.arg(x.Lo)
		r.write(" AND ")
		r.arg(x.Hi)
	case *LikePred:
		switch {
		case !x.CaseInsensitive:
			r.ident(x.Field)
			r.write(" LIKE ")
			r.arg(x.Pattern)
		case r.d.Supports(dialect.FeatureILike):
			r.ident(x.Field)
			r.write(" ILIKE ")
			r.arg(x.Pattern)
		default:
			r.write("LOWER(")
			r.ident(x.Field)
			r.write(") LIKE LOWER(")
			r.arg(x.Pattern)
			r.write(")")
		}
	case *NullPred:
		r.ident(x.Field)
		if x.Negated {
			r.write(" IS NOT NULL")
		} else {
			r.write(" IS NULL")
		}
	}
	return nil
}

func (r *renderer) junction(sc scope, preds []Predicate, sep string) error {
	if len(preds) == 0 {
		r.write("1 = 1")
		return nil
	}
	if len(preds) == 1 {
		return r.predicate(sc, preds[0])
	}
	r.write("(")
	for i, p := range preds {
		if i > 0 {
			r.write(sep)
		}
		if err := r.predicate(sc, p); err != nil {
			return err
		}
	}
	r.write(")")
	return nil
}

// where renders the WHERE clause ANDing all attached predicates.
func (r *renderer) where(sc scope, preds []Predicate) error {
	return r.condition(sc, " WHERE ", preds)
}

func (r *renderer) condition(sc scope, keyword string, preds []Predicate) error {
	if len(preds) == 0 {
		return nil
	}
	r.write(keyword)
	if len(preds) == 1 {
		return r.predicate(sc, preds[0])
	}
	for i, p := range preds {
		if i > 0 {
			r.write(" AND ")
		}
		if err := r.predicate(sc, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) returning(columns []string, set bool) error {
	if !set {
		return nil
	}
	clause, err := r.d.Returning(columns)
	if err != nil {
		return err
	}
	r.write(" " + clause)
	return nil
}
