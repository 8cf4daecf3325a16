package sql

import (
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

// scope is the ordered set of tables a field reference may resolve
// against: the FROM table first, then joined tables.
type scope []*schema.Table

// resolve finds the column a field reference names. Qualified references
// ("table.column") resolve against that table only; bare names must be
// unambiguous across the scope.
func (s scope) resolve(field string) (*schema.Column, error) {
	if tbl, col, ok := strings.Cut(field, "."); ok {
		for _, t := range s {
			if t.Name == tbl {
				if c, ok := t.Column(col); ok {
					return c, nil
				}
				return nil, tessera.NewSchemaError(tbl, col, "unknown column")
			}
		}
		return nil, tessera.NewSchemaError(tbl, col, "table is not part of this statement")
	}
	var (
		found *schema.Column
		owner string
	)
	for _, t := range s {
		if c, ok := t.Column(field); ok {
			if found != nil {
				return nil, tessera.NewSchemaError(owner, field, "ambiguous column, qualify it with a table name")
			}
			found, owner = c, t.Name
		}
	}
	if found == nil {
		return nil, tessera.NewSchemaError(s[0].Name, field, "unknown column")
	}
	return found, nil
}

// checkPredicate resolves every field reference in the tree against the
// scope and type-checks every bound value. Called when a predicate is
// attached to a builder, so rendering cannot hit a schema error.
func checkPredicate(sc scope, p Predicate) error {
	switch x := p.(type) {
	case *Comparison:
		c, err := sc.resolve(x.Field)
		if err != nil {
			return err
		}
		return schema.ValidateValue(sc[0].Name, c, x.Value)
	case *ColumnComparison:
		left, err := sc.resolve(x.Left)
		if err != nil {
			return err
		}
		right, err := sc.resolve(x.Right)
		if err != nil {
			return err
		}
		if !typesComparable(left.Type, right.Type) {
			return tessera.NewTypeMismatchError(sc[0].Name, x.Left, left.Type.String(), right.Type.String())
		}
	case *AndPred:
		for _, child := range x.Preds {
			if err := checkPredicate(sc, child); err != nil {
				return err
			}
		}
	case *OrPred:
		for _, child := range x.Preds {
			if err := checkPredicate(sc, child); err != nil {
				return err
			}
		}
	case *NotPred:
		return checkPredicate(sc, x.Pred)
	case *InPred:
		c, err := sc.resolve(x.Field)
		if err != nil {
			return err
		}
		for _, v := range x.Values {
			if err := schema.ValidateValue(sc[0].Name, c, v); err != nil {
				return err
			}
		}
	case *BetweenPred:
		c, err := sc.resolve(x.Field)
		if err != nil {
			return err
		}
		if err := schema.ValidateValue(sc[0].Name, c, x.Lo); err != nil {
			return err
		}
		return schema.ValidateValue(sc[0].Name, c, x.Hi)
	case *LikePred:
		c, err := sc.resolve(x.Field)
		if err != nil {
			return err
		}
		if !c.Type.Textual() {
			return tessera.NewTypeMismatchError(sc[0].Name, c.Name, c.Type.String(), x.Pattern)
		}
	case *NullPred:
		_, err := sc.resolve(x.Field)
		return err
	case *AggComparison:
		return checkAggregate(sc, x.Agg)
	}
	return nil
}

// typesComparable reports whether two column types can meet in a comparison.
func typesComparable(a, b schema.Type) bool {
	switch {
	case a == b:
		return true
	case a.Numeric() && b.Numeric():
		return true
	case a.Textual() && b.Textual():
		return true
	case a.Temporal() && b.Temporal():
		return true
	}
	return false
}

func checkAggregate(sc scope, a Aggregate) error {
	if a.Field == Star {
		if a.Fn != AggCount {
			return tessera.NewSchemaError(sc[0].Name, "", string(a.Fn)+" requires a column")
		}
		return nil
	}
	c, err := sc.resolve(a.Field)
	if err != nil {
		return err
	}
	if (a.Fn == AggSum || a.Fn == AggAvg) && !c.Type.Numeric() {
		return tessera.NewTypeMismatchError(sc[0].Name, c.Name, "numeric", c.Type.String())
	}
	return nil
}

func resolve(t *schema.Table, field string) (*schema.Column, error) {
	c, ok := t.Column(field)
	if !ok {
		return nil, tessera.NewSchemaError(t.Name, field, "unknown column")
	}
	return c, nil
}

func qualified(field string) bool {
	return strings.Contains(field, ".")
}

// cloneAppend copies s before appending, so chained builders never share a
// backing array.
func cloneAppend[S ~[]E, E any](s S, e ...E) S {
	out := make(S, len(s), len(s)+len(e))
	copy(out, s)
	return append(out, e...)
}
