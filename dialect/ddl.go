package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

// buildCreateTable assembles CREATE TABLE from the dialect's column and
// constraint pieces. A single-column primary key is rendered inline by
// ColumnSQL; composite keys become a table-level clause.
func buildCreateTable(d Dialect, t *schema.Table) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.QuoteIdent(t.Name))
	b.WriteString(" (")
	inline := len(t.PrimaryKey) == 1
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		col, err := d.ColumnSQL(c, inline && c.Name == t.PrimaryKey[0])
		if err != nil {
			return "", err
		}
		b.WriteString(col)
	}
	if !inline && len(t.PrimaryKey) > 0 {
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(quoteJoin(d, t.PrimaryKey))
		b.WriteString(")")
	}
	for _, c := range t.Constraints {
		body, err := constraintBody(d, c)
		if err != nil {
			return "", err
		}
		b.WriteString(", CONSTRAINT ")
		b.WriteString(d.QuoteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(body)
	}
	b.WriteString(")")
	return b.String(), nil
}

// constraintBody renders the constraint definition that follows
// "CONSTRAINT <name>".
func constraintBody(d Dialect, c *schema.Constraint) (string, error) {
	switch c.Kind {
	case schema.KindUnique:
		return "UNIQUE (" + quoteJoin(d, c.Columns) + ")", nil
	case schema.KindCheck:
		return "CHECK (" + c.Expr + ")", nil
	case schema.KindForeignKey:
		var b strings.Builder
		b.WriteString("FOREIGN KEY (")
		b.WriteString(quoteJoin(d, c.Columns))
		b.WriteString(") REFERENCES ")
		b.WriteString(d.QuoteIdent(c.Ref.Table))
		b.WriteString(" (")
		b.WriteString(quoteJoin(d, c.Ref.Columns))
		b.WriteString(")")
		if c.Ref.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(string(c.Ref.OnDelete))
		}
		if c.Ref.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(string(c.Ref.OnUpdate))
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("tessera: unknown constraint kind %q", c.Kind)
}

// buildCreateIndex renders CREATE [UNIQUE] INDEX, rejecting partial indexes
// on dialects without them.
func buildCreateIndex(d Dialect, table string, idx *schema.Index) (string, error) {
	if idx.Predicate != "" && !d.Supports(FeaturePartialIndexes) {
		return "", tessera.NewUnsupportedFeatureError(d.Name(), "partial indexes")
	}
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(d.QuoteIdent(idx.Name))
	b.WriteString(" ON ")
	b.WriteString(d.QuoteIdent(table))
	b.WriteString(" (")
	b.WriteString(quoteJoin(d, idx.Columns))
	b.WriteString(")")
	if idx.Predicate != "" {
		b.WriteString(" WHERE ")
		b.WriteString(idx.Predicate)
	}
	return b.String(), nil
}

// defaultClause renders " DEFAULT ..." for a column, or "".
func defaultClause(d Dialect, c *schema.Column) string {
	if c.DefaultExpr != "" {
		return " DEFAULT " + c.DefaultExpr
	}
	if c.Default != nil {
		return " DEFAULT " + literal(d.Name(), c.Default)
	}
	return ""
}

// literal renders a Go value as a SQL literal for DDL defaults. Query
// values never pass through here; those are always bound as parameters.
func literal(dialect string, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if dialect == Oracle {
			if x {
				return "1"
			}
			return "0"
		}
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05") + "'"
	default:
		return fmt.Sprint(x)
	}
}

func quoteJoin(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
