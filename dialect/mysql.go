package dialect

import (
	"fmt"
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return MySQL }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) Supports(f Feature) bool {
	switch f {
	case FeatureUpsert, FeatureAlterColumnType, FeatureRenameIndex, FeatureAddConstraint:
		return true
	}
	return false
}

func (d mysqlDialect) ColumnType(c *schema.Column) (string, error) {
	switch c.Type {
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeInt16:
		return "SMALLINT", nil
	case schema.TypeInt32:
		return "INT", nil
	case schema.TypeInt64:
		return "BIGINT", nil
	case schema.TypeFloat64:
		return "DOUBLE", nil
	case schema.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.Precision, c.Scale), nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", c.Size), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BLOB", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeTimestamp:
		return "DATETIME", nil
	case schema.TypeUUID:
		return "CHAR(36)", nil
	case schema.TypeJSON:
		return "JSON", nil
	case schema.TypeEnum:
		values := make([]string, len(c.Values))
		for i, v := range c.Values {
			values[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		return "ENUM(" + strings.Join(values, ", ") + ")", nil
	case schema.TypeArray:
		return "", tessera.NewUnsupportedFeatureError(MySQL, "array columns")
	}
	return "", tessera.NewSchemaError("", c.Name, fmt.Sprintf("unmapped column type %s", c.Type))
}

func (d mysqlDialect) ColumnSQL(c *schema.Column, pk bool) (string, error) {
	typ, err := d.ColumnType(c)
	if err != nil {
		return "", err
	}
	b := d.QuoteIdent(c.Name) + " " + typ
	if !c.Nullable {
		b += " NOT NULL"
	}
	if !c.Increment {
		b += defaultClause(d, c)
	} else {
		b += " AUTO_INCREMENT"
	}
	if pk {
		b += " PRIMARY KEY"
	} else if c.Unique {
		b += " UNIQUE"
	}
	return b, nil
}

func (d mysqlDialect) CreateTableSQL(t *schema.Table) (string, error) {
	return buildCreateTable(d, t)
}

func (d mysqlDialect) AddColumnSQL(table string, c *schema.Column) (string, error) {
	col, err := d.ColumnSQL(c, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), col), nil
}

func (d mysqlDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d mysqlDialect) RenameTableSQL(from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d mysqlDialect) RenameColumnSQL(table, from, to string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d mysqlDialect) AlterColumnSQL(table string, _, to *schema.Column) ([]string, error) {
	col, err := d.ColumnSQL(to, false)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.QuoteIdent(table), col)}, nil
}

func (d mysqlDialect) CreateIndexSQL(table string, idx *schema.Index) (string, error) {
	return buildCreateIndex(d, table, idx)
}

func (d mysqlDialect) DropIndexSQL(table, index string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.QuoteIdent(index), d.QuoteIdent(table))
}

func (d mysqlDialect) RenameIndexSQL(table, from, to string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME INDEX %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d mysqlDialect) AddConstraintSQL(table string, c *schema.Constraint) (string, error) {
	body, err := constraintBody(d, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name), body), nil
}

func (d mysqlDialect) DropConstraintSQL(table string, c *schema.Constraint) (string, error) {
	switch c.Kind {
	case schema.KindUnique:
		// Unique constraints are backed by indexes.
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", d.QuoteIdent(table), d.QuoteIdent(c.Name)), nil
	case schema.KindCheck:
		return fmt.Sprintf("ALTER TABLE %s DROP CHECK %s", d.QuoteIdent(table), d.QuoteIdent(c.Name)), nil
	case schema.KindForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.QuoteIdent(table), d.QuoteIdent(c.Name)), nil
	}
	return "", fmt.Errorf("tessera: unknown constraint kind %q", c.Kind)
}

func (mysqlDialect) LimitOffset(limit, offset int64) string {
	switch {
	case limit >= 0 && offset >= 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit >= 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset >= 0:
		// OFFSET requires a LIMIT; the maximum unsigned value is the
		// documented idiom for "no limit".
		return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return ""
}

func (mysqlDialect) Returning([]string) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(MySQL, "RETURNING clause")
}

func (d mysqlDialect) Upsert(conflict, update []string) (string, error) {
	if len(conflict) == 0 {
		return "", tessera.NewSchemaError("", "", "upsert requires conflict columns")
	}
	if len(update) == 0 {
		// No-op assignment keeps the insert idempotent.
		col := d.QuoteIdent(conflict[0])
		return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", col, col), nil
	}
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", d.QuoteIdent(col), d.QuoteIdent(col))
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), nil
}

func (mysqlDialect) SavepointSQL(name string) string {
	return "SAVEPOINT " + name
}

func (mysqlDialect) ReleaseSavepointSQL(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (mysqlDialect) RollbackSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (mysqlDialect) ClassifyError(err error) error {
	return classifyMySQL(err)
}
