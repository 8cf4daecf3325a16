package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

type oracleDialect struct{}

func (oracleDialect) Name() string { return Oracle }

func (oracleDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (oracleDialect) Placeholder(n int) string {
	return ":" + strconv.Itoa(n)
}

func (oracleDialect) Supports(f Feature) bool {
	switch f {
	case FeatureAlterColumnType, FeatureRenameIndex, FeatureAddConstraint:
		return true
	}
	return false
}

func (d oracleDialect) ColumnType(c *schema.Column) (string, error) {
	switch c.Type {
	case schema.TypeBool:
		return "NUMBER(1)", nil
	case schema.TypeInt16:
		return "NUMBER(5)", nil
	case schema.TypeInt32:
		return "NUMBER(10)", nil
	case schema.TypeInt64:
		return "NUMBER(19)", nil
	case schema.TypeFloat64:
		return "BINARY_DOUBLE", nil
	case schema.TypeDecimal:
		return fmt.Sprintf("NUMBER(%d,%d)", c.Precision, c.Scale), nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR2(%d)", c.Size), nil
	case schema.TypeText, schema.TypeJSON:
		return "CLOB", nil
	case schema.TypeBytes:
		return "BLOB", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime, schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeUUID:
		return "VARCHAR2(36)", nil
	case schema.TypeEnum:
		return "VARCHAR2(255)", nil
	case schema.TypeArray:
		return "", tessera.NewUnsupportedFeatureError(Oracle, "array columns")
	}
	return "", tessera.NewSchemaError("", c.Name, fmt.Sprintf("unmapped column type %s", c.Type))
}

func (d oracleDialect) ColumnSQL(c *schema.Column, pk bool) (string, error) {
	typ, err := d.ColumnType(c)
	if err != nil {
		return "", err
	}
	b := d.QuoteIdent(c.Name) + " " + typ
	if c.Increment {
		b += " GENERATED BY DEFAULT AS IDENTITY"
	} else {
		b += defaultClause(d, c)
	}
	if pk {
		return b + " PRIMARY KEY", nil
	}
	if !c.Nullable {
		b += " NOT NULL"
	}
	if c.Unique {
		b += " UNIQUE"
	}
	return b, nil
}

func (d oracleDialect) CreateTableSQL(t *schema.Table) (string, error) {
	return buildCreateTable(d, t)
}

func (d oracleDialect) AddColumnSQL(table string, c *schema.Column) (string, error) {
	col, err := d.ColumnSQL(c, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.QuoteIdent(table), col), nil
}

func (d oracleDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d oracleDialect) RenameTableSQL(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d oracleDialect) RenameColumnSQL(table, from, to string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d oracleDialect) AlterColumnSQL(table string, from, to *schema.Column) ([]string, error) {
	typ, err := d.ColumnType(to)
	if err != nil {
		return nil, err
	}
	clause := d.QuoteIdent(to.Name) + " " + typ + defaultClause(d, to)
	// Re-stating an unchanged nullability is an error, so it is only
	// emitted when it differs.
	if from.Nullable != to.Nullable {
		if to.Nullable {
			clause += " NULL"
		} else {
			clause += " NOT NULL"
		}
	}
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY (%s)", d.QuoteIdent(table), clause)}, nil
}

func (d oracleDialect) CreateIndexSQL(table string, idx *schema.Index) (string, error) {
	return buildCreateIndex(d, table, idx)
}

func (d oracleDialect) DropIndexSQL(_, index string) string {
	return "DROP INDEX " + d.QuoteIdent(index)
}

func (d oracleDialect) RenameIndexSQL(_, from, to string) (string, error) {
	return fmt.Sprintf("ALTER INDEX %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d oracleDialect) AddConstraintSQL(table string, c *schema.Constraint) (string, error) {
	body, err := constraintBody(d, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name), body), nil
}

func (d oracleDialect) DropConstraintSQL(table string, c *schema.Constraint) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name)), nil
}

func (oracleDialect) LimitOffset(limit, offset int64) string {
	switch {
	case limit >= 0 && offset >= 0:
		return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	case limit >= 0:
		return fmt.Sprintf("FETCH NEXT %d ROWS ONLY", limit)
	case offset >= 0:
		return fmt.Sprintf("OFFSET %d ROWS", offset)
	}
	return ""
}

func (oracleDialect) Returning([]string) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(Oracle, "RETURNING clause")
}

func (oracleDialect) Upsert([]string, []string) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(Oracle, "upsert")
}

func (oracleDialect) SavepointSQL(name string) string {
	return "SAVEPOINT " + name
}

// ReleaseSavepointSQL returns "" since savepoints are released implicitly
// on commit.
func (oracleDialect) ReleaseSavepointSQL(string) string { return "" }

func (oracleDialect) RollbackSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (oracleDialect) ClassifyError(err error) error {
	return classifyOracle(err)
}
