package dialect

import (
	"fmt"
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return SQLite }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Supports(f Feature) bool {
	switch f {
	case FeatureReturning, FeatureUpsert, FeaturePartialIndexes:
		return true
	}
	return false
}

func (d sqliteDialect) ColumnType(c *schema.Column) (string, error) {
	switch c.Type {
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		return "INTEGER", nil
	case schema.TypeFloat64:
		return "REAL", nil
	case schema.TypeDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale), nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", c.Size), nil
	case schema.TypeText, schema.TypeEnum, schema.TypeUUID, schema.TypeJSON:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BLOB", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeTimestamp:
		return "DATETIME", nil
	case schema.TypeArray:
		return "", tessera.NewUnsupportedFeatureError(SQLite, "array columns")
	}
	return "", tessera.NewSchemaError("", c.Name, fmt.Sprintf("unmapped column type %s", c.Type))
}

func (d sqliteDialect) ColumnSQL(c *schema.Column, pk bool) (string, error) {
	if c.Increment {
		// AUTOINCREMENT is only valid on an INTEGER PRIMARY KEY column.
		if !pk {
			return "", tessera.NewSchemaError("", c.Name, "auto-increment column must be the sole primary key")
		}
		return d.QuoteIdent(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
	}
	typ, err := d.ColumnType(c)
	if err != nil {
		return "", err
	}
	b := d.QuoteIdent(c.Name) + " " + typ
	if pk {
		return b + " PRIMARY KEY", nil
	}
	if !c.Nullable {
		b += " NOT NULL"
	}
	if c.Unique {
		b += " UNIQUE"
	}
	b += defaultClause(d, c)
	return b, nil
}

func (d sqliteDialect) CreateTableSQL(t *schema.Table) (string, error) {
	return buildCreateTable(d, t)
}

func (d sqliteDialect) AddColumnSQL(table string, c *schema.Column) (string, error) {
	col, err := d.ColumnSQL(c, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), col), nil
}

func (d sqliteDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d sqliteDialect) RenameTableSQL(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d sqliteDialect) RenameColumnSQL(table, from, to string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (sqliteDialect) AlterColumnSQL(string, *schema.Column, *schema.Column) ([]string, error) {
	return nil, tessera.NewUnsupportedFeatureError(SQLite, "altering column definitions")
}

func (d sqliteDialect) CreateIndexSQL(table string, idx *schema.Index) (string, error) {
	return buildCreateIndex(d, table, idx)
}

func (d sqliteDialect) DropIndexSQL(_, index string) string {
	return "DROP INDEX " + d.QuoteIdent(index)
}

func (sqliteDialect) RenameIndexSQL(string, string, string) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(SQLite, "renaming indexes")
}

func (sqliteDialect) AddConstraintSQL(string, *schema.Constraint) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(SQLite, "adding table constraints")
}

func (sqliteDialect) DropConstraintSQL(string, *schema.Constraint) (string, error) {
	return "", tessera.NewUnsupportedFeatureError(SQLite, "dropping table constraints")
}

func (sqliteDialect) LimitOffset(limit, offset int64) string {
	switch {
	case limit >= 0 && offset >= 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit >= 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset >= 0:
		// OFFSET requires a LIMIT; -1 means unlimited.
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

func (d sqliteDialect) Returning(columns []string) (string, error) {
	if len(columns) == 0 {
		return "RETURNING *", nil
	}
	return "RETURNING " + quoteJoin(d, columns), nil
}

func (d sqliteDialect) Upsert(conflict, update []string) (string, error) {
	return upsertOnConflict(d, conflict, update)
}

func (sqliteDialect) SavepointSQL(name string) string {
	return "SAVEPOINT " + name
}

func (sqliteDialect) ReleaseSavepointSQL(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (sqliteDialect) RollbackSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (sqliteDialect) ClassifyError(err error) error {
	return classifySQLite(err)
}
