package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return Postgres }

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (postgresDialect) Supports(Feature) bool { return true }

func (d postgresDialect) ColumnType(c *schema.Column) (string, error) {
	switch c.Type {
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeInt16:
		return "SMALLINT", nil
	case schema.TypeInt32:
		return "INTEGER", nil
	case schema.TypeInt64:
		return "BIGINT", nil
	case schema.TypeFloat64:
		return "DOUBLE PRECISION", nil
	case schema.TypeDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale), nil
	case schema.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", c.Size), nil
	case schema.TypeText, schema.TypeEnum:
		return "TEXT", nil
	case schema.TypeBytes:
		return "BYTEA", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeUUID:
		return "UUID", nil
	case schema.TypeJSON:
		return "JSONB", nil
	case schema.TypeArray:
		elem, err := d.ColumnType(&schema.Column{Name: c.Name, Type: c.Elem, Size: 255})
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	}
	return "", tessera.NewSchemaError("", c.Name, fmt.Sprintf("unmapped column type %s", c.Type))
}

func (d postgresDialect) ColumnSQL(c *schema.Column, pk bool) (string, error) {
	var typ string
	if c.Increment {
		switch c.Type {
		case schema.TypeInt16:
			typ = "SMALLSERIAL"
		case schema.TypeInt32:
			typ = "SERIAL"
		case schema.TypeInt64:
			typ = "BIGSERIAL"
		default:
			return "", tessera.NewSchemaError("", c.Name, "auto-increment requires an integer type")
		}
	} else {
		var err error
		typ, err = d.ColumnType(c)
		if err != nil {
			return "", err
		}
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
	if !c.Increment {
		b += defaultClause(d, c)
	}
	return b, nil
}

func (d postgresDialect) CreateTableSQL(t *schema.Table) (string, error) {
	return buildCreateTable(d, t)
}

func (d postgresDialect) AddColumnSQL(table string, c *schema.Column) (string, error) {
	col, err := d.ColumnSQL(c, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), col), nil
}

func (d postgresDialect) DropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d postgresDialect) RenameTableSQL(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to))
}

func (d postgresDialect) RenameColumnSQL(table, from, to string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.QuoteIdent(table), d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d postgresDialect) AlterColumnSQL(table string, from, to *schema.Column) ([]string, error) {
	prefix := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(to.Name))
	var stmts []string
	fromType, err := d.ColumnType(from)
	if err != nil {
		return nil, err
	}
	toType, err := d.ColumnType(to)
	if err != nil {
		return nil, err
	}
	if fromType != toType {
		stmts = append(stmts, fmt.Sprintf("%s TYPE %s USING %s::%s",
			prefix, toType, d.QuoteIdent(to.Name), toType))
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			stmts = append(stmts, prefix+" DROP NOT NULL")
		} else {
			stmts = append(stmts, prefix+" SET NOT NULL")
		}
	}
	if !reflect.DeepEqual(from.Default, to.Default) || from.DefaultExpr != to.DefaultExpr {
		if clause := defaultClause(d, to); clause != "" {
			stmts = append(stmts, prefix+" SET"+clause)
		} else {
			stmts = append(stmts, prefix+" DROP DEFAULT")
		}
	}
	return stmts, nil
}

func (d postgresDialect) CreateIndexSQL(table string, idx *schema.Index) (string, error) {
	return buildCreateIndex(d, table, idx)
}

func (d postgresDialect) DropIndexSQL(_, index string) string {
	return "DROP INDEX " + d.QuoteIdent(index)
}

func (d postgresDialect) RenameIndexSQL(_, from, to string) (string, error) {
	return fmt.Sprintf("ALTER INDEX %s RENAME TO %s", d.QuoteIdent(from), d.QuoteIdent(to)), nil
}

func (d postgresDialect) AddConstraintSQL(table string, c *schema.Constraint) (string, error) {
	body, err := constraintBody(d, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name), body), nil
}

func (d postgresDialect) DropConstraintSQL(table string, c *schema.Constraint) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		d.QuoteIdent(table), d.QuoteIdent(c.Name)), nil
}

func (postgresDialect) LimitOffset(limit, offset int64) string {
	switch {
	case limit >= 0 && offset >= 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit >= 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset >= 0:
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

func (d postgresDialect) Returning(columns []string) (string, error) {
	if len(columns) == 0 {
		return "RETURNING *", nil
	}
	return "RETURNING " + quoteJoin(d, columns), nil
}

func (d postgresDialect) Upsert(conflict, update []string) (string, error) {
	return upsertOnConflict(d, conflict, update)
}

func (postgresDialect) SavepointSQL(name string) string {
	return "SAVEPOINT " + name
}

func (postgresDialect) ReleaseSavepointSQL(name string) string {
	return "RELEASE SAVEPOINT " + name
}

func (postgresDialect) RollbackSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (postgresDialect) ClassifyError(err error) error {
	return classifyPostgres(err)
}

// upsertOnConflict is the ON CONFLICT clause shared by PostgreSQL and
// SQLite.
func upsertOnConflict(d Dialect, conflict, update []string) (string, error) {
	if len(conflict) == 0 {
		return "", tessera.NewSchemaError("", "", "upsert requires conflict columns")
	}
	if len(update) == 0 {
		return "ON CONFLICT (" + quoteJoin(d, conflict) + ") DO NOTHING", nil
	}
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = d.QuoteIdent(col) + " = EXCLUDED." + d.QuoteIdent(col)
	}
	return "ON CONFLICT (" + quoteJoin(d, conflict) + ") DO UPDATE SET " + strings.Join(sets, ", "), nil
}
