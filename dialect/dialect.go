package dialect

import (
	"fmt"

	"github.com/tessera-orm/tessera/schema"
)

// Dialect names.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Oracle   = "oracle"
)

// Feature is a capability a dialect may or may not have.
type Feature int

// Dialect capabilities.
const (
	// FeatureReturning is the RETURNING clause on INSERT/UPDATE/DELETE.
	FeatureReturning Feature = iota
	// FeatureUpsert is conflict-handling inserts (ON CONFLICT / ON
	// DUPLICATE KEY).
	FeatureUpsert
	// FeatureArrays is native array column types.
	FeatureArrays
	// FeaturePartialIndexes is CREATE INDEX ... WHERE.
	FeaturePartialIndexes
	// FeatureILike is a native case-insensitive LIKE operator. Dialects
	// without it get LOWER()-wrapped LIKE from the renderer.
	FeatureILike
	// FeatureAlterColumnType is in-place column type changes.
	FeatureAlterColumnType
	// FeatureRenameIndex is renaming an index without rebuilding it.
	FeatureRenameIndex
	// FeatureAddConstraint is ALTER TABLE ... ADD CONSTRAINT.
	FeatureAddConstraint
)

// Dialect adapts the engine to one SQL flavor. Implementations are
// stateless and safe for concurrent use.
type Dialect interface {
	// Name returns the dialect constant.
	Name() string
	// QuoteIdent quotes an identifier.
	QuoteIdent(name string) string
	// Placeholder returns the n-th parameter placeholder, 1-based.
	Placeholder(n int) string
	// Supports reports whether the dialect has the given capability.
	Supports(f Feature) bool

	// ColumnType maps a portable column to its native SQL type.
	ColumnType(c *schema.Column) (string, error)
	// ColumnSQL renders a full column definition. pk marks the column as
	// the table's sole primary key, letting the dialect render the key
	// inline.
	ColumnSQL(c *schema.Column, pk bool) (string, error)
	// CreateTableSQL renders CREATE TABLE for the given table, including
	// its primary key and inline constraints.
	CreateTableSQL(t *schema.Table) (string, error)
	// AddColumnSQL renders ALTER TABLE ... ADD COLUMN.
	AddColumnSQL(table string, c *schema.Column) (string, error)
	// DropColumnSQL renders ALTER TABLE ... DROP COLUMN.
	DropColumnSQL(table, column string) string
	// RenameTableSQL renders a table rename.
	RenameTableSQL(from, to string) string
	// RenameColumnSQL renders a column rename.
	RenameColumnSQL(table, from, to string) (string, error)
	// AlterColumnSQL renders the statements changing a column from one
	// definition to another.
	AlterColumnSQL(table string, from, to *schema.Column) ([]string, error)
	// CreateIndexSQL renders CREATE [UNIQUE] INDEX.
	CreateIndexSQL(table string, idx *schema.Index) (string, error)
	// DropIndexSQL renders DROP INDEX.
	DropIndexSQL(table, index string) string
	// RenameIndexSQL renders an index rename.
	RenameIndexSQL(table, from, to string) (string, error)
	// AddConstraintSQL renders ALTER TABLE ... ADD CONSTRAINT.
	AddConstraintSQL(table string, c *schema.Constraint) (string, error)
	// DropConstraintSQL renders the statement dropping a constraint.
	DropConstraintSQL(table string, c *schema.Constraint) (string, error)

	// LimitOffset renders the row-limiting clause. Negative values mean
	// unset; the empty string means no clause.
	LimitOffset(limit, offset int64) string
	// Returning renders a RETURNING clause over the given columns.
	Returning(columns []string) (string, error)
	// Upsert renders the conflict clause appended to an INSERT: on
	// conflict over the first column set, update the second.
	Upsert(conflict, update []string) (string, error)

	// SavepointSQL renders savepoint creation.
	SavepointSQL(name string) string
	// ReleaseSavepointSQL renders savepoint release, or "" where release
	// is implicit.
	ReleaseSavepointSQL(name string) string
	// RollbackSavepointSQL renders a rollback to the named savepoint.
	RollbackSavepointSQL(name string) string

	// ClassifyError maps a driver error to the shared taxonomy. Errors it
	// cannot classify are returned unchanged.
	ClassifyError(err error) error
}

// Get returns the dialect with the given name.
func Get(name string) (Dialect, error) {
	switch name {
	case Postgres:
		return postgresDialect{}, nil
	case MySQL:
		return mysqlDialect{}, nil
	case SQLite:
		return sqliteDialect{}, nil
	case Oracle:
		return oracleDialect{}, nil
	}
	return nil, fmt.Errorf("tessera: unknown dialect %q", name)
}
