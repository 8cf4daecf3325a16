// Package dialect abstracts the SQL flavor of the supported databases:
// PostgreSQL, MySQL, SQLite and Oracle.
//
// A Dialect knows how to quote identifiers, number placeholders, map
// portable column types to native ones, shape DDL statements, and classify
// driver errors into the shared taxonomy. Every piece of dialect-specific
// knowledge lives here; the query renderer and the migration engine never
// branch on a dialect name themselves.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.Oracle   = "oracle"
//
// # Usage
//
//	d, err := dialect.Get(dialect.Postgres)
//	d.Placeholder(1)      // "$1"
//	d.QuoteIdent("users") // `"users"`
//	d.Supports(dialect.FeatureReturning) // true
//
// Capabilities differ per dialect and are queried with Supports; asking a
// dialect to produce SQL for a feature it lacks returns an
// UnsupportedFeatureError rather than wrong SQL.
//
// # Error Classification
//
// ClassifyError translates driver errors (lib/pq, go-sql-driver/mysql,
// modernc.org/sqlite) into the typed errors of the root package, so callers
// can test for unique violations or transaction conflicts without importing
// a driver.
package dialect
