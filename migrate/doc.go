// Package migrate computes and applies schema migrations.
//
// A migration is an ordered list of operations, each able to render its
// forward SQL and, when reversible, its reverse SQL for any dialect. Diff
// compares two schema snapshots and produces the operation list turning
// the first into the second; Replay rebuilds a snapshot by applying
// operation lists in history order.
//
// # Files and history
//
// Migrations persist twice: as a YAML file in the migrations directory,
// and as a row in the history table once applied. The history row records
// a checksum of the operation list; a file edited after it was applied is
// detected before any further migration runs.
//
// # Applying
//
// The Engine applies each migration in its own transaction: either every
// operation in the migration takes effect or none do. Rollback refuses a
// migration containing an irreversible operation before executing any
// statement.
//
// # Introspection
//
// Inspect reads a live database's tables back into a snapshot, so drift
// between the migration files and the real schema can be diffed. The read
// is lossy where the dialect widened types when the schema was created.
package migrate
