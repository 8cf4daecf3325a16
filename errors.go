// Package tessera provides the shared error taxonomy for the ORM engine.
// Every failure surfaced by the builder, pool, session and migration
// packages is one of the typed errors defined here, so callers can branch
// on failure class with errors.As or the Is* helpers without string
// matching.
package tessera

import (
	"errors"
	"fmt"
	"time"
)

// ConstraintKind identifies which class of database constraint was violated.
type ConstraintKind string

// Constraint kinds reported by ConstraintError.
const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign-key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not-null"
)

// SchemaError reports an invalid schema definition or a reference to a
// table or column that does not exist in the model.
type SchemaError struct {
	Table  string // Table name, if known
	Column string // Column name, if known
	Msg    string // Description of the problem
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("tessera: schema: %s.%s: %s", e.Table, e.Column, e.Msg)
	case e.Table != "":
		return fmt.Sprintf("tessera: schema: %s: %s", e.Table, e.Msg)
	default:
		return fmt.Sprintf("tessera: schema: %s", e.Msg)
	}
}

// NewSchemaError returns a new SchemaError scoped to a table and column.
// Either scope may be empty.
func NewSchemaError(table, column, msg string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Msg: msg}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// TypeMismatchError reports a value whose Go type is incompatible with the
// declared column type it was bound to.
type TypeMismatchError struct {
	Table  string
	Column string
	Want   string // Declared column type
	Got    any    // The offending value
}

// Error returns the error string.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("tessera: type mismatch: %s.%s expects %s, got %T (%v)",
		e.Table, e.Column, e.Want, e.Got, e.Got)
}

// NewTypeMismatchError returns a new TypeMismatchError.
func NewTypeMismatchError(table, column, want string, got any) *TypeMismatchError {
	return &TypeMismatchError{Table: table, Column: column, Want: want, Got: got}
}

// IsTypeMismatch returns true if the error is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// UnsupportedFeatureError reports a feature requested of a dialect that the
// dialect cannot express, such as array columns on MySQL.
type UnsupportedFeatureError struct {
	Dialect string // Dialect name
	Feature string // Human-readable feature name
}

// Error returns the error string.
func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("tessera: dialect %s does not support %s", e.Dialect, e.Feature)
}

// NewUnsupportedFeatureError returns a new UnsupportedFeatureError.
func NewUnsupportedFeatureError(dialect, feature string) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{Dialect: dialect, Feature: feature}
}

// IsUnsupportedFeature returns true if the error is an UnsupportedFeatureError.
func IsUnsupportedFeature(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedFeatureError
	return errors.As(err, &e)
}

// ConnectionError reports a failure to establish or keep a database
// connection. It wraps the underlying driver error.
type ConnectionError struct {
	Op  string // Operation that failed (e.g. "dial", "ping")
	Err error  // Underlying error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("tessera: connection %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tessera: connection: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError returns a new ConnectionError.
func NewConnectionError(op string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Err: err}
}

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}

// PoolExhaustedError reports that no connection became available within the
// configured acquire timeout.
type PoolExhaustedError struct {
	Timeout time.Duration // Acquire timeout that elapsed
	Waiting int           // Requests waiting when the timeout fired
}

// Error returns the error string.
func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("tessera: pool exhausted: no connection within %s (%d waiting)",
		e.Timeout, e.Waiting)
}

// NewPoolExhaustedError returns a new PoolExhaustedError.
func NewPoolExhaustedError(timeout time.Duration, waiting int) *PoolExhaustedError {
	return &PoolExhaustedError{Timeout: timeout, Waiting: waiting}
}

// IsPoolExhausted returns true if the error is a PoolExhaustedError.
func IsPoolExhausted(err error) bool {
	if err == nil {
		return false
	}
	var e *PoolExhaustedError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation, classified by
// kind from the driver's error code so callers never inspect driver errors
// directly.
type ConstraintError struct {
	Kind       ConstraintKind // Which class of constraint failed
	Table      string         // Table involved, if the driver reported it
	Constraint string         // Constraint name, if the driver reported it
	Err        error          // Underlying driver error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	switch {
	case e.Constraint != "":
		return fmt.Sprintf("tessera: %s constraint %q violated: %v", e.Kind, e.Constraint, e.Err)
	case e.Table != "":
		return fmt.Sprintf("tessera: %s constraint violated on %s: %v", e.Kind, e.Table, e.Err)
	default:
		return fmt.Sprintf("tessera: %s constraint violated: %v", e.Kind, e.Err)
	}
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// NewConstraintError returns a new ConstraintError of the given kind.
func NewConstraintError(kind ConstraintKind, table, constraint string, err error) *ConstraintError {
	return &ConstraintError{Kind: kind, Table: table, Constraint: constraint, Err: err}
}

// IsConstraintError returns true if the error is a ConstraintError of any kind.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// IsUniqueViolation returns true if the error is a unique ConstraintError.
func IsUniqueViolation(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) && e.Kind == ConstraintUnique
}

// IsForeignKeyViolation returns true if the error is a foreign-key ConstraintError.
func IsForeignKeyViolation(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) && e.Kind == ConstraintForeignKey
}

// TransactionConflictError reports a serialization failure or deadlock
// detected by the database. The transaction has been rolled back and may be
// retried.
type TransactionConflictError struct {
	Err error // Underlying driver error
}

// Error returns the error string.
func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("tessera: transaction conflict: %v", e.Err)
}

// Unwrap returns the underlying driver error.
func (e *TransactionConflictError) Unwrap() error {
	return e.Err
}

// NewTransactionConflictError returns a new TransactionConflictError.
func NewTransactionConflictError(err error) *TransactionConflictError {
	return &TransactionConflictError{Err: err}
}

// IsTransactionConflict returns true if the error is a TransactionConflictError.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	var e *TransactionConflictError
	return errors.As(err, &e)
}

// IrreversibleMigrationError reports an attempt to roll back a migration
// that contains at least one operation with no reverse.
type IrreversibleMigrationError struct {
	Migration string // Migration ID
	Operation string // Description of the irreversible operation
}

// Error returns the error string.
func (e *IrreversibleMigrationError) Error() string {
	return fmt.Sprintf("tessera: migration %s is irreversible: %s", e.Migration, e.Operation)
}

// NewIrreversibleMigrationError returns a new IrreversibleMigrationError.
func NewIrreversibleMigrationError(migration, operation string) *IrreversibleMigrationError {
	return &IrreversibleMigrationError{Migration: migration, Operation: operation}
}

// IsIrreversibleMigration returns true if the error is an IrreversibleMigrationError.
func IsIrreversibleMigration(err error) bool {
	if err == nil {
		return false
	}
	var e *IrreversibleMigrationError
	return errors.As(err, &e)
}

// ChecksumMismatchError reports that an applied migration's recorded
// checksum no longer matches its current definition, meaning the migration
// file was edited after it was applied.
type ChecksumMismatchError struct {
	Migration string // Migration ID
	Recorded  string // Checksum stored in the history table
	Computed  string // Checksum of the current definition
}

// Error returns the error string.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("tessera: migration %s was modified after apply (recorded %s, computed %s)",
		e.Migration, e.Recorded, e.Computed)
}

// NewChecksumMismatchError returns a new ChecksumMismatchError.
func NewChecksumMismatchError(migration, recorded, computed string) *ChecksumMismatchError {
	return &ChecksumMismatchError{Migration: migration, Recorded: recorded, Computed: computed}
}

// IsChecksumMismatch returns true if the error is a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *ChecksumMismatchError
	return errors.As(err, &e)
}
