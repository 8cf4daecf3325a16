package dialect_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
)

func TestClassifyPostgres(t *testing.T) {
	d := get(t, dialect.Postgres)

	t.Run("UniqueViolation", func(t *testing.T) {
		src := &pq.Error{Code: "23505", Table: "users", Constraint: "users_email_key"}
		err := d.ClassifyError(src)
		require.True(t, tessera.IsUniqueViolation(err))
		var ce *tessera.ConstraintError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "users", ce.Table)
		assert.Equal(t, "users_email_key", ce.Constraint)
		assert.True(t, errors.Is(err, src))
	})

	t.Run("ForeignKey", func(t *testing.T) {
		err := d.ClassifyError(&pq.Error{Code: "23503"})
		assert.True(t, tessera.IsForeignKeyViolation(err))
	})

	t.Run("NotNull", func(t *testing.T) {
		err := d.ClassifyError(&pq.Error{Code: "23502", Column: "email"})
		var ce *tessera.ConstraintError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, tessera.ConstraintNotNull, ce.Kind)
	})

	t.Run("SerializationFailure", func(t *testing.T) {
		assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(&pq.Error{Code: "40001"})))
		assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(&pq.Error{Code: "40P01"})))
	})

	t.Run("ConnectionClass", func(t *testing.T) {
		assert.True(t, tessera.IsConnectionError(d.ClassifyError(&pq.Error{Code: "08006"})))
	})

	t.Run("Passthrough", func(t *testing.T) {
		src := errors.New("some driver noise")
		assert.Equal(t, src, d.ClassifyError(src))
		assert.NoError(t, d.ClassifyError(nil))
	})

	t.Run("Wrapped", func(t *testing.T) {
		src := fmt.Errorf("exec: %w", &pq.Error{Code: "23505"})
		assert.True(t, tessera.IsUniqueViolation(d.ClassifyError(src)))
	})
}

func TestClassifyMySQL(t *testing.T) {
	d := get(t, dialect.MySQL)

	assert.True(t, tessera.IsUniqueViolation(d.ClassifyError(&mysql.MySQLError{Number: 1062})))
	assert.True(t, tessera.IsForeignKeyViolation(d.ClassifyError(&mysql.MySQLError{Number: 1452})))
	assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(&mysql.MySQLError{Number: 1213})))
	assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(&mysql.MySQLError{Number: 1205})))

	err := d.ClassifyError(&mysql.MySQLError{Number: 1048})
	var ce *tessera.ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, tessera.ConstraintNotNull, ce.Kind)

	unknown := &mysql.MySQLError{Number: 1146}
	assert.Equal(t, unknown, d.ClassifyError(unknown))
}

func TestClassifySQLite(t *testing.T) {
	d := get(t, dialect.SQLite)

	assert.True(t, tessera.IsUniqueViolation(d.ClassifyError(
		errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))))
	assert.True(t, tessera.IsForeignKeyViolation(d.ClassifyError(
		errors.New("constraint failed: FOREIGN KEY constraint failed (787)"))))
	assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(
		errors.New("database is locked (5) (SQLITE_BUSY)"))))

	err := d.ClassifyError(errors.New("constraint failed: NOT NULL constraint failed: users.name (1299)"))
	var ce *tessera.ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, tessera.ConstraintNotNull, ce.Kind)
}

func TestClassifyOracle(t *testing.T) {
	d := get(t, dialect.Oracle)

	assert.True(t, tessera.IsUniqueViolation(d.ClassifyError(
		errors.New("ORA-00001: unique constraint (APP.USERS_EMAIL_UK) violated"))))
	assert.True(t, tessera.IsForeignKeyViolation(d.ClassifyError(
		errors.New("ORA-02291: integrity constraint violated - parent key not found"))))
	assert.True(t, tessera.IsTransactionConflict(d.ClassifyError(
		errors.New("ORA-00060: deadlock detected while waiting for resource"))))
	assert.True(t, tessera.IsConnectionError(d.ClassifyError(
		errors.New("ORA-03113: end-of-file on communication channel"))))
}
