package dialect

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/tessera-orm/tessera"
)

// classifyPostgres maps lib/pq errors by SQLSTATE class.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	var pqe *pq.Error
	if !errors.As(err, &pqe) {
		return classifyCommon(err)
	}
	switch pqe.Code {
	case "23505":
		return tessera.NewConstraintError(tessera.ConstraintUnique, pqe.Table, pqe.Constraint, err)
	case "23503":
		return tessera.NewConstraintError(tessera.ConstraintForeignKey, pqe.Table, pqe.Constraint, err)
	case "23514":
		return tessera.NewConstraintError(tessera.ConstraintCheck, pqe.Table, pqe.Constraint, err)
	case "23502":
		return tessera.NewConstraintError(tessera.ConstraintNotNull, pqe.Table, pqe.Column, err)
	case "40001", "40P01":
		return tessera.NewTransactionConflictError(err)
	}
	if pqe.Code.Class() == "08" {
		return tessera.NewConnectionError("query", err)
	}
	return err
}

// classifyMySQL maps go-sql-driver/mysql errors by server error number.
func classifyMySQL(err error) error {
	if err == nil {
		return nil
	}
	var mye *mysql.MySQLError
	if !errors.As(err, &mye) {
		return classifyCommon(err)
	}
	switch mye.Number {
	case 1062, 1586:
		return tessera.NewConstraintError(tessera.ConstraintUnique, "", "", err)
	case 1451, 1452:
		return tessera.NewConstraintError(tessera.ConstraintForeignKey, "", "", err)
	case 3819:
		return tessera.NewConstraintError(tessera.ConstraintCheck, "", "", err)
	case 1048:
		return tessera.NewConstraintError(tessera.ConstraintNotNull, "", "", err)
	case 1213, 1205:
		return tessera.NewTransactionConflictError(err)
	case 1040, 1042, 1043, 1053:
		return tessera.NewConnectionError("query", err)
	}
	return err
}

// classifySQLite matches on the driver's message text; modernc.org/sqlite
// reports extended result codes only through the message.
func classifySQLite(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return tessera.NewConstraintError(tessera.ConstraintUnique, "", "", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return tessera.NewConstraintError(tessera.ConstraintForeignKey, "", "", err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return tessera.NewConstraintError(tessera.ConstraintCheck, "", "", err)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return tessera.NewConstraintError(tessera.ConstraintNotNull, "", "", err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return tessera.NewTransactionConflictError(err)
	}
	return classifyCommon(err)
}

// classifyOracle matches on ORA- codes in the message; there is no Oracle
// driver dependency to unwrap against.
func classifyOracle(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ORA-00001"):
		return tessera.NewConstraintError(tessera.ConstraintUnique, "", "", err)
	case strings.Contains(msg, "ORA-02291"), strings.Contains(msg, "ORA-02292"):
		return tessera.NewConstraintError(tessera.ConstraintForeignKey, "", "", err)
	case strings.Contains(msg, "ORA-02290"):
		return tessera.NewConstraintError(tessera.ConstraintCheck, "", "", err)
	case strings.Contains(msg, "ORA-01400"):
		return tessera.NewConstraintError(tessera.ConstraintNotNull, "", "", err)
	case strings.Contains(msg, "ORA-00060"), strings.Contains(msg, "ORA-08177"):
		return tessera.NewTransactionConflictError(err)
	case strings.Contains(msg, "ORA-03113"), strings.Contains(msg, "ORA-03114"), strings.Contains(msg, "ORA-12541"):
		return tessera.NewConnectionError("query", err)
	}
	return classifyCommon(err)
}

// classifyCommon handles driver-independent failures.
func classifyCommon(err error) error {
	switch {
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return tessera.NewConnectionError("query", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	}
	return err
}
