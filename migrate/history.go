package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
	tsql "github.com/tessera-orm/tessera/sql"
)

// DefaultHistoryTable is the history table name used when none is
// configured.
const DefaultHistoryTable = "tessera_migrations"

// executor is the slice of database surface history bookkeeping needs;
// both *sql.Tx and a pooled connection satisfy it.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// HistoryTable returns the descriptor of the named history table: one row
// per applied migration.
func HistoryTable(name string) *schema.Table {
	return schema.NewTable(name).
		AddColumns(
			schema.String("id", 255),
			schema.String("namespace", 255),
			schema.Timestamp("applied_at"),
			schema.String("checksum", 64),
			schema.Int64("execution_time_ms"),
		).
		SetPrimaryKey("id")
}

// Record is one applied-migration row from the history table.
type Record struct {
	ID          string
	Namespace   string
	AppliedAt   time.Time
	Checksum    string
	ExecutionMS int64
}

type history struct {
	table *schema.Table
	d     dialect.Dialect
}

func newHistory(name string, d dialect.Dialect) *history {
	return &history{table: HistoryTable(name), d: d}
}

// ensure creates the history table when it does not exist yet. Existence
// is probed with a harmless select since not every dialect has CREATE
// TABLE IF NOT EXISTS.
func (h *history) ensure(ctx context.Context, ex executor) error {
	probe, args, err := tsql.Select(h.table, "id").Limit(1).Build(h.d)
	if err != nil {
		return err
	}
	if rows, err := ex.QueryContext(ctx, probe, args...); err == nil {
		return rows.Close()
	}
	ddl, err := h.d.CreateTableSQL(h.table)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("tessera: creating history table %s: %w", h.table.Name, h.d.ClassifyError(err))
	}
	return nil
}

// load returns every applied record keyed by migration ID.
func (h *history) load(ctx context.Context, ex executor) (map[string]Record, error) {
	query, args, err := tsql.Select(h.table).OrderBy("id").Build(h.d)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, h.d.ClassifyError(err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		var (
			rec       Record
			appliedAt any
		)
		if err := rows.Scan(&rec.ID, &rec.Namespace, &appliedAt, &rec.Checksum, &rec.ExecutionMS); err != nil {
			return nil, err
		}
		if t, err := toTime(appliedAt); err == nil {
			rec.AppliedAt = t
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

func (h *history) insert(ctx context.Context, ex executor, rec Record) error {
	query, args, err := tsql.Insert(h.table).
		Set("id", rec.ID).
		Set("namespace", rec.Namespace).
		Set("applied_at", rec.AppliedAt).
		Set("checksum", rec.Checksum).
		Set("execution_time_ms", rec.ExecutionMS).
		Build(h.d)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return h.d.ClassifyError(err)
	}
	return nil
}

func (h *history) delete(ctx context.Context, ex executor, id string) error {
	query, args, err := tsql.Delete(h.table).Where(tsql.EQ("id", id)).Build(h.d)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return h.d.ClassifyError(err)
	}
	return nil
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	}
	return time.Time{}, fmt.Errorf("tessera: cannot read %T as time", v)
}

func parseTime(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00", // sqlite driver text format
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("tessera: cannot parse %q as time", s)
}
