package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

// Entity is one tracked row: its values indexed by column ordinal, plus the
// bookkeeping the session needs to know what changed. Entities are created
// with NewEntity for new rows or materialized by Session.Get for existing
// ones.
type Entity struct {
	table     *schema.Table
	values    []any
	original  []any
	dirty     map[int]struct{}
	persisted bool
	deleted   bool
}

// NewEntity returns an unpersisted entity for the given table. Set its
// columns and hand it to Session.Add.
func NewEntity(t *schema.Table) *Entity {
	return &Entity{
		table:  t,
		values: make([]any, len(t.Columns)),
		dirty:  make(map[int]struct{}),
	}
}

// Table returns the entity's table.
func (e *Entity) Table() *schema.Table { return e.table }

// Persisted reports whether the entity exists in the database.
func (e *Entity) Persisted() bool { return e.persisted }

// Dirty reports whether the entity has unflushed changes.
func (e *Entity) Dirty() bool { return len(e.dirty) > 0 }

// Set assigns a column value after type-checking it against the schema.
func (e *Entity) Set(column string, v any) error {
	i, ok := e.table.ColumnIndex(column)
	if !ok {
		return tessera.NewSchemaError(e.table.Name, column, "unknown column")
	}
	if err := schema.ValidateValue(e.table.Name, e.table.Columns[i], v); err != nil {
		return err
	}
	e.values[i] = v
	e.dirty[i] = struct{}{}
	return nil
}

// MustSet is Set for values known to be valid; it panics on error.
func (e *Entity) MustSet(column string, v any) *Entity {
	if err := e.Set(column, v); err != nil {
		panic(err)
	}
	return e
}

// Get returns a column value.
func (e *Entity) Get(column string) (any, error) {
	i, ok := e.table.ColumnIndex(column)
	if !ok {
		return nil, tessera.NewSchemaError(e.table.Name, column, "unknown column")
	}
	return e.values[i], nil
}

// MustGet is Get that panics on unknown columns.
func (e *Entity) MustGet(column string) any {
	v, err := e.Get(column)
	if err != nil {
		panic(err)
	}
	return v
}

// GetString returns a string column value.
func (e *Entity) GetString(column string) (string, error) {
	v, err := e.Get(column)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	}
	return "", tessera.NewTypeMismatchError(e.table.Name, column, "string", v)
}

// GetInt64 returns an integer column value, widening smaller integers.
func (e *Entity) GetInt64(column string) (int64, error) {
	v, err := e.Get(column)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case nil:
		return 0, nil
	}
	return 0, tessera.NewTypeMismatchError(e.table.Name, column, "int64", v)
}

// GetBool returns a boolean column value. Integer-backed booleans, as
// SQLite stores them, convert transparently.
func (e *Entity) GetBool(column string) (bool, error) {
	v, err := e.Get(column)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case nil:
		return false, nil
	}
	return false, tessera.NewTypeMismatchError(e.table.Name, column, "bool", v)
}

// GetTime returns a temporal column value.
func (e *Entity) GetTime(column string) (time.Time, error) {
	v, err := e.Get(column)
	if err != nil {
		return time.Time{}, err
	}
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		t, err := time.Parse("2006-01-02 15:04:05", x)
		if err == nil {
			return t, nil
		}
		t, err = time.Parse(time.RFC3339, x)
		if err == nil {
			return t, nil
		}
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, tessera.NewTypeMismatchError(e.table.Name, column, "time", v)
}

// Key returns the primary key values, in key column order. Unset components
// are nil.
func (e *Entity) Key() []any {
	key := make([]any, len(e.table.PrimaryKey))
	for i, col := range e.table.PrimaryKey {
		if j, ok := e.table.ColumnIndex(col); ok {
			key[i] = e.values[j]
		}
	}
	return key
}

// hasKey reports whether every primary key component is set.
func (e *Entity) hasKey() bool {
	if len(e.table.PrimaryKey) == 0 {
		return false
	}
	for _, v := range e.Key() {
		if v == nil {
			return false
		}
	}
	return true
}

// markClean records the current values as the persisted baseline.
func (e *Entity) markClean() {
	e.persisted = true
	e.dirty = make(map[int]struct{})
	e.original = append(e.original[:0:0], e.values...)
}

// revert restores the persisted baseline, dropping unflushed changes.
func (e *Entity) revert() {
	if e.original != nil {
		copy(e.values, e.original)
	}
	e.dirty = make(map[int]struct{})
	e.deleted = false
}

// snapshot captures the entity's full in-memory state.
func (e *Entity) snapshot() entityState {
	st := entityState{
		values:    append([]any(nil), e.values...),
		persisted: e.persisted,
		deleted:   e.deleted,
		dirty:     make(map[int]struct{}, len(e.dirty)),
	}
	if e.original != nil {
		st.original = append([]any(nil), e.original...)
	}
	for k := range e.dirty {
		st.dirty[k] = struct{}{}
	}
	return st
}

// entityState is a saved copy of an entity used by savepoint rollback.
type entityState struct {
	values    []any
	original  []any
	dirty     map[int]struct{}
	persisted bool
	deleted   bool
}

func (e *Entity) restore(st entityState) {
	copy(e.values, st.values)
	e.original = st.original
	e.dirty = st.dirty
	e.persisted = st.persisted
	e.deleted = st.deleted
}

// identityKey fingerprints a primary key tuple.
func identityKey(table string, key []any) string {
	parts := make([]string, 0, len(key)+1)
	parts = append(parts, table)
	for _, v := range key {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "\x00")
}
