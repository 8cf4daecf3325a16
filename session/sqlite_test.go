package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/pool"
	"github.com/tessera-orm/tessera/schema"
	"github.com/tessera-orm/tessera/session"
	tsql "github.com/tessera-orm/tessera/sql"
)

// newSQLitePool opens an in-memory database. MaxConns is pinned to one so
// every checkout sees the same memory database.
func newSQLitePool(t *testing.T, tables ...*schema.Table) *pool.Pool {
	t.Helper()
	p, err := pool.Open(dialect.SQLite, "file::memory:", pool.Config{MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	ctx := context.Background()
	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	for _, tbl := range tables {
		ddl, err := p.Dialect().CreateTableSQL(tbl)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, ddl)
		require.NoError(t, err)
	}
	return p
}

func accountTable() *schema.Table {
	return schema.NewTable("accounts").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.String("email", 255).SetUnique(),
			schema.Bool("is_active"),
			schema.Int64("logins"),
		).
		SetPrimaryKey("id")
}

func TestSQLiteRoundTrip(t *testing.T) {
	accounts := accountTable()
	p := newSQLitePool(t, accounts)
	ctx := context.Background()

	s := session.New(p)
	e := session.NewEntity(accounts).
		MustSet("email", "ada@example.com").
		MustSet("is_active", true).
		MustSet("logins", int64(0))
	require.NoError(t, s.Add(e))
	require.NoError(t, s.Commit(ctx))

	require.True(t, e.Persisted())
	id, err := e.GetInt64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.NoError(t, s.Close())

	// Fresh session, fresh identity map: the row comes off disk.
	s2 := session.New(p)
	defer s2.Close()
	got, err := s2.Get(ctx, accounts, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	email, err := got.GetString("email")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
	active, err := got.GetBool("is_active")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, got.Set("logins", int64(3)))
	require.NoError(t, s2.Commit(ctx))

	logins, err := got.GetInt64("logins")
	require.NoError(t, err)
	assert.Equal(t, int64(3), logins)
}

func TestSQLiteUniqueViolation(t *testing.T) {
	accounts := accountTable()
	p := newSQLitePool(t, accounts)
	ctx := context.Background()

	s := session.New(p)
	defer s.Close()

	first := session.NewEntity(accounts).
		MustSet("email", "dup@example.com").
		MustSet("is_active", true).
		MustSet("logins", int64(0))
	require.NoError(t, s.Add(first))
	require.NoError(t, s.Commit(ctx))

	second := session.NewEntity(accounts).
		MustSet("email", "dup@example.com").
		MustSet("is_active", false).
		MustSet("logins", int64(0))
	require.NoError(t, s.Add(second))

	err := s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, tessera.IsUniqueViolation(err), "got %v", err)

	// The failed insert stays pending; fixing the value lets the retry
	// go through.
	require.NoError(t, second.Set("email", "unique@example.com"))
	require.NoError(t, s.Commit(ctx))
	assert.True(t, second.Persisted())
}

func TestSQLiteSavepoints(t *testing.T) {
	accounts := accountTable()
	p := newSQLitePool(t, accounts)
	ctx := context.Background()

	s := session.New(p)
	defer s.Close()

	e := session.NewEntity(accounts).
		MustSet("email", "ada@example.com").
		MustSet("is_active", true).
		MustSet("logins", int64(1))
	require.NoError(t, s.Add(e))
	require.NoError(t, s.Begin(ctx))

	err := s.RunNested(ctx, func(s *session.Session) error {
		return e.Set("logins", int64(2))
	})
	require.NoError(t, err)

	// A failing nested scope rolls its write back without touching the
	// released one.
	require.NoError(t, s.BeginNested(ctx))
	require.NoError(t, e.Set("logins", int64(99)))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.RollbackNested(ctx))

	logins, err := e.GetInt64("logins")
	require.NoError(t, err)
	assert.Equal(t, int64(2), logins)

	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Close())

	s2 := session.New(p)
	defer s2.Close()
	got, err := s2.Get(ctx, accounts, e.MustGet("id"))
	require.NoError(t, err)
	require.NotNil(t, got)
	logins, err = got.GetInt64("logins")
	require.NoError(t, err)
	assert.Equal(t, int64(2), logins)
}

func TestSQLiteQueryFilters(t *testing.T) {
	accounts := accountTable()
	p := newSQLitePool(t, accounts)
	ctx := context.Background()

	s := session.New(p)
	defer s.Close()

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		e := session.NewEntity(accounts).
			MustSet("email", email).
			MustSet("is_active", i < 2).
			MustSet("logins", int64(i))
		require.NoError(t, s.Add(e))
	}
	require.NoError(t, s.Commit(ctx))

	q := tsql.Select(accounts).
		Where(tsql.EQ("is_active", true)).
		OrderBy("email")
	got, err := s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 2)

	email, err := got[0].GetString("email")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
}
