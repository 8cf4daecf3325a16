package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/migrate"
	"github.com/tessera-orm/tessera/schema"
)

func usersV1() *schema.Table {
	return schema.NewTable("users").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.String("name", 50),
		).
		SetPrimaryKey("id")
}

func usersV2() *schema.Table {
	return usersV1().AddColumns(schema.String("email", 255).Null())
}

func TestDiffAddColumn(t *testing.T) {
	a := schema.NewSnapshot(usersV1())
	b := schema.NewSnapshot(usersV2())

	ops := migrate.Diff(a, b)
	require.Len(t, ops, 1)
	add, ok := ops[0].(*migrate.AddColumn)
	require.True(t, ok, "got %T", ops[0])
	assert.Equal(t, "users", add.Table)
	assert.Equal(t, "email", add.Column.Name)
	assert.Equal(t, schema.TypeString, add.Column.Type)
	assert.Equal(t, 255, add.Column.Size)
	assert.True(t, add.Column.Nullable)

	d, err := dialect.Get(dialect.Postgres)
	require.NoError(t, err)
	forward, err := add.ForwardSQL(d)
	require.NoError(t, err)
	assert.Equal(t, []string{`ALTER TABLE "users" ADD COLUMN "email" VARCHAR(255)`}, forward)
	reverse, err := add.ReverseSQL(d)
	require.NoError(t, err)
	assert.Equal(t, []string{`ALTER TABLE "users" DROP COLUMN "email"`}, reverse)
}

func TestDiffIdentical(t *testing.T) {
	snap := schema.NewSnapshot(usersV2(), schema.NewTable("tags").
		AddColumns(schema.Int64("id"), schema.String("label", 40)).
		SetPrimaryKey("id"))
	assert.Empty(t, migrate.Diff(snap, snap))
	assert.Empty(t, migrate.Diff(snap, snap.Clone()))
}

func TestDiffCreateOrderParentsFirst(t *testing.T) {
	users := usersV1()
	posts := schema.NewTable("posts").
		AddColumns(schema.Int64("id"), schema.Int64("user_id")).
		SetPrimaryKey("id").
		AddConstraints(schema.ForeignKey("posts_user_id_fkey", []string{"user_id"}, &schema.Reference{
			Table:   "users",
			Columns: []string{"id"},
		}))

	// Snapshot sorting puts posts before users; the diff must not.
	ops := migrate.Diff(nil, schema.NewSnapshot(posts, users))
	require.Len(t, ops, 2)
	first, ok := ops[0].(*migrate.CreateTable)
	require.True(t, ok, "got %T", ops[0])
	assert.Equal(t, "users", first.Table.Name)
	second := ops[1].(*migrate.CreateTable)
	assert.Equal(t, "posts", second.Table.Name)
}

func TestDiffDropOrderDependentsFirst(t *testing.T) {
	users := usersV1()
	posts := schema.NewTable("posts").
		AddColumns(schema.Int64("id"), schema.Int64("user_id")).
		SetPrimaryKey("id").
		AddConstraints(schema.ForeignKey("posts_user_id_fkey", []string{"user_id"}, &schema.Reference{
			Table:   "users",
			Columns: []string{"id"},
		}))

	ops := migrate.Diff(schema.NewSnapshot(users, posts), nil)
	require.Len(t, ops, 2)
	first, ok := ops[0].(*migrate.DropTable)
	require.True(t, ok, "got %T", ops[0])
	assert.Equal(t, "posts", first.Name)
	assert.Equal(t, "users", ops[1].(*migrate.DropTable).Name)
}

func TestDiffAlterColumn(t *testing.T) {
	a := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("name", 50)).
		SetPrimaryKey("id"))
	b := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("name", 100)).
		SetPrimaryKey("id"))

	ops := migrate.Diff(a, b)
	require.Len(t, ops, 1)
	alter, ok := ops[0].(*migrate.AlterColumn)
	require.True(t, ok, "got %T", ops[0])
	assert.Equal(t, 50, alter.From.Size)
	assert.Equal(t, 100, alter.To.Size)

	// Widening reverses; the reverse of the reverse would narrow, which
	// is exactly what makes the narrowing diff irreversible.
	assert.True(t, alter.Reversible())
	narrowing := migrate.Diff(b, a)
	require.Len(t, narrowing, 1)
	assert.False(t, narrowing[0].Reversible())
}

func TestDiffIndexesAndConstraints(t *testing.T) {
	a := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("email", 255), schema.String("name", 50)).
		SetPrimaryKey("id").
		AddIndexes(schema.NewIndex("users_name_idx", "name")).
		AddConstraints(schema.Unique("users_email_key", "email")))
	b := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("email", 255), schema.String("name", 50)).
		SetPrimaryKey("id").
		AddIndexes(schema.NewIndex("users_name_idx", "name").SetUnique()).
		AddConstraints(schema.Check("users_email_chk", "email <> ''")))

	ops := migrate.Diff(a, b)
	require.Len(t, ops, 4)
	_, ok := ops[0].(*migrate.DropConstraint)
	assert.True(t, ok, "got %T", ops[0])
	_, ok = ops[1].(*migrate.DropIndex)
	assert.True(t, ok, "got %T", ops[1])
	ci, ok := ops[2].(*migrate.CreateIndex)
	require.True(t, ok, "got %T", ops[2])
	assert.True(t, ci.Index.Unique)
	ac, ok := ops[3].(*migrate.AddConstraint)
	require.True(t, ok, "got %T", ops[3])
	assert.Equal(t, "users_email_chk", ac.Constraint.Name)
}

func TestDiffReplayInverse(t *testing.T) {
	a := schema.NewSnapshot(usersV1())
	b := schema.NewSnapshot(usersV2(), schema.NewTable("tags").
		AddColumns(schema.Int64("id"), schema.String("label", 40)).
		SetPrimaryKey("id"))

	m := migrate.NewMigration("default", "evolve schema", migrate.Diff(a, b)...)
	replayed, err := migrate.Replay(a, m)
	require.NoError(t, err)
	assert.Empty(t, migrate.Diff(replayed, b))
}

func TestDiffNeverGuessesRenames(t *testing.T) {
	a := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("name", 50)).
		SetPrimaryKey("id"))
	b := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("full_name", 50)).
		SetPrimaryKey("id"))

	ops := migrate.Diff(a, b)
	require.Len(t, ops, 2)
	_, isDrop := ops[0].(*migrate.DropColumn)
	_, isAdd := ops[1].(*migrate.AddColumn)
	assert.True(t, isDrop, "got %T", ops[0])
	assert.True(t, isAdd, "got %T", ops[1])

	candidates := migrate.RenameCandidates(a, b)
	require.Len(t, candidates, 1)
	assert.Equal(t, migrate.RenameCandidate{Table: "users", From: "name", To: "full_name"}, candidates[0])
}

func TestRenameCandidateTables(t *testing.T) {
	a := schema.NewSnapshot(schema.NewTable("users").
		AddColumns(schema.Int64("id"), schema.String("name", 50)).
		SetPrimaryKey("id"))
	b := schema.NewSnapshot(schema.NewTable("accounts").
		AddColumns(schema.Int64("id"), schema.String("name", 50)).
		SetPrimaryKey("id"))

	candidates := migrate.RenameCandidates(a, b)
	require.Len(t, candidates, 1)
	assert.Equal(t, migrate.RenameCandidate{From: "users", To: "accounts"}, candidates[0])
}

func TestIrreversibleOperations(t *testing.T) {
	d, err := dialect.Get(dialect.Postgres)
	require.NoError(t, err)

	for _, op := range []migrate.Operation{
		&migrate.DropTable{Name: "users"},
		&migrate.DropColumn{Table: "users", Column: "name"},
	} {
		assert.False(t, op.Reversible())
		_, err := op.ReverseSQL(d)
		assert.True(t, tessera.IsIrreversibleMigration(err), "got %v", err)
	}
}

func TestRunSQLReversibility(t *testing.T) {
	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)

	both := &migrate.RunSQL{
		Forward: []string{"UPDATE users SET name = TRIM(name)"},
		Reverse: []string{"SELECT 1"},
	}
	assert.True(t, both.Reversible())
	stmts, err := both.ForwardSQL(d)
	require.NoError(t, err)
	assert.Equal(t, both.Forward, stmts)

	oneWay := &migrate.RunSQL{Forward: []string{"DELETE FROM audit_log"}}
	assert.False(t, oneWay.Reversible())
	_, err = oneWay.ReverseSQL(d)
	assert.True(t, tessera.IsIrreversibleMigration(err))
}
