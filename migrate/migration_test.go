package migrate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera/migrate"
	"github.com/tessera-orm/tessera/schema"
)

func sampleMigration(t *testing.T) *migrate.Migration {
	t.Helper()
	users := schema.NewTable("users").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.String("email", 255).SetUnique(),
			schema.Timestamp("created_at").DefaultSQL("CURRENT_TIMESTAMP"),
		).
		SetPrimaryKey("id").
		AddIndexes(schema.NewIndex("users_created_at_idx", "created_at"))
	return migrate.NewMigration("default", "Create users table",
		&migrate.CreateTable{Table: users},
		&migrate.AddColumn{Table: "users", Column: schema.String("name", 100).Null()},
		&migrate.RunSQL{
			Forward: []string{"UPDATE users SET name = email"},
			Reverse: []string{"UPDATE users SET name = NULL"},
		},
	)
}

func TestMigrationID(t *testing.T) {
	m := sampleMigration(t)
	assert.True(t, strings.HasSuffix(m.ID, "_create_users_table"), "id %q", m.ID)
	assert.Equal(t, "default", m.Namespace)
	assert.True(t, m.Reversible())
}

func TestMigrationEncodeDecode(t *testing.T) {
	m := sampleMigration(t)
	m.Dependencies = []string{"20250101000000_initial"}

	data, err := m.Encode()
	require.NoError(t, err)

	got, err := migrate.DecodeMigration(data)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Namespace, got.Namespace)
	assert.Equal(t, m.Description, got.Description)
	assert.Equal(t, m.Dependencies, got.Dependencies)
	require.Len(t, got.Operations, 3)

	ct, ok := got.Operations[0].(*migrate.CreateTable)
	require.True(t, ok, "got %T", got.Operations[0])
	assert.Equal(t, "users", ct.Table.Name)
	require.Len(t, ct.Table.Columns, 3)
	email, found := ct.Table.Column("email")
	require.True(t, found)
	assert.Equal(t, schema.TypeString, email.Type)
	assert.Equal(t, 255, email.Size)
	assert.True(t, email.Unique)

	// Checksums survive the round trip, so an applied file verifies.
	want, err := m.Checksum()
	require.NoError(t, err)
	have, err := got.Checksum()
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestChecksumDetectsEdits(t *testing.T) {
	m := sampleMigration(t)
	before, err := m.Checksum()
	require.NoError(t, err)

	m.Operations = append(m.Operations, &migrate.DropColumn{Table: "users", Column: "name"})
	after, err := m.Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := migrate.DecodeMigration([]byte("operations: []\n"))
	assert.Error(t, err) // no id

	_, err = migrate.DecodeMigration([]byte("id: x\noperations:\n  - op: teleport_table\n"))
	assert.Error(t, err)

	_, err = migrate.DecodeMigration([]byte("id: x\noperations:\n  - op: create_table\n"))
	assert.Error(t, err) // create_table without a table
}

func TestSourceOrdering(t *testing.T) {
	dir := t.TempDir()
	src := migrate.NewSource(dir)

	first := migrate.NewMigration("default", "first", &migrate.CreateTable{Table: usersV1()})
	first.ID = "20250101000000_first"
	second := migrate.NewMigration("default", "second",
		&migrate.AddColumn{Table: "users", Column: schema.String("email", 255).Null()})
	second.ID = "20250102000000_second"
	second.Dependencies = []string{first.ID}

	// Saved out of order; Load returns dependency order.
	_, err := src.Save(second)
	require.NoError(t, err)
	_, err = src.Save(first)
	require.NoError(t, err)

	migs, err := src.Load()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, first.ID, migs[0].ID)
	assert.Equal(t, second.ID, migs[1].ID)

	// Saving the same ID twice is refused.
	_, err = src.Save(first)
	assert.Error(t, err)
}

func TestSourceRejectsUnknownDependency(t *testing.T) {
	dir := t.TempDir()
	src := migrate.NewSource(dir)

	m := migrate.NewMigration("default", "orphan", &migrate.CreateTable{Table: usersV1()})
	m.Dependencies = []string{"20200101000000_missing"}
	_, err := src.Save(m)
	require.NoError(t, err)

	_, err = src.Load()
	assert.Error(t, err)
}

func TestSourceDependencyCycle(t *testing.T) {
	dir := t.TempDir()
	src := migrate.NewSource(dir)

	a := migrate.NewMigration("default", "a", &migrate.RunSQL{Forward: []string{"SELECT 1"}})
	a.ID = "20250101000000_a"
	b := migrate.NewMigration("default", "b", &migrate.RunSQL{Forward: []string{"SELECT 1"}})
	b.ID = "20250102000000_b"
	a.Dependencies = []string{b.ID}
	b.Dependencies = []string{a.ID}

	_, err := src.Save(a)
	require.NoError(t, err)
	_, err = src.Save(b)
	require.NoError(t, err)

	_, err = src.Load()
	assert.Error(t, err)
}

func TestSourceMissingDirectory(t *testing.T) {
	src := migrate.NewSource("/nonexistent/migrations")
	migs, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, migs)
}
