package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/schema"
)

func userTable() *schema.Table {
	return schema.NewTable("users").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.String("email", 255).SetUnique(),
			schema.String("name", 100),
			schema.Bool("is_active").DefaultValue(true),
			schema.Int32("age").Null(),
		).
		SetPrimaryKey("id").
		AddIndexes(schema.NewIndex("", "is_active"))
}

func postTable() *schema.Table {
	return schema.NewTable("posts").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.Int64("author_id"),
			schema.String("title", 200),
			schema.Text("body").Null(),
		).
		SetPrimaryKey("id").
		AddConstraints(schema.ForeignKey("posts_author_fk", []string{"author_id"}, &schema.Reference{
			Table:    "users",
			Columns:  []string{"id"},
			OnDelete: schema.Cascade,
		}))
}

func TestTableBuilder(t *testing.T) {
	users := userTable()

	t.Run("ColumnLookup", func(t *testing.T) {
		c, ok := users.Column("email")
		require.True(t, ok)
		assert.Equal(t, schema.TypeString, c.Type)
		assert.Equal(t, 255, c.Size)
		assert.True(t, c.Unique)

		i, ok := users.ColumnIndex("age")
		require.True(t, ok)
		assert.Equal(t, 4, i)

		_, ok = users.Column("missing")
		assert.False(t, ok)
	})

	t.Run("DerivedIndexName", func(t *testing.T) {
		idx, ok := users.Index("users_is_active_idx")
		require.True(t, ok)
		assert.Equal(t, []string{"is_active"}, idx.Columns)
	})

	t.Run("DerivedConstraintNames", func(t *testing.T) {
		tbl := schema.NewTable("orderItems").
			AddColumns(schema.Int64("id"), schema.Int64("orderID"), schema.String("sku", 64)).
			SetPrimaryKey("id").
			AddConstraints(
				schema.Unique("", "sku"),
				schema.ForeignKey("", []string{"orderID"}, &schema.Reference{
					Table: "orders", Columns: []string{"id"},
				}),
			)
		_, ok := tbl.Constraint("order_items_sku_key")
		assert.True(t, ok)
		_, ok = tbl.Constraint("order_items_order_id_fkey")
		assert.True(t, ok)
	})

	t.Run("ForeignKeys", func(t *testing.T) {
		fks := postTable().ForeignKeys()
		require.Len(t, fks, 1)
		assert.Equal(t, "users", fks[0].Ref.Table)
		assert.Equal(t, schema.Cascade, fks[0].Ref.OnDelete)
	})

	t.Run("Mixins", func(t *testing.T) {
		tbl := schema.NewTable("audited").
			AddColumns(schema.Int64("id").AutoIncrement()).
			SetPrimaryKey("id").
			Use(schema.Timestamps{}, schema.SoftDelete{})
		assert.True(t, tbl.HasColumn("created_at"))
		assert.True(t, tbl.HasColumn("updated_at"))
		assert.True(t, tbl.HasColumn("deleted_at"))
		_, ok := tbl.Index("audited_deleted_at_idx")
		assert.True(t, ok)
	})
}

func TestColumnEqualSliceDefault(t *testing.T) {
	a := schema.Bytes("payload").Null().DefaultValue([]byte{0x1})
	b := schema.Bytes("payload").Null().DefaultValue([]byte{0x1})

	assert.NotPanics(t, func() { a.Equal(b) })
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(schema.Bytes("payload").Null().DefaultValue([]byte{0x2})))
}

func TestSnapshotValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		snap := schema.NewSnapshot(userTable(), postTable())
		require.NoError(t, snap.Validate())
	})

	t.Run("DuplicateTable", func(t *testing.T) {
		snap := schema.NewSnapshot(userTable(), userTable())
		err := snap.Validate()
		require.True(t, tessera.IsSchemaError(err))
		assert.Contains(t, err.Error(), "duplicate table")
	})

	t.Run("DuplicateColumn", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Int64("a"), schema.Int64("a"))
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
	})

	t.Run("StringSizeRequired", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.String("s", 0))
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
		assert.Contains(t, err.Error(), "positive size")
	})

	t.Run("MissingPrimaryKey", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Int64("a"))
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
		assert.Contains(t, err.Error(), "no primary key")
	})

	t.Run("PrimaryKeyUnknownColumn", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Int64("a")).SetPrimaryKey("b")
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
	})

	t.Run("NullablePrimaryKey", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Int64("a").Null()).SetPrimaryKey("a")
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
	})

	t.Run("ForeignKeyUnknownTable", func(t *testing.T) {
		tbl := schema.NewTable("t").
			AddColumns(schema.Int64("a")).
			SetPrimaryKey("a").
			AddConstraints(schema.ForeignKey("t_fk", []string{"a"}, &schema.Reference{
				Table: "missing", Columns: []string{"id"},
			}))
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
		assert.Contains(t, err.Error(), "unknown table")
	})

	t.Run("EnumRequiresValues", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Enum("status"))
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
	})

	t.Run("IncrementOnNonInteger", func(t *testing.T) {
		tbl := schema.NewTable("t").AddColumns(schema.Text("a").AutoIncrement())
		err := schema.NewSnapshot(tbl).Validate()
		require.True(t, tessera.IsSchemaError(err))
	})
}

func TestSnapshotIsolation(t *testing.T) {
	tbl := userTable()
	snap := schema.NewSnapshot(tbl)

	// Mutating the source table after the snapshot was taken must not leak
	// into the snapshot.
	tbl.AddColumns(schema.Text("bio"))
	got, ok := snap.Table("users")
	require.True(t, ok)
	assert.False(t, got.HasColumn("bio"))
}

func TestSnapshotEncodeDecode(t *testing.T) {
	snap := schema.NewSnapshot(userTable(), postTable())
	data, err := snap.Encode()
	require.NoError(t, err)

	got, err := schema.DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, got.Tables, 2)

	users, ok := got.Table("users")
	require.True(t, ok)
	email, ok := users.Column("email")
	require.True(t, ok)
	assert.Equal(t, schema.TypeString, email.Type)
	assert.Equal(t, 255, email.Size)

	posts, ok := got.Table("posts")
	require.True(t, ok)
	require.Len(t, posts.ForeignKeys(), 1)
	assert.Equal(t, "users", posts.ForeignKeys()[0].Ref.Table)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, schema.TypeInt64.Integer())
	assert.True(t, schema.TypeDecimal.Numeric())
	assert.False(t, schema.TypeText.Numeric())
	assert.True(t, schema.TypeEnum.Textual())
	assert.True(t, schema.TypeDate.Temporal())
	assert.Equal(t, "timestamp", schema.TypeTimestamp.String())
	assert.False(t, schema.Type(200).Valid())
}
