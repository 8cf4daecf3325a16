package sql_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-orm/tessera"
	"github.com/tessera-orm/tessera/dialect"
	"github.com/tessera-orm/tessera/schema"
	"github.com/tessera-orm/tessera/sql"
)

func users() *schema.Table {
	return schema.NewTable("users").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.String("email", 255).SetUnique(),
			schema.String("name", 100),
			schema.Bool("is_active").DefaultValue(true),
			schema.Int32("age").Null(),
			schema.Timestamp("created_at").DefaultSQL("CURRENT_TIMESTAMP"),
			schema.Enum("status", "active", "banned"),
			schema.Array("tags", schema.TypeText).Null(),
		).
		SetPrimaryKey("id")
}

func mustDialect(t *testing.T, name string) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name)
	require.NoError(t, err)
	return d
}

func TestSelectActiveAdults(t *testing.T) {
	q := sql.Select(users(), "id", "email").
		Where(sql.And(
			sql.EQ("is_active", true),
			sql.GTE("age", 18),
		)).
		OrderByDesc("created_at").
		Limit(10)

	t.Run("SQLite", func(t *testing.T) {
		query, args, err := q.Build(mustDialect(t, dialect.SQLite))
		require.NoError(t, err)
		assert.Equal(t, `SELECT "id", "email" FROM "users"`+
			` WHERE ("is_active" = ? AND "age" >= ?)`+
			` ORDER BY "created_at" DESC LIMIT 10`, query)
		assert.Equal(t, []any{true, 18}, args)
		assert.NotContains(t, query, "OFFSET")
	})

	t.Run("Postgres", func(t *testing.T) {
		query, args, err := q.Build(mustDialect(t, dialect.Postgres))
		require.NoError(t, err)
		assert.Equal(t, `SELECT "id", "email" FROM "users"`+
			` WHERE ("is_active" = $1 AND "age" >= $2)`+
			` ORDER BY "created_at" DESC LIMIT 10`, query)
		assert.Len(t, args, 2)
	})

	t.Run("Oracle", func(t *testing.T) {
		query, _, err := q.Build(mustDialect(t, dialect.Oracle))
		require.NoError(t, err)
		assert.Contains(t, query, `"is_active" = :1 AND "age" >= :2`)
		assert.Contains(t, query, "FETCH NEXT 10 ROWS ONLY")
	})
}

func TestSelectDefaults(t *testing.T) {
	query, args, err := sql.Select(users()).Build(mustDialect(t, dialect.SQLite))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "email", "name", "is_active", "age", "created_at", "status", "tags" FROM "users"`, query)
	assert.Empty(t, args)
}

func TestBuilderImmutability(t *testing.T) {
	base := sql.Select(users(), "id").Where(sql.EQ("is_active", true))
	active := base.OrderBy("id")
	banned := base.Where(sql.EQ("status", "banned")).Limit(5)

	d := mustDialect(t, dialect.SQLite)

	q1, args1, err := active.Build(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "is_active" = ? ORDER BY "id"`, q1)
	assert.Equal(t, []any{true}, args1)

	q2, args2, err := banned.Build(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "is_active" = ? AND "status" = ? LIMIT 5`, q2)
	assert.Equal(t, []any{true, "banned"}, args2)

	// The shared prefix is untouched by either branch.
	q0, _, err := base.Build(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "is_active" = ?`, q0)
}

func TestBuildTimeValidation(t *testing.T) {
	d := mustDialect(t, dialect.SQLite)

	t.Run("UnknownColumn", func(t *testing.T) {
		q := sql.Select(users()).Where(sql.EQ("emial", "x"))
		_, _, err := q.Build(d)
		require.True(t, tessera.IsSchemaError(err))
		assert.Error(t, q.Err())
	})

	t.Run("UnknownSelectColumn", func(t *testing.T) {
		_, _, err := sql.Select(users(), "nope").Build(d)
		assert.True(t, tessera.IsSchemaError(err))
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		_, _, err := sql.Select(users()).Where(sql.EQ("age", "forty")).Build(d)
		assert.True(t, tessera.IsTypeMismatch(err))
	})

	t.Run("EnumMembership", func(t *testing.T) {
		_, _, err := sql.Select(users()).Where(sql.EQ("status", "frozen")).Build(d)
		assert.True(t, tessera.IsTypeMismatch(err))
	})

	t.Run("NullOnNotNullColumn", func(t *testing.T) {
		_, _, err := sql.Select(users()).Where(sql.EQ("email", nil)).Build(d)
		assert.True(t, tessera.IsTypeMismatch(err))
	})

	t.Run("NullOnNullableColumn", func(t *testing.T) {
		_, _, err := sql.Select(users()).Where(sql.EQ("age", nil)).Build(d)
		assert.NoError(t, err)
	})

	t.Run("ErrorSticksThroughChain", func(t *testing.T) {
		q := sql.Select(users()).Where(sql.EQ("nope", 1)).OrderBy("id").Limit(3)
		_, _, err := q.Build(d)
		assert.True(t, tessera.IsSchemaError(err))
	})
}

func TestPredicateRendering(t *testing.T) {
	d := mustDialect(t, dialect.SQLite)
	build := func(t *testing.T, p sql.Predicate) (string, []any) {
		t.Helper()
		query, args, err := sql.Select(users(), "id").Where(p).Build(d)
		require.NoError(t, err)
		return query, args
	}

	t.Run("InList", func(t *testing.T) {
		query, args := build(t, sql.In("status", "active", "banned"))
		assert.Contains(t, query, `"status" IN (?, ?)`)
		assert.Equal(t, []any{"active", "banned"}, args)
	})

	t.Run("EmptyIn", func(t *testing.T) {
		query, args := build(t, sql.In("status"))
		assert.Contains(t, query, "WHERE 1 = 0")
		assert.Empty(t, args)
	})

	t.Run("EmptyNotIn", func(t *testing.T) {
		query, _ := build(t, sql.NotIn("status"))
		assert.Contains(t, query, "WHERE 1 = 1")
	})

	t.Run("Between", func(t *testing.T) {
		query, args := build(t, sql.Between("age", 18, 65))
		assert.Contains(t, query, `"age" BETWEEN ? AND ?`)
		assert.Equal(t, []any{18, 65}, args)
	})

	t.Run("NotAndNull", func(t *testing.T) {
		query, _ := build(t, sql.Not(sql.IsNull("age")))
		assert.Contains(t, query, `NOT ("age" IS NULL)`)

		query, _ = build(t, sql.NotNull("age"))
		assert.Contains(t, query, `"age" IS NOT NULL`)
	})

	t.Run("OrNesting", func(t *testing.T) {
		query, args := build(t, sql.Or(
			sql.EQ("status", "active"),
			sql.And(sql.EQ("status", "banned"), sql.GT("age", 21)),
		))
		assert.Contains(t, query, `("status" = ? OR ("status" = ? AND "age" > ?))`)
		assert.Len(t, args, 3)
	})

	t.Run("Like", func(t *testing.T) {
		query, args := build(t, sql.Like("email", "%@example.com"))
		assert.Contains(t, query, `"email" LIKE ?`)
		assert.Equal(t, []any{"%@example.com"}, args)
	})
}

func TestILike(t *testing.T) {
	q := sql.Select(users(), "id").Where(sql.ILike("name", "ada%"))

	query, _, err := q.Build(mustDialect(t, dialect.Postgres))
	require.NoError(t, err)
	assert.Contains(t, query, `"name" ILIKE $1`)

	query, _, err = q.Build(mustDialect(t, dialect.MySQL))
	require.NoError(t, err)
	assert.Contains(t, query, "LOWER(`name`) LIKE LOWER(?)")
}

func TestArrayGating(t *testing.T) {
	q := sql.Select(users(), "id").Where(sql.EQ("tags", []string{"go"}))

	_, _, err := q.Build(mustDialect(t, dialect.Postgres))
	assert.NoError(t, err)

	_, _, err = q.Build(mustDialect(t, dialect.MySQL))
	assert.True(t, tessera.IsUnsupportedFeature(err))
}

func TestInsert(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q := sql.Insert(users()).
		Set("email", "ada@example.com").
		Set("name", "Ada").
		Set("is_active", true).
		Set("status", "active").
		Set("created_at", now)

	t.Run("Postgres", func(t *testing.T) {
		query, args, err := q.Returning("id").Build(mustDialect(t, dialect.Postgres))
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "users" ("email", "name", "is_active", "status", "created_at")`+
			` VALUES ($1, $2, $3, $4, $5) RETURNING "id"`, query)
		assert.Equal(t, []any{"ada@example.com", "Ada", true, "active", now}, args)
	})

	t.Run("ReturningUnsupported", func(t *testing.T) {
		_, _, err := q.Returning("id").Build(mustDialect(t, dialect.MySQL))
		assert.True(t, tessera.IsUnsupportedFeature(err))
	})

	t.Run("Empty", func(t *testing.T) {
		_, _, err := sql.Insert(users()).Build(mustDialect(t, dialect.SQLite))
		assert.True(t, tessera.IsSchemaError(err))
	})

	t.Run("Upsert", func(t *testing.T) {
		query, _, err := q.OnConflict("email").DoUpdate("name").Build(mustDialect(t, dialect.SQLite))
		require.NoError(t, err)
		assert.Contains(t, query, `ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name"`)

		query, _, err = q.OnConflict("email").DoUpdate("name").Build(mustDialect(t, dialect.MySQL))
		require.NoError(t, err)
		assert.Contains(t, query, "ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)")

		_, _, err = q.OnConflict("email").Build(mustDialect(t, dialect.Oracle))
		assert.True(t, tessera.IsUnsupportedFeature(err))
	})
}

func TestUpdate(t *testing.T) {
	q := sql.Update(users()).
		Set("name", "Grace").
		Set("is_active", false).
		Where(sql.EQ("id", int64(7)))

	query, args, err := q.Build(mustDialect(t, dialect.Postgres))
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "is_active" = $2 WHERE "id" = $3`, query)
	// SET arguments bind before WHERE arguments.
	assert.Equal(t, []any{"Grace", false, int64(7)}, args)

	_, _, err = sql.Update(users()).Where(sql.EQ("id", 1)).Build(mustDialect(t, dialect.SQLite))
	assert.True(t, tessera.IsSchemaError(err))
}

func TestDelete(t *testing.T) {
	query, args, err := sql.Delete(users()).
		Where(sql.EQ("is_active", false)).
		Build(mustDialect(t, dialect.MySQL))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `is_active` = ?", query)
	assert.Equal(t, []any{false}, args)

	query, _, err = sql.Delete(users()).Build(mustDialect(t, dialect.SQLite))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, query)
}

func TestOffsetWithoutLimit(t *testing.T) {
	q := sql.Select(users(), "id").Offset(20)

	query, _, err := q.Build(mustDialect(t, dialect.Postgres))
	require.NoError(t, err)
	assert.Contains(t, query, "OFFSET 20")
	assert.NotContains(t, query, "LIMIT")

	query, _, err = q.Build(mustDialect(t, dialect.MySQL))
	require.NoError(t, err)
	assert.Contains(t, query, "LIMIT 18446744073709551615 OFFSET 20")
}

func orders() *schema.Table {
	return schema.NewTable("orders").
		AddColumns(
			schema.Int64("id").AutoIncrement(),
			schema.Int64("user_id"),
			schema.Decimal("total", 10, 2),
			schema.String("status", 20),
		).
		SetPrimaryKey("id")
}

func TestJoin(t *testing.T) {
	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)

	query, args, err := sql.Select(users(), "email").
		Join(orders(), sql.EQCol("orders.user_id", "users.id")).
		Where(sql.EQ("orders.status", "paid")).
		Build(d)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "users"."email" FROM "users" JOIN "orders" ON "orders"."user_id" = "users"."id" WHERE "orders"."status" = ?`,
		query)
	assert.Equal(t, []any{"paid"}, args)
}

func TestLeftJoin(t *testing.T) {
	d, err := dialect.Get(dialect.Postgres)
	require.NoError(t, err)

	query, _, err := sql.Select(users(), "id").
		LeftJoin(orders(), sql.EQCol("orders.user_id", "users.id")).
		Build(d)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "users"."id" FROM "users" LEFT JOIN "orders" ON "orders"."user_id" = "users"."id"`,
		query)
}

func TestJoinValidation(t *testing.T) {
	t.Run("missing on condition", func(t *testing.T) {
		b := sql.Select(users()).Join(orders(), nil)
		assert.Error(t, b.Err())
	})
	t.Run("ambiguous bare column", func(t *testing.T) {
		// Both tables carry "id".
		b := sql.Select(users(), "email").
			Join(orders(), sql.EQCol("orders.user_id", "users.id")).
			Where(sql.EQ("id", int64(1)))
		assert.Error(t, b.Err())
	})
	t.Run("column type mismatch across join", func(t *testing.T) {
		b := sql.Select(users(), "email").
			Join(orders(), sql.EQCol("orders.total", "users.is_active"))
		assert.True(t, tessera.IsTypeMismatch(b.Err()), "got %v", b.Err())
	})
	t.Run("unknown joined table in reference", func(t *testing.T) {
		b := sql.Select(users(), "email").Where(sql.EQ("orders.status", "paid"))
		assert.Error(t, b.Err())
	})
}

func TestGroupByHavingAggregates(t *testing.T) {
	d, err := dialect.Get(dialect.Postgres)
	require.NoError(t, err)

	query, args, err := sql.Select(orders(), "user_id").
		Aggregate(sql.Count(sql.Star).As("n"), sql.Sum("total").As("spent")).
		GroupBy("user_id").
		Having(sql.CompareAgg(sql.Count(sql.Star), sql.OpGT, 5)).
		OrderBy("user_id").
		Build(d)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "user_id", COUNT(*) AS "n", SUM("total") AS "spent" FROM "orders" GROUP BY "user_id" HAVING COUNT(*) > $1 ORDER BY "user_id"`,
		query)
	assert.Equal(t, []any{5}, args)
}

func TestAggregateValidation(t *testing.T) {
	t.Run("sum over non-numeric", func(t *testing.T) {
		b := sql.Select(users()).Aggregate(sql.Sum("email"))
		assert.True(t, tessera.IsTypeMismatch(b.Err()), "got %v", b.Err())
	})
	t.Run("star outside count", func(t *testing.T) {
		b := sql.Select(users()).Aggregate(sql.Max(sql.Star))
		assert.Error(t, b.Err())
	})
	t.Run("unknown field", func(t *testing.T) {
		b := sql.Select(users()).Aggregate(sql.Count("nope"))
		assert.Error(t, b.Err())
	})
}
