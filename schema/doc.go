// Package schema provides the building blocks for describing relational
// schemas: tables, columns, indexes and constraints, plus immutable
// snapshots of a whole schema that the migration engine can diff.
//
// # Quick Start
//
// Build a table with the fluent column constructors:
//
//	users := schema.NewTable("users").
//		AddColumns(
//			schema.Int64("id").AutoIncrement(),
//			schema.String("email", 255).Unique(),
//			schema.String("name", 100),
//			schema.Bool("is_active").DefaultValue(true),
//		).
//		SetPrimaryKey("id").
//		Use(schema.Timestamps{})
//
// Group tables into a snapshot and validate it:
//
//	snap := schema.NewSnapshot(users, posts)
//	if err := snap.Validate(); err != nil { ... }
//
// # Column Types
//
// The constructors cover the portable type set:
//
//	schema.String("name", 255)     // VARCHAR(255), size required
//	schema.Text("bio")             // unbounded text
//	schema.Int64("count")          // BIGINT
//	schema.Float64("price")        // DOUBLE PRECISION
//	schema.Decimal("total", 10, 2) // NUMERIC(10,2)
//	schema.Bool("active")          // BOOLEAN
//	schema.Timestamp("created_at") // TIMESTAMP
//	schema.UUID("id")              // UUID (emulated where missing)
//	schema.JSON("metadata")        // JSONB / JSON / TEXT
//	schema.Bytes("payload")        // BYTEA / BLOB
//	schema.Enum("status", "a", "b")
//	schema.Array("tags", schema.TypeString)
//
// How each type maps to dialect-specific SQL is the dialect package's
// business; schema records only the portable declaration.
//
// # Mixins
//
// Mixins are reusable column sets applied with Table.Use:
//
//	schema.Timestamps{} // created_at, updated_at
//	schema.SoftDelete{} // deleted_at plus an index on it
package schema
