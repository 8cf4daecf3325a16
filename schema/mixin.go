package schema

// Mixin is a reusable set of columns and indexes applied to a table with
// Table.Use.
type Mixin interface {
	Columns() []*Column
	Indexes() []*Index
}

// Timestamps adds created_at and updated_at columns defaulting to the
// database clock.
type Timestamps struct{}

// Columns returns the timestamp columns.
func (Timestamps) Columns() []*Column {
	return []*Column{
		Timestamp("created_at").DefaultSQL("CURRENT_TIMESTAMP"),
		Timestamp("updated_at").DefaultSQL("CURRENT_TIMESTAMP"),
	}
}

// Indexes returns no indexes.
func (Timestamps) Indexes() []*Index { return nil }

// SoftDelete adds a nullable deleted_at column and an index over it, so
// queries filtering live rows stay cheap.
type SoftDelete struct{}

// Columns returns the deleted_at column.
func (SoftDelete) Columns() []*Column {
	return []*Column{Timestamp("deleted_at").Null()}
}

// Indexes returns the deleted_at index.
func (SoftDelete) Indexes() []*Index {
	return []*Index{NewIndex("", "deleted_at")}
}
