package schema

import "reflect"

// Column describes a single table column: its portable type, type
// parameters, and column-level modifiers. Columns are built with the typed
// constructors (String, Int64, ...) and the chainable modifiers, then
// attached to a table.
type Column struct {
	Name        string   `msgpack:"name"`
	Type        Type     `msgpack:"type"`
	Size        int      `msgpack:"size,omitempty"`      // TypeString length
	Precision   int      `msgpack:"precision,omitempty"` // TypeDecimal
	Scale       int      `msgpack:"scale,omitempty"`     // TypeDecimal
	Elem        Type     `msgpack:"elem,omitempty"`      // TypeArray element type
	Values      []string `msgpack:"values,omitempty"`    // TypeEnum members, in declaration order
	Nullable    bool     `msgpack:"nullable,omitempty"`
	Unique      bool     `msgpack:"unique,omitempty"`
	Increment   bool     `msgpack:"increment,omitempty"`
	Default     any      `msgpack:"default,omitempty"`      // literal default value
	DefaultExpr string   `msgpack:"default_expr,omitempty"` // raw SQL default expression
	Comment     string   `msgpack:"comment,omitempty"`
}

// Bool returns a new boolean column.
func Bool(name string) *Column {
	return &Column{Name: name, Type: TypeBool}
}

// Int16 returns a new 16-bit integer column.
func Int16(name string) *Column {
	return &Column{Name: name, Type: TypeInt16}
}

// Int32 returns a new 32-bit integer column.
func Int32(name string) *Column {
	return &Column{Name: name, Type: TypeInt32}
}

// Int64 returns a new 64-bit integer column.
func Int64(name string) *Column {
	return &Column{Name: name, Type: TypeInt64}
}

// Float64 returns a new double-precision float column.
func Float64(name string) *Column {
	return &Column{Name: name, Type: TypeFloat64}
}

// Decimal returns a new fixed-point numeric column with the given precision
// and scale.
func Decimal(name string, precision, scale int) *Column {
	return &Column{Name: name, Type: TypeDecimal, Precision: precision, Scale: scale}
}

// String returns a new bounded character column. Size is the maximum length
// and must be positive; snapshot validation rejects zero.
func String(name string, size int) *Column {
	return &Column{Name: name, Type: TypeString, Size: size}
}

// Text returns a new unbounded character column.
func Text(name string) *Column {
	return &Column{Name: name, Type: TypeText}
}

// Bytes returns a new binary column.
func Bytes(name string) *Column {
	return &Column{Name: name, Type: TypeBytes}
}

// Date returns a new calendar date column.
func Date(name string) *Column {
	return &Column{Name: name, Type: TypeDate}
}

// Time returns a new time-of-day column.
func Time(name string) *Column {
	return &Column{Name: name, Type: TypeTime}
}

// Timestamp returns a new date-and-time column.
func Timestamp(name string) *Column {
	return &Column{Name: name, Type: TypeTimestamp}
}

// UUID returns a new UUID column. Dialects without a native UUID type store
// it as fixed-length text.
func UUID(name string) *Column {
	return &Column{Name: name, Type: TypeUUID}
}

// JSON returns a new JSON document column.
func JSON(name string) *Column {
	return &Column{Name: name, Type: TypeJSON}
}

// Enum returns a new enumerated column restricted to the given values.
func Enum(name string, values ...string) *Column {
	return &Column{Name: name, Type: TypeEnum, Values: values}
}

// Array returns a new array column with the given element type. Only
// dialects with native array support accept it.
func Array(name string, elem Type) *Column {
	return &Column{Name: name, Type: TypeArray, Elem: elem}
}

// Null marks the column as nullable. Columns are NOT NULL by default.
func (c *Column) Null() *Column {
	c.Nullable = true
	return c
}

// SetUnique adds a column-level unique constraint.
func (c *Column) SetUnique() *Column {
	c.Unique = true
	return c
}

// AutoIncrement marks the column as database-generated. Only meaningful on
// integer primary key columns.
func (c *Column) AutoIncrement() *Column {
	c.Increment = true
	return c
}

// DefaultValue sets a literal default. The value is rendered as a SQL
// literal by the dialect.
func (c *Column) DefaultValue(v any) *Column {
	c.Default = v
	return c
}

// DefaultSQL sets a raw SQL default expression, e.g. "CURRENT_TIMESTAMP".
// The expression is emitted verbatim.
func (c *Column) DefaultSQL(expr string) *Column {
	c.DefaultExpr = expr
	return c
}

// SetComment attaches a comment to the column.
func (c *Column) SetComment(s string) *Column {
	c.Comment = s
	return c
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	cc := *c
	if c.Values != nil {
		cc.Values = append([]string(nil), c.Values...)
	}
	return &cc
}

// Equal reports whether two column definitions are identical. It is the
// comparison the migration differ uses to decide whether a column changed.
func (c *Column) Equal(other *Column) bool {
	if c.Name != other.Name || c.Type != other.Type ||
		c.Size != other.Size || c.Precision != other.Precision || c.Scale != other.Scale ||
		c.Elem != other.Elem ||
		c.Nullable != other.Nullable || c.Unique != other.Unique || c.Increment != other.Increment ||
		c.DefaultExpr != other.DefaultExpr {
		return false
	}
	// Defaults can hold uncomparable values such as slices, so a direct !=
	// would panic.
	if !reflect.DeepEqual(c.Default, other.Default) {
		return false
	}
	if len(c.Values) != len(other.Values) {
		return false
	}
	for i := range c.Values {
		if c.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}
