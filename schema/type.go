package schema

// Type is the portable column type set. Dialects map each member to their
// native SQL type; types a dialect cannot express are rejected there, not
// here.
type Type uint8

// Portable column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat64
	TypeDecimal
	TypeString
	TypeText
	TypeBytes
	TypeDate
	TypeTime
	TypeTimestamp
	TypeUUID
	TypeJSON
	TypeEnum
	TypeArray

	endTypes
)

var typeNames = [...]string{
	TypeInvalid:   "invalid",
	TypeBool:      "bool",
	TypeInt16:     "int16",
	TypeInt32:     "int32",
	TypeInt64:     "int64",
	TypeFloat64:   "float64",
	TypeDecimal:   "decimal",
	TypeString:    "string",
	TypeText:      "text",
	TypeBytes:     "bytes",
	TypeDate:      "date",
	TypeTime:      "time",
	TypeTimestamp: "timestamp",
	TypeUUID:      "uuid",
	TypeJSON:      "json",
	TypeEnum:      "enum",
	TypeArray:     "array",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports whether t is a member of the portable type set.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports whether t is an integer, float or decimal type.
func (t Type) Numeric() bool {
	switch t {
	case TypeInt16, TypeInt32, TypeInt64, TypeFloat64, TypeDecimal:
		return true
	}
	return false
}

// Integer reports whether t is one of the integer types.
func (t Type) Integer() bool {
	switch t {
	case TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// Textual reports whether t stores character data.
func (t Type) Textual() bool {
	switch t {
	case TypeString, TypeText, TypeEnum:
		return true
	}
	return false
}

// Temporal reports whether t stores date or time data.
func (t Type) Temporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeTimestamp:
		return true
	}
	return false
}
