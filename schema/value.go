package schema

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-orm/tessera"
)

// ValidateValue verifies that a Go value is bindable to the column's
// declared type, returning a TypeMismatchError when it is not. NULL is only
// bindable to nullable columns.
func ValidateValue(table string, c *Column, v any) error {
	if v == nil {
		if !c.Nullable {
			return tessera.NewTypeMismatchError(table, c.Name, c.Type.String(), nil)
		}
		return nil
	}
	ok := false
	switch c.Type {
	case TypeBool:
		_, ok = v.(bool)
	case TypeInt16, TypeInt32, TypeInt64:
		ok = isInteger(v)
	case TypeFloat64:
		ok = isInteger(v) || isFloat(v)
	case TypeDecimal:
		if _, isStr := v.(string); isStr {
			ok = true
		} else {
			ok = isInteger(v) || isFloat(v)
		}
	case TypeString, TypeText:
		_, ok = v.(string)
	case TypeEnum:
		s, isStr := v.(string)
		if !isStr {
			break
		}
		for _, member := range c.Values {
			if s == member {
				ok = true
				break
			}
		}
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeDate, TypeTime, TypeTimestamp:
		switch v.(type) {
		case time.Time, string:
			ok = true
		}
	case TypeUUID:
		switch x := v.(type) {
		case uuid.UUID:
			ok = true
		case string:
			ok = uuid.Validate(x) == nil
		}
	case TypeJSON:
		ok = true
	case TypeArray:
		ok = reflect.ValueOf(v).Kind() == reflect.Slice
	}
	if !ok {
		return tessera.NewTypeMismatchError(table, c.Name, c.Type.String(), v)
	}
	return nil
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}
