// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// cloneMetadata canonicalizes m into a new map that shares no maps or slices with it.
func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if c := canonicalValue(v); c != nil {
			out[k] = c
		}
	}
	return out
}

// canonicalValue returns a deep copy of v in the form metadata takes after a
// round trip through a spec file or a repository record, so decoded specs
// compare equal to the specs they were built from:
//
//   - integers become int64; unsigned values above math.MaxInt64 stay uint64
//   - floats become float64
//   - byte slices become string
//   - other slices and arrays become []any
//   - maps become map[string]any, non-string keys formatted with fmt.Sprint
//   - time.Time values are converted to UTC
//   - pointers are replaced by the value they point to
//
// Named string and bool types lose their defined type. A nil value, pointer,
// slice or map yields nil. Any other value is kept as is.
func canonicalValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64:
		return v
	case []byte:
		if t == nil {
			return nil
		}
		return string(t)
	case time.Time:
		return t.UTC()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return canonicalValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return canonicalList(rv)
	case reflect.Array:
		return canonicalList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = canonicalValue(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

func canonicalList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = canonicalValue(rv.Index(i).Interface())
	}
	return out
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}
