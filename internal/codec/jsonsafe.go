// Package codec provides the JSON-safety conversion applied to everything the
// engine emits. The conversion never fails: values that cannot be converted
// cleanly degrade to their string form instead of raising.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Dumper lets a value expose its own JSON-safe representation. Runtime
// adapters implement it on wrapper types whose fields are not exported or not
// directly serializable.
type Dumper interface {
	Dump() map[string]any
}

// maxDepth bounds recursion so cyclic values degrade to strings instead of
// overflowing the stack.
const maxDepth = 64

// Sanitize deep-converts v into a value that json.Marshal is guaranteed to
// accept: primitives pass through, []byte becomes base64, time.Time becomes
// RFC 3339, sequences and mappings convert element-wise, Dumpers are unwrapped
// through Dump, and anything else falls back to a json round-trip and finally
// to fmt.Sprint.
func Sanitize(v any) any {
	return sanitize(v, 0)
}

func sanitize(v any, depth int) any {
	if v == nil {
		return nil
	}
	if depth > maxDepth {
		// Printing the value itself could recurse through the same cycle
		// that got us here.
		return fmt.Sprintf("<truncated %T>", v)
	}

	switch val := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return val
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case error:
		return val.Error()
	case Dumper:
		return sanitize(val.Dump(), depth+1)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitize(item, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitize(item, depth+1)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitize(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitize(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value().Interface(), depth+1)
		}
		return out
	}

	// Structs and everything else: a json round-trip handles exported fields
	// and custom marshalers; values that still resist become strings.
	if data, err := json.Marshal(v); err == nil {
		var out any
		if err := json.Unmarshal(data, &out); err == nil {
			return out
		}
	}
	return fmt.Sprint(v)
}

// SanitizeMap is a convenience for state snapshots: it sanitizes every value
// of m into a fresh map, leaving m untouched.
func SanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Sanitize(v)
	}
	return out
}
