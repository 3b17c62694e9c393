package activitylog

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// JSONSafeDumps serializes any payload into an indented JSON string for
// embedding in a log row. Values the encoder rejects are sanitized
// recursively into plain nested structures; anything still unrecognized
// falls back to its string representation. The result is always valid JSON;
// this function never fails a log write.
func JSONSafeDumps(obj interface{}) string {
	if b, err := json.MarshalIndent(obj, "", "  "); err == nil {
		return string(b)
	}

	cleaned := sanitizeValue(reflect.ValueOf(obj))
	b, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "could not serialize: %s"}`, err)
	}
	return string(b)
}

// sanitizeValue converts an arbitrary value into JSON-encodable plain
// structures: maps of strings, slices and primitives.
func sanitizeValue(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem())

	case reflect.Bool:
		return v.Bool()

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("%v", f)
		}
		return f

	case reflect.String:
		return v.String()

	case reflect.Slice, reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i))
		}
		return out

	case reflect.Map:
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprintf("%v", iter.Key().Interface())] = sanitizeValue(iter.Value())
		}
		return out

	case reflect.Struct:
		// Structs that marshal cleanly keep their JSON shape.
		if b, err := json.Marshal(v.Interface()); err == nil {
			var m interface{}
			if json.Unmarshal(b, &m) == nil {
				return m
			}
		}
		return fmt.Sprintf("%v", v.Interface())

	default:
		// Funcs, channels, complex numbers: string representation rather
		// than failing the log call.
		return fmt.Sprintf("%v", v.Interface())
	}
}
