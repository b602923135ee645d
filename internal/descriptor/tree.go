package descriptor

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Clone deep-copies a decoded JSON tree so that structural updates never
// touch the value they were derived from.
func Clone(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, child := range tv {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, child := range tv {
			out[i] = Clone(child)
		}
		return out
	case []string:
		return Strings(tv)
	default:
		return v
	}
}

// CloneDocument is Clone specialised to documents; nil yields an empty document.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return Clone(doc).(map[string]any)
}

// Strings converts a string slice into the generic array form used in documents.
func Strings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// ErrUnexpectedShape is returned when a descriptor holds a value of the wrong
// type where an object or array is required.
var ErrUnexpectedShape = errors.New("unexpected descriptor shape")

// Object returns parent[key] as an object, creating it when missing or null.
// A value of another type is left alone and reported as ErrUnexpectedShape.
func Object(parent map[string]any, key string) (map[string]any, error) {
	switch v := parent[key].(type) {
	case map[string]any:
		return v, nil
	case nil:
		m := map[string]any{}
		parent[key] = m
		return m, nil
	default:
		return nil, fmt.Errorf("%s: want object, got %s: %w", key, typeName(v), ErrUnexpectedShape)
	}
}

// Array returns parent[key] as an array; a missing or null value yields nil.
// A value of another type is reported as ErrUnexpectedShape.
func Array(parent map[string]any, key string) ([]any, error) {
	switch v := parent[key].(type) {
	case []any:
		return v, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: want array, got %s: %w", key, typeName(v), ErrUnexpectedShape)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}

// Equal compares two values by their canonical encoding.
func Equal(a, b any) bool {
	return oj.JSON(Clone(a), encodeOptions) == oj.JSON(Clone(b), encodeOptions)
}

// Lookup evaluates a JSONPath expression against doc and returns the first
// match.
func Lookup(doc any, path string) (any, bool, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, false, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	results := x.Get(doc)
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// MustLookup is Lookup for expressions known to be valid; a miss returns nil.
func MustLookup(doc any, x jp.Expr) any {
	results := x.Get(doc)
	if len(results) == 0 {
		return nil
	}
	return results[0]
}
