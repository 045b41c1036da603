package fetchstore

import (
	"strconv"
	"strings"
)

// The transforms in this file operate on generically decoded bodies
// (map[string]any, []any, string, float64, bool, nil), the shape produced by
// [DecodeBody] for a Store[any]. They are pure functions and compose with
// [Chain]. A transform that cannot apply returns nil rather than panicking,
// so a missing field shows up as a nil result, not a failed attempt.

// JSONPath returns a transform that selects a nested value using dot
// notation. Object keys are matched by name; a numeric segment indexes an
// array.
//
// Example:
//
//	// For response: {"data": {"items": [{"id": 1}, {"id": 2}]}}
//	fetchstore.JSONPath("data.items.0.id") // → float64(1)
//
// An empty path returns the value unchanged.
func JSONPath(path string) func(any) any {
	var parts []string
	if path != "" {
		parts = strings.Split(path, ".")
	}

	return func(data any) any {
		return walkPath(data, parts)
	}
}

// walkPath walks a decoded structure using dot notation parts.
func walkPath(data any, parts []string) any {
	current := data

	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}

	return current
}

// Limit returns a transform that keeps at most the first n elements of an
// array. Non-array values are returned unchanged.
//
// Example:
//
//	// keep the first three posts
//	fetchstore.Limit(3)
func Limit(n int) func(any) any {
	if n < 0 {
		n = 0
	}
	return func(data any) any {
		items, ok := data.([]any)
		if !ok {
			return data
		}
		if len(items) > n {
			return items[:n:n]
		}
		return items
	}
}

// Pluck returns a transform that maps an array of objects to the values of a
// single field. Elements that are not objects, or lack the field, map to nil.
// Non-array values are returned unchanged.
//
// Example:
//
//	// [{"title": "a"}, {"title": "b"}] → ["a", "b"]
//	fetchstore.Pluck("title")
func Pluck(field string) func(any) any {
	return func(data any) any {
		items, ok := data.([]any)
		if !ok {
			return data
		}
		out := make([]any, len(items))
		for i, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out[i] = obj[field]
			}
		}
		return out
	}
}

// Chain returns a transform that applies transforms in order, feeding each
// result into the next. With no transforms it is the identity.
//
// Example:
//
//	fetchstore.Chain(
//	    fetchstore.JSONPath("data.posts"),
//	    fetchstore.Limit(3),
//	)
func Chain(transforms ...func(any) any) func(any) any {
	return func(data any) any {
		for _, t := range transforms {
			if t == nil {
				continue
			}
			data = t(data)
		}
		return data
	}
}
