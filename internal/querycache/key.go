package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cache entry: resource family first, then operation, then
// any parameters, e.g. Key{"eco-tours", "list", filters}.
//
// Parts are compared by their JSON encoding, so two parameter values with the
// same fields select the same entry no matter where they were built.
type Key []any

// Append returns a new key with parts added after k. k is not modified.
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// String renders the normalized key for logs.
func (k Key) String() string {
	parts, err := k.normalize()
	if err != nil {
		return fmt.Sprintf("%v", []any(k))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (k Key) normalize() ([]string, error) {
	parts := make([]string, len(k))
	for i, p := range k {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("key part %d: %w", i, err)
		}
		parts[i] = string(b)
	}
	return parts, nil
}

// id joins normalized parts into a map key. JSON never emits a raw NUL, so
// the separator cannot collide with part content.
func id(parts []string) string {
	return strings.Join(parts, "\x00")
}

func hasPrefix(parts, prefix []string) bool {
	if len(prefix) > len(parts) {
		return false
	}
	for i := range prefix {
		if parts[i] != prefix[i] {
			return false
		}
	}
	return true
}
