// Package params reads typed values out of the loose map[string]any blobs
// that plugin configuration carries. YAML and JSON decoders disagree about
// number types, so every accessor normalizes.
package params

import "fmt"

// String returns the string at key, or def when absent or mistyped.
func String(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the bool at key, or def when absent or mistyped.
func Bool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the integer at key, accepting any numeric encoding, or def.
func Int(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return def
}

// Uint16 returns the value at key as a uint16, or def. Values outside the
// range fall back to def.
func Uint16(m map[string]any, key string, def uint16) uint16 {
	n := Int(m, key, int(def))
	if n < 0 || n > 0xFFFF {
		return def
	}
	return uint16(n)
}

// Float returns the float at key, accepting integer encodings, or def.
func Float(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// Require returns the string at key or an error naming the key.
func Require(m map[string]any, key string) (string, error) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("params: missing required %q", key)
	}
	return v, nil
}
