// Package mathx holds small generic numeric helpers shared by device
// plugins.
package mathx

import "golang.org/x/exp/constraints"

// Clamp returns v limited to the inclusive range [lo, hi]. Callers are
// expected to pass the bounds in order.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
