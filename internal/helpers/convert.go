// Package helpers provides safe numeric conversions for the wire codec.
//
// DNS carries section counts and RDATA lengths as 16-bit fields. Slice
// lengths are ints, so the codec clamps them on the way out instead of
// letting a cast silently wrap.
package helpers

import "math"

// ClampIntToUint16 converts v to uint16 with clamping.
// Values below 0 become 0; values above math.MaxUint16 become math.MaxUint16.
func ClampIntToUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v) //nolint:gosec // bounds checked above
}
