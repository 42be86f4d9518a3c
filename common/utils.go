package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp restricts v to the closed range [lo, hi].
func Clamp[T ~float32 | ~float64 | ~int | ~uint32](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DivRoundUp returns the number of groups of size d needed to cover n elements.
// Used to size compute dispatches.
//
// Parameters:
//   - n: the element count
//   - d: the group size (must be > 0)
//
// Returns:
//   - uint32: ceil(n / d)
func DivRoundUp(n, d uint32) uint32 {
	return (n + d - 1) / d
}

// AlignUp rounds n up to the next multiple of alignment.
//
// Parameters:
//   - n: the value to round
//   - alignment: the multiple to round to (must be > 0)
//
// Returns:
//   - uint32: the smallest multiple of alignment that is >= n
func AlignUp(n, alignment uint32) uint32 {
	return DivRoundUp(n, alignment) * alignment
}
