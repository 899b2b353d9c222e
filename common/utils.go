package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values of any comparable type T
//
// Returns:
//   - T: the first non-zero value from the input list, or the zero value of T if all values are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// DivCeil returns the number of groups of size group needed to cover n items.
// Used for compute workgroup counts and for splitting rows into worker bands.
func DivCeil(n, group int) int {
	if group <= 0 {
		return 0
	}
	return (n + group - 1) / group
}

// Bands splits [0, n) into at most count contiguous half-open ranges of near-equal size.
//
// Parameters:
//   - n: total number of items (rows, cells)
//   - count: desired number of bands
//
// Returns:
//   - [][2]int: the [start, end) ranges, never empty
func Bands(n, count int) [][2]int {
	if n <= 0 {
		return nil
	}
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	size := DivCeil(n, count)
	out := make([][2]int, 0, count)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
