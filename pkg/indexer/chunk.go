package indexer

// chunkBounds slices a population of total units at the resumable cursor.
// A size of zero or less means "the whole remainder". The returned next is
// the StartIndex for the following invocation; next == total means the
// population is exhausted.
func chunkBounds(total, start, size int) (lo, hi, next int) {
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	lo = start
	if size <= 0 {
		hi = total
	} else {
		hi = start + size
		if hi > total {
			hi = total
		}
	}
	return lo, hi, hi
}
