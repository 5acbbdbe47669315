package workflow

// Chunks splits items into consecutive slices of size n; every chunk is
// full except possibly the last. It returns ceil(len(items)/n) chunks, and
// nil for an empty input. n below 1 is treated as 1.
func Chunks[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	out := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
