package similarity

import "sort"

// TopK returns the indices of the k largest values in row, highest first. Ties go to the
// lower index. exclude is skipped (pass -1 to keep every index), which is how a row drops
// itself from its own neighbour list.
func TopK(row []float64, k int, exclude int) []int {
	if k <= 0 {
		return nil
	}
	idx := make([]int, 0, len(row))
	for i := range row {
		if i != exclude {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] > row[idx[b]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
