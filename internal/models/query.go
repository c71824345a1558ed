package models

import (
	"fmt"
	"strconv"
)

// SimilarityRequest asks for the cosine similarity matrix between two ad-hoc row sets.
type SimilarityRequest struct {
	M1        [][]float64 `json:"m1"`
	M2        [][]float64 `json:"m2"`
	BatchSize int         `json:"batch_size,omitempty"`
	Sparse    bool        `json:"sparse,omitempty"`
}

// Validate checks that both matrices are non-empty and the result fits in maxCells entries.
// A zero batch size defaults to defaultBatch; negative sizes are left for the computer to reject.
func (q *SimilarityRequest) Validate(defaultBatch, maxCells int) error {
	if len(q.M1) == 0 || len(q.M2) == 0 {
		return fmt.Errorf("m1 and m2 must both have at least one row")
	}
	if maxCells > 0 && len(q.M1)*len(q.M2) > maxCells {
		return fmt.Errorf("result of %dx%d exceeds the %d cell limit", len(q.M1), len(q.M2), maxCells)
	}
	if q.BatchSize == 0 {
		q.BatchSize = defaultBatch
	}
	return nil
}

// SimilarityResponse is the computed matrix, row-major.
type SimilarityResponse struct {
	Rows       int         `json:"rows"`
	Cols       int         `json:"cols"`
	BatchSize  int         `json:"batch_size"`
	Similarity [][]float64 `json:"similarity"`
	QueryTime  int64       `json:"query_time_ms"`
}

// FormatRating renders a rating the way the workbook stores it, without trailing zeros.
func FormatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
