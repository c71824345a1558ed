package models

import (
	"testing"
)

func TestSimilarityRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       *SimilarityRequest
		wantErr   bool
		wantBatch int
	}{
		{"empty m1", &SimilarityRequest{M2: [][]float64{{1}}}, true, 0},
		{"empty m2", &SimilarityRequest{M1: [][]float64{{1}}}, true, 0},
		{"too many cells", &SimilarityRequest{M1: make([][]float64, 10), M2: make([][]float64, 11)}, true, 0},
		{"defaults batch size", &SimilarityRequest{M1: [][]float64{{1}}, M2: [][]float64{{1}}}, false, 100},
		{"keeps batch size", &SimilarityRequest{M1: [][]float64{{1}}, M2: [][]float64{{1}}, BatchSize: 3}, false, 3},
		{"keeps negative batch size", &SimilarityRequest{M1: [][]float64{{1}}, M2: [][]float64{{1}}, BatchSize: -2}, false, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(100, 100)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.BatchSize != tt.wantBatch {
				t.Errorf("BatchSize = %d, want %d", tt.req.BatchSize, tt.wantBatch)
			}
		})
	}
}

func TestEntity_DisplayKey(t *testing.T) {
	a := &Entity{Name: "A", Attributes: map[string]string{AttrCuisines: "Thai", AttrRating: "3.9"}}
	b := &Entity{Name: "B", Attributes: map[string]string{AttrCuisines: "Thai", AttrRating: "3.9"}}
	c := &Entity{Name: "C", Attributes: map[string]string{AttrCuisines: "Thai", AttrRating: "4.1"}}
	if a.DisplayKey() != b.DisplayKey() {
		t.Error("entities with equal attributes should share a display key")
	}
	if a.DisplayKey() == c.DisplayKey() {
		t.Error("entities with different ratings should not share a display key")
	}
	if (&Entity{}).Attribute(AttrCost) != "" {
		t.Error("missing attribute should be empty")
	}
}

func TestFormatRating(t *testing.T) {
	if got := FormatRating(3.5); got != "3.5" {
		t.Errorf("FormatRating(3.5) = %q", got)
	}
	if got := FormatRating(4); got != "4" {
		t.Errorf("FormatRating(4) = %q", got)
	}
}
