package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/ruiji/internal/models"
)

func sampleResponse() *models.RecommendResponse {
	return &models.RecommendResponse{
		Query:   "meghana foods",
		Name:    "Meghana Foods",
		Heading: "TOP 2 RESTAURANTS LIKE MEGHANA FOODS WITH SIMILAR REVIEWS: ",
		Recommendations: []*models.Recommendation{
			{Name: "Truffles", Cuisines: "Burger, Cafe", Rating: 4.6, Cost: "700", Location: "Koramangala"},
			{Name: "Onesta", Cuisines: strings.Repeat("Pizza, ", 10), Rating: 4.1, Cost: "600", Location: "HSR"},
		},
		Total: 2,
	}
}

func TestWriteRecommendations_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteRecommendations(json): %v", err)
	}
	var decoded models.RecommendResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 2 || decoded.Recommendations[0].Name != "Truffles" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteRecommendations_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"TOP 2 RESTAURANTS LIKE MEGHANA FOODS", "Cost for 2 People", "Truffles", "4.6", "Koramangala", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Truffles") > strings.Index(out, "Onesta") {
		t.Error("rows should keep response order")
	}
}

func TestWriteNotFound(t *testing.T) {
	resp := &models.ErrorResponse{Error: "not found", Status: 410, Suggestions: []string{"Meghana Foods"}}
	var buf bytes.Buffer
	if err := WriteNotFound(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Did you mean:") || !strings.Contains(buf.String(), "Meghana Foods") {
		t.Errorf("got %q", buf.String())
	}
	buf.Reset()
	if err := WriteNotFound(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"suggestions"`) {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSimilarity_Text(t *testing.T) {
	resp := &models.SimilarityResponse{Rows: 1, Cols: 2, BatchSize: 1, Similarity: [][]float64{{1, 0.40824829}}}
	var buf bytes.Buffer
	if err := WriteSimilarity(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1.0000") || !strings.Contains(buf.String(), "0.4082") {
		t.Errorf("got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, err := ParseOutputFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("json: %v %v", f, err)
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
}
