// Package cli provides output helpers for the ruiji command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// maxCellWidth caps long cells (cuisine lists) in text output.
const maxCellWidth = 40

// WriteRecommendations writes a recommendation response to w in the given format.
func WriteRecommendations(w io.Writer, response *models.RecommendResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\n%s\n\n", response.Heading)
	if len(response.Recommendations) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "Name")
	for _, c := range models.Columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)
	for _, r := range response.Recommendations {
		fmt.Fprint(tw, utils.Truncate(r.Name, maxCellWidth))
		for _, cell := range r.Cells() {
			fmt.Fprintf(tw, "\t%s", utils.Truncate(cell, maxCellWidth))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// WriteNotFound reports an unknown name and any suggestions.
func WriteNotFound(w io.Writer, resp *models.ErrorResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Error)
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(w, "\nDid you mean:")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	return nil
}

// WriteSimilarity writes a similarity matrix, one row per line in text mode.
func WriteSimilarity(w io.Writer, response *models.SimilarityResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "%dx%d similarity (batch size %d) in %dms\n", response.Rows, response.Cols, response.BatchSize, response.QueryTime)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range response.Similarity {
		for _, v := range row {
			fmt.Fprintf(tw, "%.4f\t", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
