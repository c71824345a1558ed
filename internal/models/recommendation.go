package models

// Column titles used when rendering recommendations.
const (
	ColumnCuisines = "Cuisines"
	ColumnRating   = "Average Normalized Rating on Zomato"
	ColumnCost     = "Cost for 2 People"
	ColumnLocation = "Location"
)

// Columns is the rendered column order.
var Columns = []string{ColumnCuisines, ColumnRating, ColumnCost, ColumnLocation}

// Recommendation is a single similar restaurant.
type Recommendation struct {
	Name     string  `json:"name"`
	Cuisines string  `json:"cuisines"`
	Rating   float64 `json:"rating"`
	Cost     string  `json:"cost"`
	Location string  `json:"location"`
}

// Cells returns the values in Columns order.
func (r *Recommendation) Cells() []string {
	return []string{r.Cuisines, FormatRating(r.Rating), r.Cost, r.Location}
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Query           string            `json:"query"`
	Name            string            `json:"name"`
	Heading         string            `json:"heading"`
	Recommendations []*Recommendation `json:"recommendations"`
	Total           int               `json:"total"`
	QueryTime       int64             `json:"query_time_ms"`
}

// ErrorResponse is the JSON body for failed requests.
// Suggestions is only set when a restaurant name was not found.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Status      int      `json:"status"`
	Suggestions []string `json:"suggestions,omitempty"`
}
