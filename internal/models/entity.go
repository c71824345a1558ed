// Package models defines core data structures for restaurants, recommendations, and similarity requests.
package models

// Display attribute columns carried through from the features workbook.
const (
	AttrCuisines = "cuisines"
	AttrRating   = "mean_ratings"
	AttrCost     = "cost"
	AttrLocation = "location"
)

// DisplayAttributes lists the attribute columns shown for a recommendation, in order.
var DisplayAttributes = []string{AttrCuisines, AttrRating, AttrCost, AttrLocation}

// Entity is one restaurant row: its name, display attributes, and feature vector.
// Index is the row position in the features dataset; neighbour lists refer to it.
type Entity struct {
	Index      int               `json:"index" db:"row_idx"`
	Name       string            `json:"name" db:"name"`
	Attributes map[string]string `json:"attributes" db:"attributes"`
	Rating     float64           `json:"rating" db:"-"`
	Features   []float64         `json:"-" db:"features"`
}

// Attribute returns the named attribute or "" when absent.
func (e *Entity) Attribute(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// DisplayKey joins the display attributes; two entities with the same key render identically.
func (e *Entity) DisplayKey() string {
	key := ""
	for i, attr := range DisplayAttributes {
		if i > 0 {
			key += "\x1f"
		}
		key += e.Attribute(attr)
	}
	return key
}
