// Package suggest offers "did you mean" restaurant names for lookups that miss the catalog.
package suggest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const fieldName = "name"

// Index is an in-memory Bleve index over restaurant names.
type Index struct {
	index     bleve.Index
	names     []string
	canonical map[string]int
	fuzziness int
}

// NewIndex builds a memory-only index of names. Doc IDs are the positions in names.
// Fuzziness is the maximum edit distance per term: 0 matches terms exactly (prefixes still
// match), 1 or 2 allow typos. Values outside 0-2 use 2.
func NewIndex(names []string, fuzziness int) (*Index, error) {
	if fuzziness < 0 || fuzziness > 2 {
		fuzziness = 2
	}
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	nameField := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so partial names still match.
	nameField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldName, nameField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}

	canonical := make(map[string]int, len(names))
	batch := index.NewBatch()
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := canonical[key]; !ok {
			canonical[key] = i
		}
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{fieldName: name}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index name %q: %w", name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index names: %w", err)
	}
	return &Index{index: index, names: names, canonical: canonical, fuzziness: fuzziness}, nil
}

// Suggest returns up to limit distinct names (compared case-insensitively) close to query, best first. Candidates from the
// fuzzy search are re-ranked by edit distance to the whole query; ties keep search order.
func (x *Index) Suggest(query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := x.buildQuery(query)
	if q == nil {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit * 4
	if req.Size < 20 {
		req.Size = 20
	}
	req.SortBy([]string{"-_score", "_id"})
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion search failed: %w", err)
	}

	type candidate struct {
		name     string
		distance int
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]struct{})
	var candidates []candidate
	for _, hit := range results.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(x.names) {
			continue
		}
		key := strings.ToLower(x.names[i])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		// Report the spelling of the first row with this name.
		name := x.names[x.canonical[key]]
		candidates = append(candidates, candidate{name: name, distance: Distance(needle, key)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out, nil
}

// buildQuery ORs a fuzzy and a prefix query per term, so both typos and truncated
// names find candidates.
func (x *Index) buildQuery(query string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	queries := make([]blevequery.Query, 0, 2*len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(x.fuzziness)
		fq.SetField(fieldName)
		queries = append(queries, fq)

		pq := bleve.NewPrefixQuery(term)
		pq.SetField(fieldName)
		queries = append(queries, pq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed names.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
