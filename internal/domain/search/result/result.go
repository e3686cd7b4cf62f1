// Package result holds backend search output.
package result

// Hit is a single ranked match.
type Hit struct {
	ID    string
	Score float64
}

// SearchResult is an ordered page of hits plus the total number of matches.
type SearchResult struct {
	Hits  []Hit
	Total int
}

// IDs returns hit ids in rank order.
func (r SearchResult) IDs() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.ID
	}
	return out
}

// Empty returns a result with no hits and the given total.
func Empty(total int) SearchResult {
	return SearchResult{Hits: []Hit{}, Total: total}
}
