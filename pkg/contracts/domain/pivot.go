package domain

import "strings"

// PivotBucket is one group in a pivot result. Key holds one value per
// requested dimension.
type PivotBucket struct {
	Key   []string `json:"key"`
	Value float64  `json:"value"`
}

// PivotResult is a named group-by aggregation over a dataset. Buckets are
// sorted by key so output is reproducible across runs.
type PivotResult struct {
	Name       string        `json:"name"`
	Dimensions []string      `json:"dimensions"`
	Buckets    []PivotBucket `json:"buckets"`
}

// Total sums all bucket values.
func (p PivotResult) Total() float64 {
	var sum float64
	for _, b := range p.Buckets {
		sum += b.Value
	}
	return sum
}

// KeyString joins a bucket key for display and sorting.
func (b PivotBucket) KeyString() string {
	return strings.Join(b.Key, " / ")
}

// Edge is one resolved dependency arrow between two records.
type Edge struct {
	FromID     string `json:"from_id"`
	ToID       string `json:"to_id"`
	FromSource string `json:"from_source"`
	Cyclic     bool   `json:"cyclic,omitempty"`
}

// DanglingRef records a dependency pointing at an ID absent from the
// merged dataset. A validation concern, not an error.
type DanglingRef struct {
	FromID    string `json:"from_id"`
	MissingID string `json:"missing_id"`
	Source    string `json:"source"`
}

// DependencyGraph is the resolved edge list plus validation findings for
// the task domain. Cyclic edges stay in Edges, flagged, so the chart can
// still be drawn.
type DependencyGraph struct {
	Edges    []Edge        `json:"edges"`
	Dangling []DanglingRef `json:"dangling,omitempty"`
	Cycles   [][]string    `json:"cycles,omitempty"`
}

// HasWarnings reports whether the graph carries dangling refs or cycles.
func (g DependencyGraph) HasWarnings() bool {
	return len(g.Dangling) > 0 || len(g.Cycles) > 0
}
