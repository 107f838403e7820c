package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

// Aggregator merges datasets and builds the pivot aggregates, dependency
// graph and summary statistics handed to the exporters. It never renders.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator with an explicit logger.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Merge concatenates datasets in order, retaining provenance. Records
// sharing an ID across files stay distinct; the source file name
// disambiguates them.
func (a *Aggregator) Merge(datasets ...*domain.Dataset) *domain.Dataset {
	merged := &domain.Dataset{}
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		merged.Records = append(merged.Records, ds.Records...)
		merged.Stats = append(merged.Stats, ds.Stats...)
	}
	return merged
}

// MergeByID unions records sharing an ID across files, field by field.
// Later sources win for conflicting non-empty fields; empty fields never
// overwrite populated ones. Dependency lists are unioned in order.
func (a *Aggregator) MergeByID(datasets ...*domain.Dataset) *domain.Dataset {
	merged := &domain.Dataset{}
	index := make(map[string]int)

	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		merged.Stats = append(merged.Stats, ds.Stats...)
		for _, rec := range ds.Records {
			i, ok := index[rec.ID]
			if !ok {
				index[rec.ID] = len(merged.Records)
				merged.Records = append(merged.Records, rec)
				continue
			}
			merged.Records[i] = overlayRecord(merged.Records[i], rec)
		}
	}
	return merged
}

// overlayRecord applies the non-empty fields of next on top of base.
func overlayRecord(base, next domain.Record) domain.Record {
	out := base
	// The update's provenance wins along with its fields.
	out.Source = next.Source
	out.Row = next.Row

	if next.Title != "" {
		out.Title = next.Title
	}
	if next.Kind != "" {
		out.Kind = next.Kind
	}
	if !next.Date.IsZero() {
		out.Date = next.Date
	}
	if !next.Start.IsZero() {
		out.Start = next.Start
	}
	if !next.End.IsZero() {
		out.End = next.End
	}
	if next.Category != "" {
		out.Category = next.Category
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if next.AssignedTo != "" {
		out.AssignedTo = next.AssignedTo
	}
	if next.Progress != 0 {
		out.Progress = next.Progress
	}

	seen := make(map[string]bool, len(out.Dependencies))
	for _, d := range out.Dependencies {
		seen[d] = true
	}
	for _, d := range next.Dependencies {
		if !seen[d] {
			out.Dependencies = append(out.Dependencies, d)
			seen[d] = true
		}
	}

	for k, v := range next.Extra {
		if v == "" {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		out.Extra[k] = v
	}
	return out
}

// Pivot dimensions.
const (
	DimCategory = "category"
	DimStatus   = "status"
	DimSource   = "source"
	DimMonth    = "month"
	DimAssigned = "assigned"
)

// UnspecifiedBucket groups records missing a dimension value. They are
// never dropped from a pivot.
const UnspecifiedBucket = "unspecified"

// Aggregation kinds.
type AggregationKind string

const (
	AggCount         AggregationKind = "count"
	AggSum           AggregationKind = "sum"
	AggDistinctCount AggregationKind = "distinct"
)

// Aggregation selects the reducer for a pivot. Field names the record
// attribute reduced by sum and distinct-count: "progress", "duration", or
// any retained extra column.
type Aggregation struct {
	Kind  AggregationKind
	Field string
}

// PivotSpec names a pivot and its one or two group-by dimensions.
type PivotSpec struct {
	Name       string
	Dimensions []string
	Agg        Aggregation
}

// Pivot groups records by the spec's dimensions and reduces each bucket.
// Buckets come out sorted by key for reproducible output.
func (a *Aggregator) Pivot(ctx context.Context, ds *domain.Dataset, spec PivotSpec) (domain.PivotResult, error) {
	if len(spec.Dimensions) == 0 || len(spec.Dimensions) > 2 {
		return domain.PivotResult{}, errors.NewParsingError(
			fmt.Sprintf("pivot %q needs one or two dimensions, got %d", spec.Name, len(spec.Dimensions)), nil)
	}
	for _, dim := range spec.Dimensions {
		if !validDimension(dim) {
			return domain.PivotResult{}, errors.NewParsingError(
				fmt.Sprintf("unknown pivot dimension %q", dim), nil)
		}
	}

	type bucket struct {
		key      []string
		sum      float64
		count    float64
		distinct map[string]bool
	}
	buckets := make(map[string]*bucket)

	for _, rec := range ds.Records {
		key := make([]string, len(spec.Dimensions))
		for i, dim := range spec.Dimensions {
			key[i] = dimensionValue(rec, dim)
		}
		mapKey := strings.Join(key, "\x00")
		b, ok := buckets[mapKey]
		if !ok {
			b = &bucket{key: key, distinct: make(map[string]bool)}
			buckets[mapKey] = b
		}
		b.count++
		b.sum += fieldValue(rec, spec.Agg.Field)
		if v := fieldString(rec, spec.Agg.Field); v != "" {
			b.distinct[v] = true
		}
	}

	result := domain.PivotResult{
		Name:       spec.Name,
		Dimensions: spec.Dimensions,
	}
	for _, b := range buckets {
		var value float64
		switch spec.Agg.Kind {
		case AggSum:
			value = b.sum
		case AggDistinctCount:
			value = float64(len(b.distinct))
		default:
			value = b.count
		}
		result.Buckets = append(result.Buckets, domain.PivotBucket{Key: b.key, Value: value})
	}

	sort.Slice(result.Buckets, func(i, j int) bool {
		return result.Buckets[i].KeyString() < result.Buckets[j].KeyString()
	})

	a.logger.DebugContext(ctx, "pivot built",
		slog.String("name", spec.Name),
		slog.Int("buckets", len(result.Buckets)))

	return result, nil
}

func validDimension(dim string) bool {
	switch dim {
	case DimCategory, DimStatus, DimSource, DimMonth, DimAssigned:
		return true
	}
	return false
}

func dimensionValue(rec domain.Record, dim string) string {
	var v string
	switch dim {
	case DimCategory:
		v = rec.Category
	case DimStatus:
		v = rec.Status
	case DimSource:
		v = rec.Source
	case DimAssigned:
		v = rec.AssignedTo
	case DimMonth:
		if t := rec.PrimaryDate(); !t.IsZero() {
			v = t.Format("2006-01")
		}
	}
	if v == "" {
		return UnspecifiedBucket
	}
	return v
}

func fieldValue(rec domain.Record, field string) float64 {
	switch field {
	case "", "progress":
		return rec.Progress
	case "duration":
		return float64(rec.DurationDays())
	default:
		if raw, ok := rec.Extra[field]; ok {
			v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 64)
			if err == nil {
				return v
			}
		}
		return 0
	}
}

func fieldString(rec domain.Record, field string) string {
	switch field {
	case "", "title":
		return rec.Title
	case "category":
		return rec.Category
	case "status":
		return rec.Status
	case "assigned":
		return rec.AssignedTo
	default:
		return rec.Extra[field]
	}
}

// DependencyGraph resolves each record's dependencies within the merged
// dataset into a directed edge list. Dangling references and cycles are
// validation warnings, not failures: cyclic edges stay in the list,
// flagged, so the chart is still produced.
func (a *Aggregator) DependencyGraph(ctx context.Context, ds *domain.Dataset) domain.DependencyGraph {
	graph := domain.DependencyGraph{}

	present := make(map[string]bool, len(ds.Records))
	adjacency := make(map[string][]string)
	for _, rec := range ds.Records {
		present[rec.ID] = true
	}

	for _, rec := range ds.Records {
		for _, dep := range rec.Dependencies {
			if !present[dep] {
				graph.Dangling = append(graph.Dangling, domain.DanglingRef{
					FromID:    rec.ID,
					MissingID: dep,
					Source:    rec.Source,
				})
				continue
			}
			graph.Edges = append(graph.Edges, domain.Edge{
				FromID:     rec.ID,
				ToID:       dep,
				FromSource: rec.Source,
			})
			adjacency[rec.ID] = append(adjacency[rec.ID], dep)
		}
	}

	graph.Cycles = findCycles(adjacency)
	if len(graph.Cycles) > 0 {
		markCyclicEdges(&graph)
	}

	for _, ref := range graph.Dangling {
		a.logger.WarnContext(ctx, "dangling dependency",
			slog.String("from", ref.FromID),
			slog.String("missing", ref.MissingID),
			slog.String("source", ref.Source))
	}
	for _, cycle := range graph.Cycles {
		a.logger.WarnContext(ctx, "dependency cycle detected",
			slog.Any("members", cycle))
	}

	return graph
}

// findCycles runs a colored depth-first search over the dependency graph.
// Each cycle is reported once, members in path order so consecutive
// entries (and last back to first) are the cycle's edges.
func findCycles(adjacency map[string][]string) [][]string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var cycles [][]string
	seen := make(map[string]bool)

	nodes := make([]string, 0, len(adjacency))
	for n := range adjacency {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var stack []string
	var visit func(node string)
	visit = func(node string) {
		color[node] = grey
		stack = append(stack, node)

		for _, next := range adjacency[node] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				// Back edge: the cycle is the stack segment from
				// next to the current node.
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				members := append([]string{}, stack[start:]...)

				sorted := append([]string{}, members...)
				sort.Strings(sorted)
				sig := strings.Join(sorted, "\x00")
				if !seen[sig] {
					seen[sig] = true
					cycles = append(cycles, members)
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, node := range nodes {
		if color[node] == white {
			visit(node)
		}
	}
	return cycles
}

// markCyclicEdges flags the edges lying on a detected cycle. Membership
// alone is not enough: a chord between two cycle members is not cyclic.
func markCyclicEdges(graph *domain.DependencyGraph) {
	onCycle := make(map[string]bool)
	for _, cycle := range graph.Cycles {
		for i, id := range cycle {
			next := cycle[(i+1)%len(cycle)]
			onCycle[id+"\x00"+next] = true
		}
	}
	for i, e := range graph.Edges {
		if onCycle[e.FromID+"\x00"+e.ToID] {
			graph.Edges[i].Cyclic = true
		}
	}
}

// NameCount is one line of a per-dimension tally, sorted by name.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary carries the roll-up statistics for a merged dataset.
type Summary struct {
	TotalRecords int         `json:"total_records"`
	ByCategory   []NameCount `json:"by_category"`
	ByStatus     []NameCount `json:"by_status"`
	SpanStart    string      `json:"span_start,omitempty"`
	SpanEnd      string      `json:"span_end,omitempty"`
	SpanDays     int         `json:"span_days"`
	// MeanProgress is a simple average over all records; the weighted
	// variant weights each task by its duration in days.
	MeanProgress     float64 `json:"mean_progress"`
	WeightedProgress float64 `json:"weighted_progress"`
	Milestones       int     `json:"milestones"`
}

// Summarize computes counts per category and status, the overall date
// span, and the progress roll-ups.
func (a *Aggregator) Summarize(ctx context.Context, ds *domain.Dataset) Summary {
	s := Summary{TotalRecords: ds.Len()}

	byCategory := make(map[string]int)
	byStatus := make(map[string]int)
	var progress, weights []float64

	for _, rec := range ds.Records {
		byCategory[orUnspecified(rec.Category)]++
		byStatus[orUnspecified(rec.Status)]++
		progress = append(progress, rec.Progress)
		weights = append(weights, float64(rec.DurationDays()))
		if rec.Kind == domain.KindTask && rec.IsMilestone() {
			s.Milestones++
		}
	}

	s.ByCategory = sortedCounts(byCategory)
	s.ByStatus = sortedCounts(byStatus)

	if min, max, ok := ds.DateSpan(); ok {
		s.SpanStart = FormatDate(min)
		s.SpanEnd = FormatDate(max)
		s.SpanDays = int(max.Sub(min).Hours()/24) + 1
	}

	if len(progress) > 0 {
		s.MeanProgress = stat.Mean(progress, nil)
		s.WeightedProgress = stat.Mean(progress, weights)
	}

	a.logger.InfoContext(ctx, "summary computed",
		slog.Int("records", s.TotalRecords),
		slog.Int("categories", len(s.ByCategory)),
		slog.Int("milestones", s.Milestones))

	return s
}

func orUnspecified(v string) string {
	if v == "" {
		return UnspecifiedBucket
	}
	return v
}

func sortedCounts(m map[string]int) []NameCount {
	out := make([]NameCount, 0, len(m))
	for name, count := range m {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
