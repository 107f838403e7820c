package domain

import (
	"sort"
	"time"
)

// IssueKind classifies a recoverable per-row or per-file problem found
// while loading. These feed the per-run report instead of failing the batch.
type IssueKind string

const (
	IssueUnparseableDate IssueKind = "unparseable_date"
	IssueDuplicateRow    IssueKind = "duplicate_row"
	IssueSchemaMismatch  IssueKind = "schema_mismatch"
	IssueDateOrder       IssueKind = "date_order"
	IssueBlankRow        IssueKind = "blank_row"
)

// RowIssue describes one skipped or repaired row.
type RowIssue struct {
	Row    int       `json:"row"`
	Kind   IssueKind `json:"kind"`
	Reason string    `json:"reason"`
}

// LoadStats accounts for every data row in one source file.
// Invariant: Loaded + Skipped + Invalid == TotalRows.
type LoadStats struct {
	Source    string     `json:"source"`
	TotalRows int        `json:"total_rows"`
	Loaded    int        `json:"loaded"`
	Skipped   int        `json:"skipped"`
	Invalid   int        `json:"invalid"`
	Issues    []RowIssue `json:"issues,omitempty"`
}

// Dataset is an ordered collection of records from one or more sources,
// with per-source load accounting retained for the run report.
type Dataset struct {
	Records []Record    `json:"records"`
	Stats   []LoadStats `json:"stats,omitempty"`
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// Sources lists the distinct source file names in first-seen order.
func (d *Dataset) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Records {
		if !seen[r.Source] {
			seen[r.Source] = true
			out = append(out, r.Source)
		}
	}
	return out
}

// ByID indexes records by ID. Cross-file collisions keep every record,
// in dataset order.
func (d *Dataset) ByID() map[string][]Record {
	idx := make(map[string][]Record, len(d.Records))
	for _, r := range d.Records {
		idx[r.ID] = append(idx[r.ID], r)
	}
	return idx
}

// DateSpan returns the earliest and latest primary dates in the dataset.
// The second return is false when no record carries a date.
func (d *Dataset) DateSpan() (time.Time, time.Time, bool) {
	var min, max time.Time
	found := false
	for _, r := range d.Records {
		t := r.PrimaryDate()
		if t.IsZero() {
			continue
		}
		if !found || t.Before(min) {
			min = t
		}
		end := r.End
		if end.IsZero() {
			end = t
		}
		if !found || end.After(max) {
			max = end
		}
		found = true
	}
	return min, max, found
}

// SortByDate orders records by primary date, then source, then row, so
// downstream output is stable across runs.
func (d *Dataset) SortByDate() {
	sort.SliceStable(d.Records, func(i, j int) bool {
		a, b := d.Records[i], d.Records[j]
		at, bt := a.PrimaryDate(), b.PrimaryDate()
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Row < b.Row
	})
}

// TotalIssues sums skipped and invalid rows across all sources.
func (d *Dataset) TotalIssues() int {
	n := 0
	for _, s := range d.Stats {
		n += s.Skipped + s.Invalid
	}
	return n
}
