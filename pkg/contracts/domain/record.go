package domain

import (
	"sort"
	"strings"
	"time"
)

// RecordKind distinguishes the two source domains sharing the Record shape.
type RecordKind string

const (
	KindEvent RecordKind = "event"
	KindTask  RecordKind = "task"
)

// Record is a single row loaded from a spreadsheet or CSV source.
// Calendar events carry Date; project tasks carry Start and End.
type Record struct {
	ID           string            `json:"id"`
	Kind         RecordKind        `json:"kind"`
	Title        string            `json:"title"`
	Date         time.Time         `json:"date,omitempty"`
	Start        time.Time         `json:"start,omitempty"`
	End          time.Time         `json:"end,omitempty"`
	Category     string            `json:"category,omitempty"`
	Status       string            `json:"status,omitempty"`
	AssignedTo   string            `json:"assigned_to,omitempty"`
	Progress     float64           `json:"progress"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`

	// Provenance. Records keep the file and 1-based row they came from so
	// cross-file ID collisions stay distinguishable after a merge.
	Source string `json:"source"`
	Row    int    `json:"row"`
}

// PrimaryDate returns the date used for time-based bucketing: the event
// date when set, otherwise the task start date.
func (r Record) PrimaryDate() time.Time {
	if !r.Date.IsZero() {
		return r.Date
	}
	return r.Start
}

// DurationDays returns the inclusive span of a task in days. Events and
// tasks without both endpoints report a single day.
func (r Record) DurationDays() int {
	if r.Start.IsZero() || r.End.IsZero() {
		return 1
	}
	days := int(r.End.Sub(r.Start).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// IsMilestone reports whether a task spans at most one day.
func (r Record) IsMilestone() bool {
	return r.DurationDays() <= 1
}

// ContentEquals compares two records field-by-field, ignoring provenance.
// Used to collapse exact duplicates within a single source file.
func (r Record) ContentEquals(other Record) bool {
	if r.ID != other.ID || r.Title != other.Title ||
		!r.Date.Equal(other.Date) || !r.Start.Equal(other.Start) || !r.End.Equal(other.End) ||
		r.Category != other.Category || r.Status != other.Status ||
		r.AssignedTo != other.AssignedTo || r.Progress != other.Progress {
		return false
	}
	if strings.Join(r.Dependencies, ",") != strings.Join(other.Dependencies, ",") {
		return false
	}
	if len(r.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range r.Extra {
		if other.Extra[k] != v {
			return false
		}
	}
	return true
}

// ExtraKeys returns the retained opaque column names in sorted order.
func (r Record) ExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
