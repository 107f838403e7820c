package dataprocessing

import "strings"

// Canonical field names recognized in source headers.
const (
	FieldID           = "id"
	FieldTitle        = "title"
	FieldDate         = "date"
	FieldStart        = "start"
	FieldEnd          = "end"
	FieldCategory     = "category"
	FieldStatus       = "status"
	FieldAssigned     = "assigned"
	FieldProgress     = "progress"
	FieldDependencies = "dependencies"
)

// headerSynonyms maps each canonical field to the header spellings
// accepted for it. Matching is an explicit table, not fuzzy text
// matching, so schema validation stays deterministic.
var headerSynonyms = map[string][]string{
	FieldID:           {"id", "task id", "event id", "#", "no", "no."},
	FieldTitle:        {"title", "task", "task name", "event", "event title", "name", "description"},
	FieldDate:         {"date", "day", "event date", "when"},
	FieldStart:        {"start date", "start", "from", "begin", "begin date"},
	FieldEnd:          {"end date", "end", "due", "due date", "to", "finish", "finish date"},
	FieldCategory:     {"category", "type", "group", "phase"},
	FieldStatus:       {"status", "state"},
	FieldAssigned:     {"assigned to", "assigned", "owner", "assignee", "responsible"},
	FieldProgress:     {"progress", "% complete", "percent complete", "complete", "done"},
	FieldDependencies: {"dependencies", "depends on", "deps", "predecessors", "predecessor"},
}

// ColumnMap resolves canonical field names to column indexes in one
// source file. Extras keeps the original header text of unrecognized
// columns so their values survive as opaque attributes.
type ColumnMap struct {
	Fields map[string]int
	Extras map[int]string
}

// MapHeader matches a header row against the synonym table.
func MapHeader(header []string) ColumnMap {
	cm := ColumnMap{
		Fields: make(map[string]int),
		Extras: make(map[int]string),
	}

	for i, raw := range header {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}

		matched := false
		for field, aliases := range headerSynonyms {
			if _, taken := cm.Fields[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if h == alias {
					cm.Fields[field] = i
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			cm.Extras[i] = strings.TrimSpace(raw)
		}
	}

	return cm
}

// Valid reports whether the mapped header amounts to a recognized schema:
// a title column plus at least one date-bearing column.
func (cm ColumnMap) Valid() bool {
	if _, ok := cm.Fields[FieldTitle]; !ok {
		return false
	}
	_, hasDate := cm.Fields[FieldDate]
	_, hasStart := cm.Fields[FieldStart]
	return hasDate || hasStart
}

// Col returns the column index for a canonical field, -1 when absent.
func (cm ColumnMap) Col(field string) int {
	if i, ok := cm.Fields[field]; ok {
		return i
	}
	return -1
}

// cell returns the trimmed value of a canonical field in a row, or "".
func (cm ColumnMap) cell(row []string, field string) string {
	i := cm.Col(field)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ":")
	return strings.Join(strings.Fields(h), " ")
}
