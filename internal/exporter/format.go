package exporter

import (
	"fmt"
	"strings"
	"time"

	"plandash/internal/dataprocessing"
)

// formatDateCell renders a date for an export cell, blank when unset.
func formatDateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return dataprocessing.FormatDate(t)
}

// formatPercent renders a 0..1 progress value as a percentage label.
func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// titleCase upper-cases the first letter of a dimension name for use
// as a column header.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sanitizeSheetName trims a pivot name to a legal Excel sheet name.
// Sheet names cap at 31 characters and reject a handful of punctuation.
func sanitizeSheetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) > 31 {
		out = out[:31]
	}
	return string(out)
}
