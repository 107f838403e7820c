package dataprocessing

import (
	"strconv"
	"strings"
	"time"

	"plandash/internal/errors"
)

// dateFormats are tried in order; the first successful parse wins.
// Day-first formats come before month-first, matching the source data.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// excelEpoch is day zero of the 1900 date system used by xlsx files.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate coerces a cell value into a calendar date. Accepts the common
// text formats plus Excel serial numbers (GetRows returns those as plain
// digits when a cell has no date style). Never falls back to a sentinel:
// on failure the caller must exclude and count the row.
func ParseDate(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, errors.NewParsingError("empty date value", nil)
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	// Excel serial date. Bounds keep plain row numbers and years from
	// being read as dates.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 20000 && serial < 80000 {
		days := int(serial)
		return excelEpoch.AddDate(0, 0, days), nil
	}

	return time.Time{}, errors.NewParsingError("unrecognized date format: "+s, nil)
}

// FormatDate renders a date in the canonical output format.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// parseProgress coerces a progress cell to the 0..1 range. Values above 1
// are treated as percentages. Unparseable input reads as zero, matching
// the source data where blank means "not started".
func parseProgress(value string) float64 {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// splitDependencies breaks a dependency cell into ordered IDs.
func splitDependencies(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var deps []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			deps = append(deps, f)
		}
	}
	return deps
}
