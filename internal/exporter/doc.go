// Package exporter turns aggregated datasets into shareable artifacts:
// CSV extracts, an Excel dashboard workbook, an interactive Gantt page,
// and PNG/PDF renderings of that page.
package exporter
