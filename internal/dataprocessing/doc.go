// Package dataprocessing implements the record loader and the
// aggregator/dashboard builder: spreadsheet and CSV rows become typed
// records with per-row accounting, and merged datasets become pivot
// aggregates, dependency graphs and summary statistics for the exporters.
package dataprocessing
