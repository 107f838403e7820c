package exporter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"plandash/internal/dataprocessing"
	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

const (
	indexSheet        = "Index"
	consolidatedSheet = "Consolidated Data"
	summarySheet      = "Summary"
	warningsSheet     = "Warnings"
)

// DashboardWriter builds the dashboard workbook: a consolidated data
// table, one sheet per pivot with highlighting, roll-up stats, and
// dependency warnings, all reachable from a hyperlinked index.
type DashboardWriter struct {
	logger *slog.Logger
}

// NewDashboardWriter creates a dashboard workbook writer.
func NewDashboardWriter(logger *slog.Logger) *DashboardWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardWriter{logger: logger}
}

// Write assembles the workbook and saves it to path.
func (w *DashboardWriter) Write(path string, ds *domain.Dataset, pivots []domain.PivotResult, summary dataprocessing.Summary, graph domain.DependencyGraph) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), indexSheet)

	if err := w.writeConsolidated(f, ds); err != nil {
		return err
	}

	pivotSheets := make([]string, 0, len(pivots))
	for _, pivot := range pivots {
		sheet, err := w.writePivot(f, pivot)
		if err != nil {
			return err
		}
		pivotSheets = append(pivotSheets, sheet)
	}

	if err := w.writeSummary(f, summary); err != nil {
		return err
	}
	if err := w.writeWarnings(f, graph); err != nil {
		return err
	}
	if err := w.writeIndex(f, pivotSheets, graph); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewSaveConflictError(path, err)
	}

	w.logger.Info("dashboard workbook written",
		slog.String("path", path),
		slog.Int("records", ds.Len()),
		slog.Int("pivots", len(pivots)))
	return nil
}

func (w *DashboardWriter) writeConsolidated(f *excelize.File, ds *domain.Dataset) error {
	if _, err := f.NewSheet(consolidatedSheet); err != nil {
		return errors.NewStorageError("cannot create consolidated sheet", err)
	}

	// Retained opaque columns ride along after the fixed ones.
	extras := extraColumns(ds)
	headers := append(append([]string{}, DatasetHeaders...), extras...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(consolidatedSheet, cell, h); err != nil {
			return errors.NewStorageError("cannot write consolidated header", err)
		}
	}

	for r, rec := range ds.Records {
		row := recordRow(rec)
		for _, key := range extras {
			row = append(row, rec.Extra[key])
		}
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(consolidatedSheet, cell, value); err != nil {
				return errors.NewStorageError("cannot write consolidated row", err)
			}
		}
	}

	if ds.Len() > 0 {
		end, _ := excelize.CoordinatesToCellName(len(headers), ds.Len()+1)
		showStripes := true
		if err := f.AddTable(consolidatedSheet, &excelize.Table{
			Range:          "A1:" + end,
			Name:           "ConsolidatedData",
			StyleName:      "TableStyleMedium9",
			ShowRowStripes: &showStripes,
		}); err != nil {
			return errors.NewStorageError("cannot add consolidated table", err)
		}
	}

	f.SetColWidth(consolidatedSheet, "A", "C", 18)
	f.SetColWidth(consolidatedSheet, "C", "C", 40)
	return nil
}

// extraColumns returns the sorted union of retained opaque column names
// across the dataset.
func extraColumns(ds *domain.Dataset) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range ds.Records {
		for _, key := range rec.ExtraKeys() {
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	sort.Strings(out)
	return out
}

// writePivot writes one pivot to its own sheet. Values in the top decile
// are highlighted and negative values flagged red.
func (w *DashboardWriter) writePivot(f *excelize.File, pivot domain.PivotResult) (string, error) {
	sheet := sanitizeSheetName(pivot.Name)
	if _, err := f.NewSheet(sheet); err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("cannot create pivot sheet %s", sheet), err)
	}

	headers := append(append([]string{}, pivot.Dimensions...), "Value")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, titleCase(h)); err != nil {
			return "", errors.NewStorageError("cannot write pivot header", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return "", errors.NewStorageError("cannot create pivot header style", err)
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", endHeader, headerStyle)

	valueCol := len(headers)
	for r, bucket := range pivot.Buckets {
		for c, key := range bucket.Key {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, key); err != nil {
				return "", errors.NewStorageError("cannot write pivot key", err)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(valueCol, r+2)
		if err := f.SetCellValue(sheet, cell, bucket.Value); err != nil {
			return "", errors.NewStorageError("cannot write pivot value", err)
		}
	}

	if len(pivot.Buckets) > 0 {
		topStyle, err := f.NewConditionalStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
			Font: &excelize.Font{Color: "006100"},
		})
		if err != nil {
			return "", errors.NewStorageError("cannot create top-value style", err)
		}
		negStyle, err := f.NewConditionalStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
			Font: &excelize.Font{Color: "9C0006"},
		})
		if err != nil {
			return "", errors.NewStorageError("cannot create negative-value style", err)
		}

		start, _ := excelize.CoordinatesToCellName(valueCol, 2)
		end, _ := excelize.CoordinatesToCellName(valueCol, len(pivot.Buckets)+1)
		if err := f.SetConditionalFormat(sheet, start+":"+end, []excelize.ConditionalFormatOptions{
			{Type: "top", Criteria: "=", Value: "10", Percent: true, Format: &topStyle},
			{Type: "cell", Criteria: "<", Value: "0", Format: &negStyle},
		}); err != nil {
			return "", errors.NewStorageError("cannot set pivot conditional format", err)
		}
	}

	f.SetColWidth(sheet, "A", "B", 22)
	return sheet, nil
}

func (w *DashboardWriter) writeSummary(f *excelize.File, summary dataprocessing.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.NewStorageError("cannot create summary sheet", err)
	}

	rows := [][2]interface{}{
		{"Total Records", summary.TotalRecords},
		{"Milestones", summary.Milestones},
		{"Span Start", summary.SpanStart},
		{"Span End", summary.SpanEnd},
		{"Span Days", summary.SpanDays},
		{"Mean Progress", formatPercent(summary.MeanProgress)},
		{"Weighted Progress", formatPercent(summary.WeightedProgress)},
	}
	for i, row := range rows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	next := len(rows) + 2
	next = w.writeCountBlock(f, "By Category", summary.ByCategory, next)
	w.writeCountBlock(f, "By Status", summary.ByStatus, next)

	f.SetColWidth(summarySheet, "A", "A", 24)
	return nil
}

func (w *DashboardWriter) writeCountBlock(f *excelize.File, title string, counts []dataprocessing.NameCount, row int) int {
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), title)
	row++
	for _, nc := range counts {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), nc.Name)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), nc.Count)
		row++
	}
	return row + 1
}

func (w *DashboardWriter) writeWarnings(f *excelize.File, graph domain.DependencyGraph) error {
	if !graph.HasWarnings() {
		return nil
	}
	if _, err := f.NewSheet(warningsSheet); err != nil {
		return errors.NewStorageError("cannot create warnings sheet", err)
	}

	f.SetCellValue(warningsSheet, "A1", "Kind")
	f.SetCellValue(warningsSheet, "B1", "Detail")

	row := 2
	for _, d := range graph.Dangling {
		f.SetCellValue(warningsSheet, fmt.Sprintf("A%d", row), "dangling dependency")
		f.SetCellValue(warningsSheet, fmt.Sprintf("B%d", row),
			fmt.Sprintf("%s (from %s in %s)", d.MissingID, d.FromID, d.Source))
		row++
	}
	for _, cycle := range graph.Cycles {
		f.SetCellValue(warningsSheet, fmt.Sprintf("A%d", row), "dependency cycle")
		f.SetCellValue(warningsSheet, fmt.Sprintf("B%d", row), strings.Join(cycle, " -> "))
		row++
	}

	f.SetColWidth(warningsSheet, "A", "A", 22)
	f.SetColWidth(warningsSheet, "B", "B", 60)
	return nil
}

func (w *DashboardWriter) writeIndex(f *excelize.File, pivotSheets []string, graph domain.DependencyGraph) error {
	f.SetCellValue(indexSheet, "A1", "Dashboard")
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err == nil {
		f.SetCellStyle(indexSheet, "A1", "A1", titleStyle)
	}

	targets := append([]string{consolidatedSheet, summarySheet}, pivotSheets...)
	if graph.HasWarnings() {
		targets = append(targets, warningsSheet)
	}

	linkStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0000FF", Underline: "single"},
	})
	for i, target := range targets {
		cell := fmt.Sprintf("A%d", i+3)
		f.SetCellValue(indexSheet, cell, target)
		if err := f.SetCellHyperLink(indexSheet, cell,
			fmt.Sprintf("'%s'!A1", target), "Location"); err != nil {
			return errors.NewStorageError("cannot set index hyperlink", err)
		}
		f.SetCellStyle(indexSheet, cell, cell, linkStyle)
	}

	f.SetColWidth(indexSheet, "A", "A", 30)
	return nil
}
