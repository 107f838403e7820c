package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

// GanttBuilder renders a dataset as an interactive Gantt page. Each task
// is a horizontal stacked bar: an invisible offset from the chart start,
// the completed portion, then the remainder. Task tooltips carry the
// dependency list, with cyclic and missing references called out.
type GanttBuilder struct {
	logger *slog.Logger
}

// NewGanttBuilder creates a Gantt chart builder.
func NewGanttBuilder(logger *slog.Logger) *GanttBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GanttBuilder{logger: logger}
}

type ganttRow struct {
	label     string
	offset    float64
	completed float64
	remaining float64
	depNote   string
}

// WriteHTML renders the chart to a standalone HTML file.
func (g *GanttBuilder) WriteHTML(path string, ds *domain.Dataset, graph domain.DependencyGraph, title string) error {
	rows := g.buildRows(ds, graph)
	if len(rows) == 0 {
		return errors.NewEmptyInputError("no dated records to chart")
	}
	if title == "" {
		title = "Project Timeline"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1200px",
			Height:    "720px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Formatter: tooltipFormatter(rows),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Days from start"}),
	)

	labels := make([]string, 0, len(rows))
	offsets := make([]opts.BarData, 0, len(rows))
	completed := make([]opts.BarData, 0, len(rows))
	remaining := make([]opts.BarData, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.label)
		// Offset bars are transparent so the visible bar floats at the
		// task's start day.
		offsets = append(offsets, opts.BarData{
			Value:     row.offset,
			ItemStyle: &opts.ItemStyle{Color: "rgba(0,0,0,0)"},
		})
		completed = append(completed, opts.BarData{
			Value:     row.completed,
			ItemStyle: &opts.ItemStyle{Color: "#5470c6"},
		})
		remaining = append(remaining, opts.BarData{
			Value:     row.remaining,
			ItemStyle: &opts.ItemStyle{Color: "#91cc75"},
		})
	}

	bar.SetXAxis(labels).
		AddSeries("offset", offsets, charts.WithBarChartOpts(opts.BarChart{Stack: "gantt"})).
		AddSeries("completed", completed, charts.WithBarChartOpts(opts.BarChart{Stack: "gantt"})).
		AddSeries("remaining", remaining, charts.WithBarChartOpts(opts.BarChart{Stack: "gantt"}))
	bar.XYReversal()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("cannot create chart directory", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.NewSaveConflictError(path, err)
	}
	defer file.Close()

	if err := bar.Render(file); err != nil {
		return errors.NewRenderError("cannot render gantt chart", err)
	}

	g.logger.Info("gantt chart written",
		slog.String("path", path),
		slog.Int("tasks", len(rows)))
	return nil
}

// buildRows turns dated records into chart rows ordered latest-first, so
// the earliest task lands at the top after axis reversal.
func (g *GanttBuilder) buildRows(ds *domain.Dataset, graph domain.DependencyGraph) []ganttRow {
	var dated []domain.Record
	for _, rec := range ds.Records {
		if !rec.PrimaryDate().IsZero() {
			dated = append(dated, rec)
		}
	}
	if len(dated) == 0 {
		return nil
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].PrimaryDate().After(dated[j].PrimaryDate())
	})
	chartStart := dated[len(dated)-1].PrimaryDate()

	cyclicEdge := make(map[string]bool)
	for _, e := range graph.Edges {
		if e.Cyclic {
			cyclicEdge[e.FromID+"\x00"+e.ToID] = true
		}
	}
	missing := make(map[string]bool)
	for _, d := range graph.Dangling {
		missing[d.FromID+"\x00"+d.MissingID] = true
	}

	rows := make([]ganttRow, 0, len(dated))
	for _, rec := range dated {
		duration := float64(rec.DurationDays())
		done := duration * rec.Progress

		label := rec.Title
		if rec.IsMilestone() {
			label = "◆ " + label
		}

		rows = append(rows, ganttRow{
			label:     label,
			offset:    rec.PrimaryDate().Sub(chartStart).Hours() / 24,
			completed: done,
			remaining: duration - done,
			depNote:   depNote(rec, cyclicEdge, missing),
		})
	}
	return rows
}

// depNote renders a record's dependency list for its tooltip, marking
// entries on a cycle or pointing at a missing ID.
func depNote(rec domain.Record, cyclicEdge, missing map[string]bool) string {
	if len(rec.Dependencies) == 0 {
		return ""
	}
	entries := make([]string, 0, len(rec.Dependencies))
	for _, dep := range rec.Dependencies {
		switch {
		case cyclicEdge[rec.ID+"\x00"+dep]:
			entries = append(entries, dep+" (cycle)")
		case missing[rec.ID+"\x00"+dep]:
			entries = append(entries, dep+" (missing)")
		default:
			entries = append(entries, dep)
		}
	}
	return "depends on: " + strings.Join(entries, ", ")
}

// tooltipFormatter builds the echarts tooltip callback with the per-task
// dependency notes embedded as a label-keyed object.
func tooltipFormatter(rows []ganttRow) types.FuncStr {
	notes := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.depNote != "" {
			notes[row.label] = row.depNote
		}
	}
	encoded, _ := json.Marshal(notes)

	return opts.FuncOpts(fmt.Sprintf(
		`function (p) {
			var notes = %s;
			var head = p.name + '<br/>' + p.seriesName + ': ' + p.value;
			return notes[p.name] ? head + '<br/>' + notes[p.name] : head;
		}`, encoded))
}
