package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantt.html")
	g := NewGanttBuilder(testLogger())

	graph := domain.DependencyGraph{
		Edges: []domain.Edge{{FromID: "T2", ToID: "T1", FromSource: "plan.xlsx"}},
	}
	require.NoError(t, g.WriteHTML(path, fixtureDataset(), graph, "Q1 Plan"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Q1 Plan")
	assert.Contains(t, content, "Design")
	assert.Contains(t, content, "Build")
	// The one-day launch event is flagged as a milestone.
	assert.Contains(t, content, "◆ Launch")
	assert.Contains(t, content, "echarts")
	// Build's dependency list rides along in the tooltip data.
	assert.Contains(t, content, "depends on: T1")
}

func TestWriteHTMLCyclicStillRenders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantt.html")
	g := NewGanttBuilder(testLogger())

	ds := &domain.Dataset{Records: []domain.Record{
		{ID: "A", Kind: domain.KindTask, Title: "Alpha",
			Start: date(2024, 3, 1), End: date(2024, 3, 5),
			Dependencies: []string{"B"}, Source: "p.xlsx", Row: 2},
		{ID: "B", Kind: domain.KindTask, Title: "Beta",
			Start: date(2024, 3, 6), End: date(2024, 3, 10),
			Dependencies: []string{"A", "GHOST"}, Source: "p.xlsx", Row: 3},
	}}
	graph := domain.DependencyGraph{
		Edges: []domain.Edge{
			{FromID: "A", ToID: "B", Cyclic: true},
			{FromID: "B", ToID: "A", Cyclic: true},
		},
		Dangling: []domain.DanglingRef{{FromID: "B", MissingID: "GHOST", Source: "p.xlsx"}},
		Cycles:   [][]string{{"A", "B"}},
	}

	require.NoError(t, g.WriteHTML(path, ds, graph, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "depends on: B (cycle)")
	assert.Contains(t, content, "A (cycle), GHOST (missing)")
}

func TestWriteHTMLEmptyDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gantt.html")
	g := NewGanttBuilder(testLogger())

	err := g.WriteHTML(path, &domain.Dataset{}, domain.DependencyGraph{}, "")
	assert.True(t, errors.IsType(err, errors.ErrTypeEmptyInput))
}

func TestBuildRowsOrderAndProgress(t *testing.T) {
	g := NewGanttBuilder(testLogger())
	rows := g.buildRows(fixtureDataset(), domain.DependencyGraph{})
	require.Len(t, rows, 3)

	// Latest date first so the earliest task renders at the top after
	// axis reversal.
	assert.Equal(t, "◆ Launch", rows[0].label)
	assert.Equal(t, "Design", rows[2].label)

	// Design: 5 days, fully complete, starts at the chart origin.
	assert.Equal(t, 0.0, rows[2].offset)
	assert.Equal(t, 5.0, rows[2].completed)
	assert.Equal(t, 0.0, rows[2].remaining)

	// Build: 15 days at 50%, offset 5 days from the chart start.
	assert.Equal(t, 5.0, rows[1].offset)
	assert.Equal(t, 7.5, rows[1].completed)
	assert.Equal(t, 7.5, rows[1].remaining)
}

func TestDepNote(t *testing.T) {
	rec := domain.Record{ID: "X", Dependencies: []string{"A", "B", "C"}}
	note := depNote(rec,
		map[string]bool{"X\x00A": true},
		map[string]bool{"X\x00C": true})
	assert.Equal(t, "depends on: A (cycle), B, C (missing)", note)

	assert.Empty(t, depNote(domain.Record{ID: "Y"}, nil, nil))
}

func TestRendererMissingPage(t *testing.T) {
	r := NewChromeRenderer(testLogger())
	err := r.RenderPNG(context.Background(), "/nonexistent/gantt.html", filepath.Join(t.TempDir(), "out.png"))
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}
