package exporter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"plandash/internal/dataprocessing"
	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

func fixtureSummary() dataprocessing.Summary {
	return dataprocessing.Summary{
		TotalRecords: 3,
		Milestones:   1,
		SpanStart:    "2024-03-01",
		SpanEnd:      "2024-03-21",
		SpanDays:     21,
		MeanProgress: 0.5,
		ByCategory: []dataprocessing.NameCount{
			{Name: "Engineering", Count: 2},
			{Name: "unspecified", Count: 1},
		},
		ByStatus: []dataprocessing.NameCount{
			{Name: "Done", Count: 1},
		},
	}
}

func TestWriteDashboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.xlsx")
	w := NewDashboardWriter(testLogger())

	pivots := []domain.PivotResult{
		{
			Name:       "by_status",
			Dimensions: []string{"status"},
			Buckets: []domain.PivotBucket{
				{Key: []string{"Done"}, Value: 1},
				{Key: []string{"In Progress"}, Value: 1},
			},
		},
	}
	graph := domain.DependencyGraph{
		Dangling: []domain.DanglingRef{
			{FromID: "T2", Source: "plan.xlsx", MissingID: "GHOST"},
		},
		Cycles: [][]string{{"A", "B"}},
	}

	require.NoError(t, w.Write(path, fixtureDataset(), pivots, fixtureSummary(), graph))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Index")
	assert.Contains(t, sheets, "Consolidated Data")
	assert.Contains(t, sheets, "by_status")
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Warnings")

	rows, err := f.GetRows("Consolidated Data")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "T1", rows[1][0])

	// Retained opaque columns land after the fixed headers.
	budgetCol := len(DatasetHeaders)
	assert.Equal(t, "Budget", rows[0][budgetCol])
	assert.Equal(t, "100", rows[1][budgetCol])

	tables, err := f.GetTables("Consolidated Data")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "ConsolidatedData", tables[0].Name)

	pivotRows, err := f.GetRows("by_status")
	require.NoError(t, err)
	require.Len(t, pivotRows, 3)
	assert.Equal(t, []string{"Status", "Value"}, pivotRows[0][:2])
	assert.Equal(t, "Done", pivotRows[1][0])

	warnRows, err := f.GetRows("Warnings")
	require.NoError(t, err)
	require.Len(t, warnRows, 3)
	assert.Equal(t, "dangling dependency", warnRows[1][0])
	assert.Equal(t, "A -> B", warnRows[2][1])

	link, target, err := f.GetCellHyperLink("Index", "A3")
	require.NoError(t, err)
	assert.True(t, link)
	assert.Equal(t, "'Consolidated Data'!A1", target)
}

func TestWriteDashboardNoWarningsSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.xlsx")
	w := NewDashboardWriter(testLogger())

	require.NoError(t, w.Write(path, fixtureDataset(), nil, fixtureSummary(), domain.DependencyGraph{}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.NotContains(t, f.GetSheetList(), "Warnings")
}

func TestWriteDashboardSaveConflict(t *testing.T) {
	w := NewDashboardWriter(testLogger())
	err := w.Write("/nonexistent-dir/dashboard.xlsx", fixtureDataset(), nil, fixtureSummary(), domain.DependencyGraph{})
	assert.True(t, errors.IsType(err, errors.ErrTypeSaveConflict))
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "by_category_month", sanitizeSheetName("by_category_month"))
	assert.Equal(t, "tasks_2024_Q1", sanitizeSheetName("tasks/2024:Q1"))

	long := "a_very_long_pivot_name_that_exceeds_the_sheet_limit"
	assert.Len(t, sanitizeSheetName(long), 31)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "", formatDateCell(time.Time{}))
	assert.Equal(t, "2024-03-01", formatDateCell(date(2024, 3, 1)))
	assert.Equal(t, "50%", formatPercent(0.5))
	assert.Equal(t, "Status", titleCase("status"))
}
