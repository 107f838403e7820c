package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"plandash/internal/config"
	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

func testLoader(t *testing.T) *Loader {
	t.Helper()
	return NewLoader(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})), config.LoaderConfig{})
}

// writeWorkbook builds an xlsx fixture with a header row followed by data rows.
func writeWorkbook(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheet)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestLoadFileTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	writeWorkbook(t, path, "Project schedule", [][]interface{}{
		{"Task ID", "Task", "Start Date", "End Date", "Assigned To", "% Complete", "Depends On"},
		{"T1", "Design", "2025-01-06", "2025-01-10", "Sam", "100", ""},
		{"T2", "Build", "2025-01-13", "2025-01-24", "", "50%", "T1"},
		{"T3", "Launch", "2025-01-27", "2025-01-27", "Alex", "0", "T2"},
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)

	stats := ds.Stats[0]
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 0, stats.Invalid)

	design := ds.Records[0]
	assert.Equal(t, "T1", design.ID)
	assert.Equal(t, domain.KindTask, design.Kind)
	assert.Equal(t, "2025-01-06", FormatDate(design.Start))
	assert.Equal(t, "2025-01-10", FormatDate(design.End))
	assert.Equal(t, 1.0, design.Progress)
	assert.Equal(t, "plan.xlsx", design.Source)

	build := ds.Records[1]
	assert.Equal(t, "Unassigned", build.AssignedTo)
	assert.Equal(t, 0.5, build.Progress)
	assert.Equal(t, []string{"T1"}, build.Dependencies)

	assert.True(t, ds.Records[2].IsMilestone())
}

func TestLoadFileUnparseableDateRow(t *testing.T) {
	// 5 data rows, row 3 (file row 4) has a bad date: 4 loaded, 1 invalid,
	// and the report names the offending row.
	path := filepath.Join(t.TempDir(), "calendar.xlsx")
	rows := [][]interface{}{
		{"Date", "Event Title"},
		{"2025-02-01", "Kickoff"},
		{"2025-02-02", "Review"},
		{"not-a-date", "Broken"},
		{"2025-02-04", "Retro"},
		{"2025-02-05", "Demo"},
	}
	writeWorkbook(t, path, "Calendar", rows)

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)

	stats := ds.Stats[0]
	assert.Equal(t, 5, stats.TotalRows)
	assert.Equal(t, 4, stats.Loaded)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, stats.TotalRows, stats.Loaded+stats.Skipped+stats.Invalid)

	require.Len(t, stats.Issues, 1)
	issue := stats.Issues[0]
	assert.Equal(t, domain.IssueUnparseableDate, issue.Kind)
	assert.Equal(t, 4, issue.Row)
	assert.Contains(t, issue.Reason, "not-a-date")
}

func TestLoadFileDuplicateRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dups.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"ID", "Task", "Start"},
		{"T1", "Design", "2025-01-06"},
		{"T1", "Design", "2025-01-06"},  // identical: collapsed
		{"T1", "Design v2", "2025-01-07"}, // differing: latest wins
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, ds.Records, 1)
	assert.Equal(t, "Design v2", ds.Records[0].Title)

	stats := ds.Stats[0]
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, stats.TotalRows, stats.Loaded+stats.Skipped+stats.Invalid)
}

func TestLoadFileHeaderBelowTitleRows(t *testing.T) {
	// Templates bury the header under banner rows; the probe finds it.
	path := filepath.Join(t.TempDir(), "template.xlsx")
	writeWorkbook(t, path, "Project schedule", [][]interface{}{
		{"ACME Project Plan"},
		{},
		{"Task", "Start Date", "End Date"},
		{"Kickoff", "2025-03-03", "2025-03-03"},
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "Kickoff", ds.Records[0].Title)
}

func TestLoadFileSectionHeadersSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sections.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"Task", "Start", "End"},
		{"Phase 1"}, // section header: no dates
		{"Design", "2025-01-06", "2025-01-10"},
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)

	stats := ds.Stats[0]
	assert.Equal(t, 2, stats.TotalRows)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Skipped)
}

func TestLoadFileEndBeforeStartClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"Task", "Start", "End"},
		{"Oops", "2025-05-10", "2025-05-01"},
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, ds.Records[0].Start, ds.Records[0].End)
}

func TestLoadFileSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"alpha", "beta"},
		{"1", "2"},
	})

	_, err := testLoader(t).LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchemaMismatch))
}

func TestLoadFileExplicitSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.xlsx")
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), "Notes")
	_, err := f.NewSheet("Calendar")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Calendar", "A1", "Date"))
	require.NoError(t, f.SetCellValue("Calendar", "B1", "Event"))
	require.NoError(t, f.SetCellValue("Calendar", "A2", "2025-04-01"))
	require.NoError(t, f.SetCellValue("Calendar", "B2", "Townhall"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	loader := NewLoader(slog.Default(), config.LoaderConfig{Sheet: "Calendar"})
	ds, err := loader.LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "Townhall", ds.Records[0].Title)

	missing := NewLoader(slog.Default(), config.LoaderConfig{Sheet: "Absent"})
	_, err = missing.LoadFile(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadDirSkipsBadFilesAndSortsByName(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "b_plan.xlsx"), "Sheet1", [][]interface{}{
		{"Task", "Start"},
		{"Second", "2025-01-02"},
	})
	writeWorkbook(t, filepath.Join(dir, "a_plan.xlsx"), "Sheet1", [][]interface{}{
		{"Task", "Start"},
		{"First", "2025-01-01"},
	})
	writeWorkbook(t, filepath.Join(dir, "junk.xlsx"), "Sheet1", [][]interface{}{
		{"nothing", "recognizable"},
	})

	ds, err := testLoader(t).LoadDir(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, ds.Records, 2)
	// File-name order, not creation order.
	assert.Equal(t, "First", ds.Records[0].Title)
	assert.Equal(t, "Second", ds.Records[1].Title)

	// The skipped file is reported, not fatal.
	var mismatchReported bool
	for _, s := range ds.Stats {
		for _, issue := range s.Issues {
			if issue.Kind == domain.IssueSchemaMismatch {
				mismatchReported = true
			}
		}
	}
	assert.True(t, mismatchReported)
}

func TestLoadDirEmptyIsFatal(t *testing.T) {
	dir := t.TempDir()
	// One file, wrong schema: zero valid files after filtering.
	writeWorkbook(t, filepath.Join(dir, "junk.xlsx"), "Sheet1", [][]interface{}{
		{"alpha", "beta"},
	})

	_, err := testLoader(t).LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeEmptyInput))
}

func TestLoadPathDispatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"Task", "Start"},
		{"Only", "2025-01-01"},
	})

	loader := testLoader(t)

	fromFile, err := loader.LoadPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, fromFile.Len())

	fromDir, err := loader.LoadPath(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, fromDir.Len())

	_, err = loader.LoadPath(context.Background(), filepath.Join(dir, "absent.xlsx"))
	assert.Error(t, err)
}

func TestLoadFileFallbackIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noid.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"Task", "Start"},
		{"One", "2025-01-01"},
		{"Two", "2025-01-02"},
	})

	ds, err := testLoader(t).LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	// Deterministic fallback IDs derived from source and row.
	assert.Equal(t, fmt.Sprintf("noid.xlsx#%d", 2), ds.Records[0].ID)
	assert.Equal(t, fmt.Sprintf("noid.xlsx#%d", 3), ds.Records[1].ID)
}
