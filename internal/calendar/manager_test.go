package calendar

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"plandash/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeCalendar(t *testing.T, cells map[string]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), "Calendar")
	for cell, value := range cells {
		require.NoError(t, f.SetCellValue("Calendar", cell, value))
	}
	path := filepath.Join(t.TempDir(), "calendar.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestOpenScansExistingEvents(t *testing.T) {
	path := writeCalendar(t, map[string]string{
		"A1": "2024-01-15\nKickoff meeting",
		"B1": "2024-01-16",
		"A2": "not a date",
	})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	byDate := m.EventsByDate()
	require.Len(t, byDate, 1)
	assert.Equal(t, "2024-01-15", byDate[0].Date)
	assert.Equal(t, []string{"Kickoff meeting"}, byDate[0].Titles)
}

func TestAddEventOnExistingDate(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.AddEvent(date, "Release review", "important"))
	require.NoError(t, m.AddEvent(date, "Retro", "meeting"))
	assert.True(t, m.Dirty())

	byDate := m.EventsByDate()
	require.Len(t, byDate, 1)
	assert.Equal(t, []string{"Release review", "Retro"}, byDate[0].Titles)
}

func TestAddEventCreatesDateCell(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.AddEvent(date, "Planning", "default"))

	byDate := m.EventsByDate()
	require.Len(t, byDate, 1)
	assert.Equal(t, "2024-05-01", byDate[0].Date)
}

func TestAddEventRejectsEmptyTitle(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	err = m.AddEvent(time.Now(), "", "default")
	assert.True(t, errors.IsType(err, errors.ErrTypeParsing))
}

func TestUpdateEvent(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10\nOld title"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.UpdateEvent(date, "Old title", "New title"))

	byDate := m.EventsByDate()
	assert.Equal(t, []string{"New title"}, byDate[0].Titles)

	err = m.UpdateEvent(date, "Missing", "x")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestRemoveEvent(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10\nFirst\nSecond"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.RemoveEvent(date, "First"))

	byDate := m.EventsByDate()
	require.Len(t, byDate, 1)
	assert.Equal(t, []string{"Second"}, byDate[0].Titles)

	require.NoError(t, m.RemoveEvent(date, "Second"))
	assert.Empty(t, m.EventsByDate())

	err = m.RemoveEvent(date, "Second")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestBatchAddSkipsInvalidDates(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})
	datesFile := filepath.Join(t.TempDir(), "dates.txt")
	require.NoError(t, os.WriteFile(datesFile,
		[]byte("2024-06-01\nnot-a-date\n2024-06-02\n"), 0o644))

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	added, err := m.BatchAdd(context.Background(), datesFile, "Maintenance")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	byDate := m.EventsByDate()
	assert.Len(t, byDate, 2)
}

func TestBatchAddFromCSV(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})
	datesFile := filepath.Join(t.TempDir(), "dates.csv")
	require.NoError(t, os.WriteFile(datesFile,
		[]byte("2024-07-01,ignored\n2024-07-02\n"), 0o644))

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	added, err := m.BatchAdd(context.Background(), datesFile, "")
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}

func TestBatchAddMissingFile(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	_, err = m.BatchAdd(context.Background(), "/nonexistent/dates.txt", "")
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}

func TestSummarySheetAndSave(t *testing.T) {
	path := writeCalendar(t, map[string]string{
		"A1": "2024-03-10\nKickoff",
		"A2": "2024-02-01\nBudget review",
	})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.SummarySheet())

	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, m.Save(out))
	assert.False(t, m.Dirty())

	saved, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer saved.Close()

	rows, err := saved.GetRows(SummarySheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Event Title", "Cell", "Link"}, rows[0][:4])
	// Rows are date-sorted, earliest first.
	assert.Equal(t, "2024-02-01", rows[1][0])
	assert.Equal(t, "Budget review", rows[1][1])
	assert.Equal(t, "2024-03-10", rows[2][0])

	link, target, err := saved.GetCellHyperLink(SummarySheetName, "D2")
	require.NoError(t, err)
	assert.True(t, link)
	assert.True(t, strings.HasPrefix(target, "'Calendar'!"))
}

func TestSaveConflict(t *testing.T) {
	path := writeCalendar(t, map[string]string{"A1": "2024-03-10"})

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	err = m.Save("/nonexistent-dir/out.xlsx")
	assert.True(t, errors.IsType(err, errors.ErrTypeSaveConflict))
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.xlsx")
	require.NoError(t, CreateSample(path))

	m, err := Open(path, "Calendar", testLogger())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.AddEvent(
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "Demo", "default"))
}
