package calendar

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"plandash/internal/dataprocessing"
	"plandash/internal/errors"
)

// SummarySheetName is the sheet rebuilt by SummarySheet.
const SummarySheetName = "Event Summary"

// Event is one calendar entry staged in the manager.
type Event struct {
	Date  time.Time
	Title string
	Style string
	Cell  string
}

// styleSpec describes the fill and font applied to an event cell.
type styleSpec struct {
	fill string
	font string
}

// Known event styles. Unknown names fall back to default.
var eventStyles = map[string]styleSpec{
	"default":   {fill: "FAB07F", font: "000000"},
	"important": {fill: "FA5252", font: "FFFFFF"},
	"meeting":   {fill: "5CFF5C", font: "000000"},
}

// Manager edits calendar events in a workbook. All mutation is staged in
// memory; the source file is only touched by an explicit Save.
type Manager struct {
	path   string
	sheet  string
	f      *excelize.File
	logger *slog.Logger

	// events and dateCells index the calendar grid: date key (YYYY-MM-DD)
	// to staged events and to the cell holding that date.
	events    map[string][]Event
	dateCells map[string]string
	styleIDs  map[string]int
	dirty     bool
}

// Open loads a workbook for event editing. A missing calendar sheet is
// created rather than treated as an error.
func Open(path, sheet string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sheet == "" {
		sheet = "Calendar"
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot open workbook %s", path), err)
	}

	m := &Manager{
		path:      path,
		sheet:     sheet,
		f:         f,
		logger:    logger,
		events:    make(map[string][]Event),
		dateCells: make(map[string]string),
		styleIDs:  make(map[string]int),
	}

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, errors.NewStorageError(fmt.Sprintf("cannot create sheet %s", sheet), err)
		}
		logger.Info("created calendar sheet", slog.String("sheet", sheet))
	}

	if err := m.scan(); err != nil {
		f.Close()
		return nil, err
	}

	logger.Info("workbook loaded",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("date_cells", len(m.dateCells)))

	return m, nil
}

// Close releases the underlying workbook handle without saving.
func (m *Manager) Close() error {
	return m.f.Close()
}

// scan walks the calendar sheet indexing date cells and any events
// already written under them (lines after the date line).
func (m *Manager) scan() error {
	rows, err := m.f.GetRows(m.sheet)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("cannot read sheet %s", m.sheet), err)
	}

	for r, row := range rows {
		for c, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			lines := strings.Split(value, "\n")
			date, err := dataprocessing.ParseDate(lines[0])
			if err != nil {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}

			key := dataprocessing.FormatDate(date)
			m.dateCells[key] = cell
			for _, line := range lines[1:] {
				if line = strings.TrimSpace(line); line != "" {
					m.events[key] = append(m.events[key], Event{
						Date:  date,
						Title: line,
						Style: "default",
						Cell:  cell,
					})
				}
			}
		}
	}
	return nil
}

// AddEvent stages an event on a date, creating a date cell when the
// calendar has none for it.
func (m *Manager) AddEvent(date time.Time, title, style string) error {
	if title == "" {
		return errors.NewParsingError("event title is empty", nil)
	}
	if _, ok := eventStyles[style]; !ok {
		style = "default"
	}

	key := dataprocessing.FormatDate(date)
	cell, ok := m.dateCells[key]
	if !ok {
		var err error
		cell, err = m.appendDateCell(date)
		if err != nil {
			return err
		}
		m.dateCells[key] = cell
	}

	value, err := m.f.GetCellValue(m.sheet, cell)
	if err != nil {
		return errors.NewStorageError("cannot read calendar cell", err)
	}
	if strings.TrimSpace(value) == "" {
		value = key
	}
	if err := m.f.SetCellValue(m.sheet, cell, value+"\n"+title); err != nil {
		return errors.NewStorageError("cannot write calendar cell", err)
	}
	if err := m.applyStyle(cell, style); err != nil {
		return err
	}

	m.events[key] = append(m.events[key], Event{Date: date, Title: title, Style: style, Cell: cell})
	m.dirty = true

	m.logger.Info("event added",
		slog.String("date", key),
		slog.String("title", title),
		slog.String("cell", cell))
	return nil
}

// UpdateEvent renames a staged event on a date.
func (m *Manager) UpdateEvent(date time.Time, oldTitle, newTitle string) error {
	key := dataprocessing.FormatDate(date)
	list := m.events[key]
	for i, ev := range list {
		if ev.Title != oldTitle {
			continue
		}

		value, err := m.f.GetCellValue(m.sheet, ev.Cell)
		if err != nil {
			return errors.NewStorageError("cannot read calendar cell", err)
		}
		if err := m.f.SetCellValue(m.sheet, ev.Cell, strings.Replace(value, oldTitle, newTitle, 1)); err != nil {
			return errors.NewStorageError("cannot write calendar cell", err)
		}

		list[i].Title = newTitle
		m.dirty = true
		m.logger.Info("event updated",
			slog.String("date", key),
			slog.String("old", oldTitle),
			slog.String("new", newTitle))
		return nil
	}
	return errors.NewNotFoundError(fmt.Sprintf("event %q on %s", oldTitle, key))
}

// RemoveEvent deletes a staged event from a date. When the date's last
// event goes, the cell reverts to a bare date with default styling.
func (m *Manager) RemoveEvent(date time.Time, title string) error {
	key := dataprocessing.FormatDate(date)
	list := m.events[key]
	for i, ev := range list {
		if ev.Title != title {
			continue
		}

		value, err := m.f.GetCellValue(m.sheet, ev.Cell)
		if err != nil {
			return errors.NewStorageError("cannot read calendar cell", err)
		}
		value = strings.Replace(value, "\n"+title, "", 1)
		if err := m.f.SetCellValue(m.sheet, ev.Cell, value); err != nil {
			return errors.NewStorageError("cannot write calendar cell", err)
		}

		m.events[key] = append(list[:i], list[i+1:]...)
		if len(m.events[key]) == 0 {
			delete(m.events, key)
			// Back to an unstyled date cell.
			if err := m.f.SetCellStyle(m.sheet, ev.Cell, ev.Cell, 0); err != nil {
				return errors.NewStorageError("cannot reset cell style", err)
			}
		}
		m.dirty = true
		m.logger.Info("event removed",
			slog.String("date", key),
			slog.String("title", title))
		return nil
	}
	return errors.NewNotFoundError(fmt.Sprintf("event %q on %s", title, key))
}

// BatchAdd stages one event per date read from a CSV or text file.
// Invalid dates are skipped and counted, not fatal.
func (m *Manager) BatchAdd(ctx context.Context, datesFile, defaultTitle string) (int, error) {
	if defaultTitle == "" {
		defaultTitle = "Event"
	}

	dates, err := readDatesFile(datesFile)
	if err != nil {
		return 0, err
	}

	added, skipped := 0, 0
	for _, raw := range dates {
		date, err := dataprocessing.ParseDate(raw)
		if err != nil {
			skipped++
			m.logger.WarnContext(ctx, "invalid date in batch file",
				slog.String("value", raw))
			continue
		}
		if err := m.AddEvent(date, defaultTitle, "default"); err != nil {
			return added, err
		}
		added++
	}

	m.logger.InfoContext(ctx, "batch add complete",
		slog.String("file", datesFile),
		slog.Int("added", added),
		slog.Int("skipped", skipped))
	return added, nil
}

// SummarySheet rebuilds the event summary sheet: date-sorted rows with
// hyperlinks back to the calendar cells.
func (m *Manager) SummarySheet() error {
	if idx, _ := m.f.GetSheetIndex(SummarySheetName); idx >= 0 {
		if err := m.f.DeleteSheet(SummarySheetName); err != nil {
			return errors.NewStorageError("cannot reset summary sheet", err)
		}
	}
	if _, err := m.f.NewSheet(SummarySheetName); err != nil {
		return errors.NewStorageError("cannot create summary sheet", err)
	}

	headerStyle, err := m.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
	})
	if err != nil {
		return errors.NewStorageError("cannot create header style", err)
	}
	linkStyle, err := m.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "0000FF", Underline: "single"},
	})
	if err != nil {
		return errors.NewStorageError("cannot create link style", err)
	}

	headers := []string{"Date", "Event Title", "Cell", "Link"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := m.f.SetCellValue(SummarySheetName, cell, h); err != nil {
			return errors.NewStorageError("cannot write summary header", err)
		}
	}
	if err := m.f.SetCellStyle(SummarySheetName, "A1", "D1", headerStyle); err != nil {
		return errors.NewStorageError("cannot style summary header", err)
	}

	all := m.allEvents()
	for i, ev := range all {
		row := i + 2
		key := dataprocessing.FormatDate(ev.Date)

		m.f.SetCellValue(SummarySheetName, fmt.Sprintf("A%d", row), key)
		m.f.SetCellValue(SummarySheetName, fmt.Sprintf("B%d", row), ev.Title)
		m.f.SetCellValue(SummarySheetName, fmt.Sprintf("C%d", row), ev.Cell)

		linkCell := fmt.Sprintf("D%d", row)
		m.f.SetCellValue(SummarySheetName, linkCell, "Go to Calendar")
		if err := m.f.SetCellHyperLink(SummarySheetName, linkCell,
			fmt.Sprintf("'%s'!%s", m.sheet, ev.Cell), "Location"); err != nil {
			return errors.NewStorageError("cannot set summary hyperlink", err)
		}
		m.f.SetCellStyle(SummarySheetName, linkCell, linkCell, linkStyle)
	}

	m.f.SetColWidth(SummarySheetName, "A", "A", 12)
	m.f.SetColWidth(SummarySheetName, "B", "B", 40)
	m.f.SetColWidth(SummarySheetName, "C", "D", 16)

	m.dirty = true
	m.logger.Info("summary sheet generated", slog.Int("events", len(all)))
	return nil
}

// Save persists all staged changes in one scoped write. The source file
// is never touched before this point, so a failed save cannot corrupt it.
func (m *Manager) Save(outputPath string) error {
	target := outputPath
	if target == "" {
		target = m.path
	}
	if err := m.f.SaveAs(target); err != nil {
		return errors.NewSaveConflictError(target, err)
	}
	m.dirty = false
	m.logger.Info("workbook saved", slog.String("path", target))
	return nil
}

// Dirty reports whether unsaved changes are staged.
func (m *Manager) Dirty() bool { return m.dirty }

// DateEvents lists the event titles on one date.
type DateEvents struct {
	Date   string
	Titles []string
}

// EventsByDate returns staged events grouped per date, date-sorted.
func (m *Manager) EventsByDate() []DateEvents {
	keys := make([]string, 0, len(m.events))
	for k := range m.events {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DateEvents, 0, len(keys))
	for _, k := range keys {
		de := DateEvents{Date: k}
		for _, ev := range m.events[k] {
			de.Titles = append(de.Titles, ev.Title)
		}
		out = append(out, de)
	}
	return out
}

func (m *Manager) allEvents() []Event {
	var all []Event
	for _, list := range m.events {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].Title < all[j].Title
	})
	return all
}

// appendDateCell writes a new date in column A under the current grid.
func (m *Manager) appendDateCell(date time.Time) (string, error) {
	rows, err := m.f.GetRows(m.sheet)
	if err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("cannot read sheet %s", m.sheet), err)
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err := m.f.SetCellValue(m.sheet, cell, dataprocessing.FormatDate(date)); err != nil {
		return "", errors.NewStorageError("cannot write date cell", err)
	}
	return cell, nil
}

func (m *Manager) applyStyle(cell, style string) error {
	id, ok := m.styleIDs[style]
	if !ok {
		spec := eventStyles[style]
		var err error
		id, err = m.f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{spec.fill}, Pattern: 1},
			Font:      &excelize.Font{Bold: true, Color: spec.font},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return errors.NewStorageError("cannot create event style", err)
		}
		m.styleIDs[style] = id
	}
	if err := m.f.SetCellStyle(m.sheet, cell, cell, id); err != nil {
		return errors.NewStorageError("cannot apply event style", err)
	}
	return nil
}

// readDatesFile reads dates from a CSV (first column) or a text file with
// one date per line.
func readDatesFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("dates file not found: %s", path), err)
	}
	defer file.Close()

	var dates []string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, errors.NewParsingError(fmt.Sprintf("cannot parse dates file %s", path), err)
		}
		for _, row := range rows {
			if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
				dates = append(dates, strings.TrimSpace(row[0]))
			}
		}
		return dates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot read dates file %s", path), err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			dates = append(dates, line)
		}
	}
	return dates, nil
}

// CreateSample writes a small calendar workbook for trying things out.
func CreateSample(path string) error {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), "Calendar")

	sampleDates := []string{
		"2024-01-15", "2024-02-20", "2024-03-10",
		"2024-04-05", "2024-05-12", "2024-06-18",
	}
	for i, d := range sampleDates {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetCellValue("Calendar", cell, d); err != nil {
			return errors.NewStorageError("cannot write sample calendar", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewSaveConflictError(path, err)
	}
	return nil
}
