package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"plandash/internal/config"
	"plandash/internal/errors"
	"plandash/internal/files"
	"plandash/pkg/contracts/domain"
)

// Loader reads spreadsheet sources into datasets. It never mutates the
// files it reads.
type Loader struct {
	logger *slog.Logger
	cfg    config.LoaderConfig
}

// NewLoader creates a loader with an explicit logger and configuration.
func NewLoader(logger *slog.Logger, cfg config.LoaderConfig) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HeaderScanRows <= 0 {
		cfg.HeaderScanRows = 10
	}
	return &Loader{logger: logger, cfg: cfg}
}

// LoadPath loads a single workbook or, for a directory, every workbook in
// it. A folder path is shorthand for "all matching spreadsheet files
// within".
func (l *Loader) LoadPath(ctx context.Context, path string) (*domain.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot access %s", path), err)
	}
	if info.IsDir() {
		return l.LoadDir(ctx, path)
	}
	return l.LoadFile(ctx, path)
}

// LoadDir loads every spreadsheet in a directory, in file-name order so
// merge results are reproducible across runs. Files that do not match a
// recognized schema are skipped with a reported reason; a directory that
// yields zero valid files is a hard failure.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*domain.Dataset, error) {
	discovered, err := files.NewDiscovery(dir).FindSpreadsheets(".")
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot read directory %s", dir), err)
	}

	merged := &domain.Dataset{}
	valid := 0

	for _, file := range discovered {
		ds, err := l.LoadFile(ctx, file.Path)
		if err != nil {
			l.logger.WarnContext(ctx, "skipping file",
				slog.String("file", file.Name),
				slog.String("reason", err.Error()))
			merged.Stats = append(merged.Stats, domain.LoadStats{
				Source: file.Name,
				Issues: []domain.RowIssue{{
					Kind:   domain.IssueSchemaMismatch,
					Reason: err.Error(),
				}},
			})
			continue
		}
		merged.Records = append(merged.Records, ds.Records...)
		merged.Stats = append(merged.Stats, ds.Stats...)
		valid++
	}

	if valid == 0 {
		return nil, errors.NewEmptyInputError(dir)
	}

	l.logger.InfoContext(ctx, "directory load complete",
		slog.String("dir", dir),
		slog.Int("files_loaded", valid),
		slog.Int("files_skipped", len(discovered)-valid),
		slog.Int("records", merged.Len()))

	return merged, nil
}

// LoadFile reads one workbook into a dataset.
func (l *Loader) LoadFile(ctx context.Context, path string) (*domain.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewSchemaMismatchError(filepath.Base(path), err)
	}
	defer f.Close()

	source := filepath.Base(path)

	rows, cm, headerRow, err := l.findHeader(f)
	if err != nil {
		return nil, errors.NewSchemaMismatchError(source, err)
	}

	in := newIngest(source)
	for i := headerRow + 1; i < len(rows); i++ {
		// Excel rows are 1-based.
		in.row(cm, rows[i], i+1)
	}
	stats := in.finalize()

	l.logger.InfoContext(ctx, "file loaded",
		slog.String("file", source),
		slog.Int("loaded", stats.Loaded),
		slog.Int("skipped", stats.Skipped),
		slog.Int("invalid", stats.Invalid))

	return &domain.Dataset{
		Records: in.records,
		Stats:   []domain.LoadStats{stats},
	}, nil
}

// findHeader locates the sheet and header row. With an explicit sheet
// name only that sheet is considered; otherwise every sheet is probed for
// a row that maps to a recognized schema, the way the source templates
// bury their headers under title rows.
func (l *Loader) findHeader(f *excelize.File) ([][]string, ColumnMap, int, error) {
	sheets := f.GetSheetList()
	if l.cfg.Sheet != "" {
		sheets = []string{l.cfg.Sheet}
	}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			if l.cfg.Sheet != "" {
				return nil, ColumnMap{}, 0, fmt.Errorf("sheet %q not found", l.cfg.Sheet)
			}
			continue
		}

		limit := l.cfg.HeaderScanRows
		if limit > len(rows) {
			limit = len(rows)
		}
		for i := 0; i < limit; i++ {
			if cm := MapHeader(rows[i]); cm.Valid() {
				return rows, cm, i, nil
			}
		}
	}

	return nil, ColumnMap{}, 0, fmt.Errorf("no sheet with a recognized header row")
}

// ingest accumulates records for one source file and keeps the row
// accounting invariant: every data row lands in exactly one of
// loaded, skipped or invalid.
type ingest struct {
	source  string
	records []domain.Record
	index   map[string]int
	stats   domain.LoadStats
}

func newIngest(source string) *ingest {
	return &ingest{
		source: source,
		index:  make(map[string]int),
		stats:  domain.LoadStats{Source: source},
	}
}

// row converts and files one source row.
func (in *ingest) row(cm ColumnMap, row []string, rowNum int) {
	in.stats.TotalRows++

	if isBlankRow(row) {
		in.skip(rowNum, domain.IssueBlankRow, "blank row")
		return
	}

	rec, issue := buildRecord(cm, row, in.source, rowNum)
	if issue != nil {
		in.stats.Invalid++
		in.stats.Issues = append(in.stats.Issues, *issue)
		return
	}
	if rec == nil {
		in.skip(rowNum, domain.IssueBlankRow, "section header without dates")
		return
	}

	if prev, ok := in.index[rec.ID]; ok {
		if in.records[prev].ContentEquals(*rec) {
			in.skip(rowNum, domain.IssueDuplicateRow,
				fmt.Sprintf("duplicate of row %d", in.records[prev].Row))
			return
		}
		// Same ID, different content: latest row wins, the earlier
		// row is reported as superseded.
		in.skip(in.records[prev].Row, domain.IssueDuplicateRow,
			fmt.Sprintf("superseded by row %d", rowNum))
		in.records[prev] = *rec
		return
	}

	in.index[rec.ID] = len(in.records)
	in.records = append(in.records, *rec)
	in.stats.Loaded++
}

func (in *ingest) skip(rowNum int, kind domain.IssueKind, reason string) {
	in.stats.Skipped++
	in.stats.Issues = append(in.stats.Issues, domain.RowIssue{
		Row:    rowNum,
		Kind:   kind,
		Reason: reason,
	})
}

func (in *ingest) finalize() domain.LoadStats {
	// Loaded was incremented once per retained ID; superseded rows moved
	// their count to Skipped, so the invariant holds without adjustment.
	return in.stats
}

// buildRecord converts one row through the column map. Returns (nil, nil)
// for rows that are deliberately skipped, and a RowIssue for rows with an
// unparseable date.
func buildRecord(cm ColumnMap, row []string, source string, rowNum int) (*domain.Record, *domain.RowIssue) {
	title := cm.cell(row, FieldTitle)
	if title == "" {
		return nil, nil
	}

	rec := domain.Record{
		Title:    title,
		Category: cm.cell(row, FieldCategory),
		Status:   cm.cell(row, FieldStatus),
		Source:   source,
		Row:      rowNum,
	}

	dateVal := cm.cell(row, FieldDate)
	startVal := cm.cell(row, FieldStart)
	endVal := cm.cell(row, FieldEnd)

	switch {
	case startVal != "":
		rec.Kind = domain.KindTask
		start, err := ParseDate(startVal)
		if err != nil {
			return nil, &domain.RowIssue{Row: rowNum, Kind: domain.IssueUnparseableDate,
				Reason: fmt.Sprintf("row %d: unparseable start date %q", rowNum, startVal)}
		}
		rec.Start = start
		rec.End = start
		if endVal != "" {
			end, err := ParseDate(endVal)
			if err != nil {
				return nil, &domain.RowIssue{Row: rowNum, Kind: domain.IssueUnparseableDate,
					Reason: fmt.Sprintf("row %d: unparseable end date %q", rowNum, endVal)}
			}
			if end.Before(start) {
				// Source templates occasionally carry inverted
				// spans; clamp rather than reject.
				end = start
			}
			rec.End = end
		}
	case dateVal != "":
		rec.Kind = domain.KindEvent
		date, err := ParseDate(dateVal)
		if err != nil {
			return nil, &domain.RowIssue{Row: rowNum, Kind: domain.IssueUnparseableDate,
				Reason: fmt.Sprintf("row %d: unparseable date %q", rowNum, dateVal)}
		}
		rec.Date = date
	default:
		// Section header row: a label without any date.
		return nil, nil
	}

	if id := cm.cell(row, FieldID); id != "" {
		rec.ID = id
	} else {
		rec.ID = fmt.Sprintf("%s#%d", source, rowNum)
	}

	if cm.Col(FieldAssigned) >= 0 {
		rec.AssignedTo = cm.cell(row, FieldAssigned)
		if rec.AssignedTo == "" {
			rec.AssignedTo = "Unassigned"
		}
	}
	if cm.Col(FieldProgress) >= 0 {
		rec.Progress = parseProgress(cm.cell(row, FieldProgress))
	}
	rec.Dependencies = splitDependencies(cm.cell(row, FieldDependencies))

	for col, header := range cm.Extras {
		if col < len(row) && row[col] != "" {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[header] = row[col]
		}
	}

	return &rec, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
