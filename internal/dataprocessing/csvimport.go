package dataprocessing

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"plandash/internal/errors"
	"plandash/pkg/contracts/domain"
)

// Importer merges delimited text files into the same record schema as the
// spreadsheet loader, via the shared header synonym table. Unrecognized
// columns are retained as opaque extra attributes.
type Importer struct {
	logger *slog.Logger
	// DefaultTitle is used for bare date lists that carry no title column.
	DefaultTitle string
}

// NewImporter creates a CSV/text batch importer.
func NewImporter(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger, DefaultTitle: "Event"}
}

// ImportCSV reads one delimited file into a dataset. Two layouts are
// accepted: a header row mapped through the synonym table, or a bare list
// of dates (one per row, first column) which becomes events with the
// default title.
func (im *Importer) ImportCSV(ctx context.Context, path string) (*domain.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("cannot parse %s", path), err)
	}
	if len(rows) == 0 {
		return nil, errors.NewEmptyInputError(path)
	}

	source := filepath.Base(path)

	cm := MapHeader(rows[0])
	if cm.Valid() {
		return im.importMapped(ctx, cm, rows, source)
	}

	// No recognized header: try a bare date list before giving up.
	if _, err := ParseDate(firstCell(rows[0])); err == nil {
		return im.importDateList(ctx, rows, source)
	}

	return nil, errors.NewSchemaMismatchError(source, fmt.Errorf("header matches no recognized schema and is not a date list"))
}

func (im *Importer) importMapped(ctx context.Context, cm ColumnMap, rows [][]string, source string) (*domain.Dataset, error) {
	in := newIngest(source)
	for i := 1; i < len(rows); i++ {
		in.row(cm, rows[i], i+1)
	}
	stats := in.finalize()

	im.logger.InfoContext(ctx, "csv import complete",
		slog.String("file", source),
		slog.Int("loaded", stats.Loaded),
		slog.Int("skipped", stats.Skipped),
		slog.Int("invalid", stats.Invalid))

	return &domain.Dataset{Records: in.records, Stats: []domain.LoadStats{stats}}, nil
}

// importDateList treats every row's first cell as an event date. The
// first row is data here, not a header.
func (im *Importer) importDateList(ctx context.Context, rows [][]string, source string) (*domain.Dataset, error) {
	stats := domain.LoadStats{Source: source}
	var records []domain.Record

	for i, row := range rows {
		rowNum := i + 1
		stats.TotalRows++

		cell := firstCell(row)
		if cell == "" {
			stats.Skipped++
			stats.Issues = append(stats.Issues, domain.RowIssue{
				Row: rowNum, Kind: domain.IssueBlankRow, Reason: "blank row",
			})
			continue
		}

		date, err := ParseDate(cell)
		if err != nil {
			stats.Invalid++
			stats.Issues = append(stats.Issues, domain.RowIssue{
				Row:    rowNum,
				Kind:   domain.IssueUnparseableDate,
				Reason: fmt.Sprintf("row %d: unparseable date %q", rowNum, cell),
			})
			continue
		}

		records = append(records, domain.Record{
			ID:     fmt.Sprintf("%s#%d", source, rowNum),
			Kind:   domain.KindEvent,
			Title:  im.DefaultTitle,
			Date:   date,
			Source: source,
			Row:    rowNum,
		})
		stats.Loaded++
	}

	im.logger.InfoContext(ctx, "date list import complete",
		slog.String("file", source),
		slog.Int("loaded", stats.Loaded),
		slog.Int("invalid", stats.Invalid))

	return &domain.Dataset{Records: records, Stats: []domain.LoadStats{stats}}, nil
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
