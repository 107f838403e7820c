package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"plandash/pkg/contracts/domain"
)

// DatasetHeaders is the column order of CSV dataset extracts.
var DatasetHeaders = []string{
	"ID", "Kind", "Title", "Date", "Start", "End",
	"Category", "Status", "Assigned To", "Progress", "Dependencies", "Source",
}

// CSVWriter writes CSV extracts under a base output directory.
type CSVWriter struct {
	outputDir string
	logger    *slog.Logger
}

// NewCSVWriter creates a CSV writer rooted at outputDir.
func NewCSVWriter(outputDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{outputDir: outputDir, logger: logger}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM so Excel opens the file correctly
}

// WriteCSV writes rows to a CSV file with the given options.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("writing CSV file",
		slog.String("path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return writer.Error()
}

// WriteDataset writes every record of a dataset as a CSV extract.
func (w *CSVWriter) WriteDataset(filePath string, ds *domain.Dataset) error {
	records := make([][]string, 0, ds.Len())
	for _, rec := range ds.Records {
		records = append(records, recordRow(rec))
	}
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   DatasetHeaders,
		Records:   records,
		BOMPrefix: true,
	})
}

// WritePivot writes a pivot result as a CSV extract, one bucket per row.
func (w *CSVWriter) WritePivot(filePath string, pivot domain.PivotResult) error {
	headers := append(append([]string{}, pivot.Dimensions...), "Value")
	records := make([][]string, 0, len(pivot.Buckets))
	for _, b := range pivot.Buckets {
		row := append(append([]string{}, b.Key...),
			strconv.FormatFloat(b.Value, 'f', -1, 64))
		records = append(records, row)
	}
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// StreamWriter writes CSV rows incrementally for large extracts.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens a streaming CSV writer with headers written.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single row to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.outputDir == "" {
		return filePath
	}
	return filepath.Join(w.outputDir, filePath)
}

func recordRow(rec domain.Record) []string {
	return []string{
		rec.ID,
		string(rec.Kind),
		rec.Title,
		formatDateCell(rec.Date),
		formatDateCell(rec.Start),
		formatDateCell(rec.End),
		rec.Category,
		rec.Status,
		rec.AssignedTo,
		strconv.FormatFloat(rec.Progress, 'f', 2, 64),
		strings.Join(rec.Dependencies, ";"),
		rec.Source,
	}
}
