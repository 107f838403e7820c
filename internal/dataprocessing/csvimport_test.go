package dataprocessing

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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportCSVMappedHeader(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.csv",
		"Task ID,Task,Start Date,Due Date,Budget\n"+
			"T1,Design,2025-01-06,2025-01-10,1200\n"+
			"T2,Build,2025-01-13,2025-01-24,3400\n")

	ds, err := NewImporter(nil).ImportCSV(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	rec := ds.Records[0]
	assert.Equal(t, "T1", rec.ID)
	assert.Equal(t, "Design", rec.Title)
	assert.Equal(t, "2025-01-06", FormatDate(rec.Start))
	// Unrecognized columns survive as opaque attributes.
	assert.Equal(t, "1200", rec.Extra["Budget"])
	assert.Equal(t, "tasks.csv", rec.Source)
}

func TestImportCSVBareDateList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dates.csv",
		"2025-07-01\n2025-07-15\nnot-a-date\n2025-08-01\n")

	im := NewImporter(nil)
	im.DefaultTitle = "Maintenance window"

	ds, err := im.ImportCSV(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, "Maintenance window", ds.Records[0].Title)
	assert.Equal(t, domain.KindEvent, ds.Records[0].Kind)

	stats := ds.Stats[0]
	assert.Equal(t, 4, stats.TotalRows)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, stats.TotalRows, stats.Loaded+stats.Skipped+stats.Invalid)
	require.Len(t, stats.Issues, 1)
	assert.Equal(t, 3, stats.Issues[0].Row)
}

func TestImportCSVInvalidRowCounted(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.csv",
		"Date,Event Title\n2025-02-01,Kickoff\nnope,Broken\n")

	ds, err := NewImporter(nil).ImportCSV(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)

	stats := ds.Stats[0]
	assert.Equal(t, 1, stats.Invalid)
	assert.Contains(t, stats.Issues[0].Reason, "nope")
}

func TestImportCSVSchemaMismatch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "junk.csv",
		"alpha,beta\n1,2\n")

	_, err := NewImporter(nil).ImportCSV(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeSchemaMismatch))
}

func TestImportCSVMissingFile(t *testing.T) {
	_, err := NewImporter(nil).ImportCSV(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
}
