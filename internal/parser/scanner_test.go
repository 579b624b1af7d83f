package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journal-monitor/backend/internal/models"
)

const (
	lineHeader  = `{"timestamp":"2024-03-01T10:00:00Z","event":"Fileheader","part":1,"gameversion":"4.0.0.1 beta","build":"r1"}`
	lineDocked  = `{"timestamp":"2024-03-01T10:01:00Z","event":"Docked","StationName":"A","StarSystem":"Sol"}`
	lineUndock  = `{"timestamp":"2024-03-01T10:02:00Z","event":"Undocked","StationName":"A"}`
	lineTouch   = `{"timestamp":"2024-03-01T10:03:00Z","event":"Touchdown","Latitude":1.5,"Longitude":-2.5}`
	linePartial = `{"timestamp":"2024-03-01T10:04:00Z","event":"Liftoff"`
)

func appendLines(t *testing.T, path string, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestScannerReadNew(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Journal.2024-03-01T100000.01.log")
	s := NewScanner(path, nil, WithUnit(models.TravelLogUnit{ID: 4, CommanderID: 2, Path: path}))

	entries, err := s.ReadNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "missing file yields nothing")

	appendLines(t, path, lineHeader+"\n"+lineDocked+"\n"+linePartial)
	entries, err = s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EventTypeFileheader, entries[0].Type)
	assert.Equal(t, int64(4), entries[1].TLUID)
	assert.Equal(t, 2, entries[1].CommanderID)
	assert.NotNil(t, entries[1].Raw)
	assert.True(t, s.Unit().Beta)

	// the partial line completes
	appendLines(t, path, "}\n"+lineUndock+"\n")
	entries, err = s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EventTypeLiftoff, entries[0].Type)
	assert.Equal(t, models.EventTypeUndocked, entries[1].Type)

	entries, err = s.ReadNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScannerRescanDeduplicates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Journal.log")
	appendLines(t, path, lineHeader+"\n"+lineDocked+"\n")

	s := NewScanner(path, nil)
	entries, err := s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	appendLines(t, path, lineUndock+"\n")
	s.Rewind()
	entries, err = s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the new line is reported")
	assert.Equal(t, models.EventTypeUndocked, entries[0].Type)
}

func TestScannerTruncation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Journal.log")
	appendLines(t, path, lineHeader+"\n"+lineDocked+"\n"+lineUndock+"\n")

	s := NewScanner(path, nil)
	_, err := s.ReadNew(ctx)
	require.NoError(t, err)

	// rewritten shorter with one genuinely new record
	require.NoError(t, os.WriteFile(path, []byte(lineHeader+"\n"+lineTouch+"\n"), 0o644))
	entries, err := s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventTypeTouchdown, entries[0].Type)
}

func TestScannerWithStore(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStore(t)
	defer cleanup()

	unit := models.TravelLogUnit{Path: "Journal.log", CommanderID: 1}
	require.NoError(t, store.AddUnit(ctx, &unit))

	path := filepath.Join(t.TempDir(), "Journal.log")
	appendLines(t, path, lineHeader+"\n"+lineDocked+"\n")

	s := NewScanner(path, nil, WithEntryStore(store), WithUnit(unit))
	entries, err := s.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Greater(t, entries[1].ID, int64(0))

	s.Rewind()
	entries, err = s.ReadNew(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "stored records are recognised on rescan")

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScannerResumesStoredUnit(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStore(t)
	defer cleanup()

	path := filepath.Join(t.TempDir(), "Journal.log")
	appendLines(t, path, lineHeader+"\n"+lineDocked+"\n")

	unit := models.TravelLogUnit{Path: path, CommanderID: 1}
	require.NoError(t, store.AddUnit(ctx, &unit))
	first := NewScanner(path, nil, WithEntryStore(store), WithUnit(unit))
	_, err := first.ReadNew(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateUnit(ctx, first.Unit()))

	appendLines(t, path, lineUndock+"\n")

	resumed, err := store.FindUnit(ctx, path)
	require.NoError(t, err)
	assert.True(t, resumed.Beta)

	second := NewScanner(path, nil, WithEntryStore(store), WithUnit(*resumed))
	entries, err := second.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the appended line is new")
	assert.Equal(t, models.EventTypeUndocked, entries[0].Type)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
