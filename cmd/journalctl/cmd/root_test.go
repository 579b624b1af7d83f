package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineDocked   = `{"timestamp":"2024-03-01T10:01:00Z","event":"Docked","StationName":"A","StarSystem":"Sol"}`
	lineUndock   = `{"timestamp":"2024-03-01T10:02:00Z","event":"Undocked","StationName":"A"}`
	lineIron     = `{"timestamp":"2024-03-01T10:03:00Z","event":"MaterialCollected","Category":"Raw","Name":"Iron","Count":3}`
	lineIronMore = `{"timestamp":"2024-03-01T10:04:00Z","event":"MaterialCollected","Category":"Raw","Name":"Iron","Count":2}`
	lineMystery  = `{"timestamp":"2024-03-01T10:05:00Z","event":"SomethingNew","Value":1}`
	statusDocked = `{"timestamp":"2024-03-01T10:01:00Z","event":"Status","Flags":16777217,"GuiFocus":0}`
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeJournal(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

type decodedRow struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

func TestDecodeFile(t *testing.T) {
	path := writeJournal(t, t.TempDir(), "Journal.2024-03-01T100000.01.log", lineDocked, lineUndock, lineMystery)

	out, err := execute(t, "", "decode", "-o", "json", path)
	require.NoError(t, err)

	var rows []decodedRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "Docked", rows[0].Event)
	assert.Equal(t, "Undocked", rows[1].Event)
	assert.Equal(t, "Unknown", rows[2].Event)
}

func TestDecodeFilters(t *testing.T) {
	stdin := strings.Join([]string{lineDocked, lineUndock, lineMystery}, "\n")

	t.Run("event", func(t *testing.T) {
		out, err := execute(t, stdin, "decode", "-o", "json", "-e", "Undocked")
		require.NoError(t, err)
		var rows []decodedRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "Undocked", rows[0].Event)
	})

	t.Run("unknown", func(t *testing.T) {
		out, err := execute(t, stdin, "decode", "-o", "wide", "--unknown")
		require.NoError(t, err)
		assert.Contains(t, out, "SomethingNew")
		assert.NotContains(t, out, "Undocked")
	})

	t.Run("limit", func(t *testing.T) {
		out, err := execute(t, stdin, "decode", "-o", "json", "-n", "2")
		require.NoError(t, err)
		var rows []decodedRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		assert.Len(t, rows, 2)
	})

	t.Run("bad tag", func(t *testing.T) {
		_, err := execute(t, stdin, "decode", "-e", "NotATag")
		assert.ErrorContains(t, err, "unknown event tag")
	})
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "", "tags", "-o", "csv")
	assert.ErrorContains(t, err, "invalid format")
}

func TestTags(t *testing.T) {
	out, err := execute(t, "", "tags", "-o", "json")
	require.NoError(t, err)
	var all []string
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Contains(t, all, "Docked")

	out, err = execute(t, "", "tags", "-o", "json", "--capability", "materials")
	require.NoError(t, err)
	var mats []string
	require.NoError(t, json.Unmarshal([]byte(out), &mats))
	assert.Contains(t, mats, "MaterialCollected")
	assert.NotContains(t, mats, "Docked")
	assert.Less(t, len(mats), len(all))

	_, err = execute(t, "", "tags", "--capability", "nope")
	assert.Error(t, err)
}

func TestMaterialsFolder(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "Journal.2024-03-01T100000.01.log", lineDocked, lineIron)
	writeJournal(t, dir, "Journal.2024-03-02T100000.01.log", lineIronMore)
	writeJournal(t, dir, "notes.txt", lineIronMore)

	out, err := execute(t, "", "materials", "-o", "json", dir)
	require.NoError(t, err)

	var counts []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Count    int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	require.Len(t, counts, 1)
	assert.Equal(t, "iron", counts[0].Name)
	assert.Equal(t, "Raw", counts[0].Category)
	assert.Equal(t, 5, counts[0].Count)

	_, err = execute(t, "", "materials", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFlags(t *testing.T) {
	out, err := execute(t, "", "flags", "-o", "json", "0x01000001")
	require.NoError(t, err)

	var report struct {
		Mask  int64    `json:"mask"`
		Flags []string `json:"flags"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(16777217), report.Mask)
	assert.Contains(t, report.Flags, "Docked")

	table, err := execute(t, "", "flags", "-o", "table", "1")
	require.NoError(t, err)
	assert.Contains(t, table, "Docked")
	assert.Contains(t, table, "ship")

	_, err = execute(t, "", "flags", "docked")
	assert.Error(t, err)
}

func TestWatchOnce(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "Journal.2024-03-01T100000.01.log", lineDocked)
	writeJournal(t, dir, "Status.json", statusDocked)

	out, err := execute(t, "", "watch", "--once", "--temp-dir", t.TempDir(), "-o", "json", dir)
	require.NoError(t, err)

	var tl struct {
		Items []struct {
			Entry   *decodedRow `json:"entry"`
			UIEvent *struct {
				Kind string `json:"kind"`
			} `json:"uiEvent"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tl))

	var sawEntry, sawDocked bool
	for _, item := range tl.Items {
		if item.Entry != nil && item.Entry.Event == "Docked" {
			sawEntry = true
		}
		if item.UIEvent != nil && item.UIEvent.Kind == "Docked" {
			sawDocked = true
		}
	}
	assert.True(t, sawEntry, "journal entry in timeline")
	assert.True(t, sawDocked, "docked flag in timeline")
}

func TestWatchMissingFolder(t *testing.T) {
	_, err := execute(t, "", "watch", "--once", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
