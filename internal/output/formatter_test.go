package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

const dockedLine = `{"timestamp":"2024-03-01T10:00:00Z","event":"Docked","StationName":"Jameson Memorial","StarSystem":"Shinrarta Dezhra"}`

func decode(t *testing.T, lines ...string) Entries {
	t.Helper()
	dec := parser.NewDecoder(nil)
	var out Entries
	for _, l := range lines {
		out = append(out, dec.Decode(l))
	}
	return out
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "WIDE", "json", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, "invalid format")
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, Tags{models.EventTypeDocked}))

	var got []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"Docked"}, got)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	mats := Materials{{Name: "iron", Category: "Raw", Count: 12}}
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, mats))

	out := buf.String()
	assert.Contains(t, out, "name: iron")
	assert.Contains(t, out, "category: Raw")
	assert.Contains(t, out, "count: 12")
}

func TestTableFormatterEntries(t *testing.T) {
	entries := decode(t, dockedLine, `{"timestamp":"2024-03-01T10:05:00Z","event":"NoSuchEvent"}`)

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, entries))
	out := buf.String()
	assert.Contains(t, strings.ToLower(out), "timestamp")
	assert.Contains(t, out, "2024-03-01 10:00:00")
	assert.Contains(t, out, "Docked")
	assert.Contains(t, out, "NoSuchEvent")

	wide := entries.Table(true)
	require.Len(t, wide.Rows, 2)
	assert.Equal(t, []string{"id", "timestamp", "event", "name", "sync", "payload"}, wide.Headers)
	assert.Equal(t, "No Such Event", wide.Rows[1][3])
}

func TestEntriesPayloadTruncation(t *testing.T) {
	entries := decode(t, dockedLine)
	narrow := entries.Table(false)
	require.Len(t, narrow.Rows, 1)
	assert.LessOrEqual(t, len(narrow.Rows[0][2]), payloadWidth)

	wide := entries.Table(true)
	assert.Contains(t, wide.Rows[0][5], "Jameson Memorial")
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]int{"sessions": 2}))
	assert.Contains(t, buf.String(), `"sessions": 2`)
}

func TestTimelineTable(t *testing.T) {
	entries := decode(t, dockedLine)
	tl := models.NewTimeline()
	tl.Items = append(tl.Items,
		models.TimelineItem{Time: entries[0].EventTimeUTC, Entry: entries[0]},
	)
	ev := models.NewFlagEvent(models.UIDocked, true, entries[0].EventTimeUTC, false)
	tl.Items = append(tl.Items, models.TimelineItem{Time: ev.EventTimeUTC, UIEvent: &ev})

	d := Timeline{tl}.Table(false)
	require.Len(t, d.Rows, 2)
	assert.Equal(t, "journal", d.Rows[0][1])
	assert.Equal(t, "Docked", d.Rows[0][2])
	assert.Equal(t, []string{"2024-03-01 10:00:00", "status", "Docked", "true"}, d.Rows[1])

	assert.Empty(t, Timeline{}.Table(false).Rows)
}

func TestMaterialsTable(t *testing.T) {
	d := Materials{{Name: "iron", Category: "Raw", Count: 3}}.Table(false)
	assert.Equal(t, [][]string{{"Raw", "iron", "3"}}, d.Rows)
	assert.Equal(t, []int{2}, d.RightAlign)
}
