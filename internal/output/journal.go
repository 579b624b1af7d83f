package output

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

// payloadWidth caps the payload column of narrow tables.
const payloadWidth = 60

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func summarise(v any, wide bool) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	s := string(data)
	if s == "{}" || s == "null" {
		return ""
	}
	if !wide && len(s) > payloadWidth {
		s = s[:payloadWidth-3] + "..."
	}
	return s
}

// Entries is a list of decoded journal entries.
type Entries []*models.Entry

func (es Entries) Table(wide bool) Data {
	d := Data{Headers: []string{"timestamp", "event", "payload"}}
	if wide {
		d.Headers = []string{"id", "timestamp", "event", "name", "sync", "payload"}
		d.RightAlign = []int{0}
	}
	for _, e := range es {
		tag := parser.EventTag(e)
		if wide {
			d.Rows = append(d.Rows, []string{
				strconv.FormatInt(e.ID, 10),
				formatTime(e.EventTimeUTC),
				tag,
				models.SplitCaps(tag),
				syncLabel(e),
				summarise(e.Payload, true),
			})
			continue
		}
		d.Rows = append(d.Rows, []string{formatTime(e.EventTimeUTC), tag, summarise(e.Payload, false)})
	}
	return d
}

func syncLabel(e *models.Entry) string {
	var parts []string
	if e.SyncedEDSM() {
		parts = append(parts, "edsm")
	}
	if e.SyncedEDDN() {
		parts = append(parts, "eddn")
	}
	if e.StartMarker() {
		parts = append(parts, "start")
	}
	if e.StopMarker() {
		parts = append(parts, "stop")
	}
	return strings.Join(parts, ",")
}

// Tags is a list of registered event types.
type Tags []models.EventType

func (ts Tags) Table(wide bool) Data {
	d := Data{Headers: []string{"id", "tag", "name"}, RightAlign: []int{0}}
	for _, t := range ts {
		d.Rows = append(d.Rows, []string{strconv.Itoa(int(t)), t.String(), t.DisplayName()})
	}
	return d
}

// Materials is a material ledger snapshot.
type Materials []parser.MaterialCount

func (ms Materials) Table(wide bool) Data {
	d := Data{Headers: []string{"category", "name", "count"}, RightAlign: []int{2}}
	for _, m := range ms {
		d.Rows = append(d.Rows, []string{m.Category, m.Name, strconv.Itoa(m.Count)})
	}
	return d
}

// Timeline is one merged poll result.
type Timeline struct {
	*models.Timeline
}

func (tl Timeline) Table(wide bool) Data {
	d := Data{Headers: []string{"time", "source", "kind", "detail"}}
	if tl.Timeline == nil {
		return d
	}
	for _, item := range tl.Items {
		if item.IsJournal() {
			d.Rows = append(d.Rows, []string{
				formatTime(item.Time), "journal", parser.EventTag(item.Entry), summarise(item.Entry.Payload, wide),
			})
			continue
		}
		ev := item.UIEvent
		detail := summarise(ev.Payload, wide)
		if state, ok := ev.FlagValue(); ok {
			detail = strconv.FormatBool(state)
		}
		source := "status"
		if ev.Refresh {
			source = "status*"
		}
		d.Rows = append(d.Rows, []string{formatTime(item.Time), source, string(ev.Kind), detail})
	}
	return d
}
