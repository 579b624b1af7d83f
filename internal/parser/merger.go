package parser

import (
	"sort"
	"time"

	"github.com/journal-monitor/backend/internal/models"
)

// MergeConfig configures the merge behavior.
type MergeConfig struct {
	// SkipOverall drops the aggregated OverallStatus events, for consumers
	// that fold the incremental stream themselves.
	SkipOverall bool
}

// DefaultMergeConfig returns the default merge configuration.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{}
}

// MergeTimeline merges journal entries and UI events into one stream ordered
// by time. The order is stable: on equal times journal entries come first,
// and each input keeps its own order. An entry without a timestamp takes the
// time of the journal entry before it.
func MergeTimeline(entries []*models.Entry, events []models.UIEvent, config MergeConfig) *models.Timeline {
	result := models.NewTimeline()
	if len(entries) == 0 && len(events) == 0 {
		return result
	}

	items := make([]models.TimelineItem, 0, len(entries)+len(events))

	var last time.Time
	for _, e := range entries {
		t := e.EventTimeUTC
		if t.IsZero() {
			t = last
		} else {
			last = t
		}
		items = append(items, models.TimelineItem{Time: t, Entry: e})
	}
	for i := range events {
		if config.SkipOverall && events[i].Kind == models.UIOverallStatus {
			continue
		}
		ev := events[i]
		items = append(items, models.TimelineItem{Time: ev.EventTimeUTC, UIEvent: &ev})
	}

	// journal items precede UI items in the slice, so a stable sort keeps them first on ties
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time.Before(items[j].Time)
	})

	result.Items = items
	if len(items) > 0 {
		result.TimeRange = &models.TimeRange{
			Start: items[0].Time,
			End:   items[len(items)-1].Time,
		}
	}
	return result
}
