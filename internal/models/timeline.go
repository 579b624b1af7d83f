package models

import "time"

// TimelineItem is one element of a merged monitor timeline. Exactly one of
// Entry and UIEvent is set.
type TimelineItem struct {
	Time    time.Time `json:"time"`
	Entry   *Entry    `json:"entry,omitempty"`
	UIEvent *UIEvent  `json:"uiEvent,omitempty"`
}

// IsJournal reports whether the item came from the journal stream.
func (i TimelineItem) IsJournal() bool {
	return i.Entry != nil
}

// Timeline is the result of merging journal entries and UI events.
type Timeline struct {
	Items     []TimelineItem `json:"items"`
	TimeRange *TimeRange     `json:"timeRange,omitempty"`
}

// TimeRange represents a time window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeline creates a new empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		Items: make([]TimelineItem, 0),
	}
}

// Len returns the number of items.
func (t *Timeline) Len() int {
	return len(t.Items)
}
