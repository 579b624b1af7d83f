package models

import (
	"strings"
	"unicode"
)

// EventType identifies the kind of a journal record. The set is append-only:
// new values are added at the end of their block so persisted numbers stay stable.
type EventType int

const (
	EventTypeUnknown EventType = iota
	EventTypeFileheader
	EventTypeCommander
	EventTypeLoadGame
	EventTypeDocked
	EventTypeUndocked
	EventTypeTouchdown
	EventTypeLiftoff
	EventTypeShipTargeted
	EventTypeMaterials
	EventTypeMaterialCollected
	EventTypeMaterialDiscarded
	EventTypeMaterialDiscovered
	EventTypeMaterialTrade
	EventTypeSynthesis
	EventTypeMusic
	EventTypeContinued
	EventTypeShutdown
)

// Icon-only identifiers. They name display resources, never real journal records.
const (
	EventTypeIconIDsStart EventType = 10000 + iota
	EventTypeIconRoute
	EventTypeIconStarSystem
	EventTypeIconScanBody
)

var eventTypeNames = map[EventType]string{
	EventTypeUnknown:            "Unknown",
	EventTypeFileheader:         "Fileheader",
	EventTypeCommander:          "Commander",
	EventTypeLoadGame:           "LoadGame",
	EventTypeDocked:             "Docked",
	EventTypeUndocked:           "Undocked",
	EventTypeTouchdown:          "Touchdown",
	EventTypeLiftoff:            "Liftoff",
	EventTypeShipTargeted:       "ShipTargeted",
	EventTypeMaterials:          "Materials",
	EventTypeMaterialCollected:  "MaterialCollected",
	EventTypeMaterialDiscarded:  "MaterialDiscarded",
	EventTypeMaterialDiscovered: "MaterialDiscovered",
	EventTypeMaterialTrade:      "MaterialTrade",
	EventTypeSynthesis:          "Synthesis",
	EventTypeMusic:              "Music",
	EventTypeContinued:          "Continued",
	EventTypeShutdown:           "Shutdown",
	EventTypeIconIDsStart:       "ICONIDsStart",
	EventTypeIconRoute:          "ICON_Route",
	EventTypeIconStarSystem:     "ICON_StarSystem",
	EventTypeIconScanBody:       "ICON_ScanBody",
}

var eventTypesByName = func() map[string]EventType {
	m := make(map[string]EventType, len(eventTypeNames))
	for t, n := range eventTypeNames {
		m[n] = t
	}
	return m
}()

// String returns the wire tag of the event type.
func (t EventType) String() string {
	if n, ok := eventTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// IsIconOnly reports whether t lies in the reserved icon range.
func (t EventType) IsIconOnly() bool {
	return t >= EventTypeIconIDsStart
}

// MarshalText encodes the type as its tag.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tag; unknown tags become EventTypeUnknown.
func (t *EventType) UnmarshalText(b []byte) error {
	if v, ok := ParseEventType(string(b)); ok {
		*t = v
	} else {
		*t = EventTypeUnknown
	}
	return nil
}

// ParseEventType returns the enum value for an exact tag match.
func ParseEventType(tag string) (EventType, bool) {
	t, ok := eventTypesByName[tag]
	return t, ok
}

// AllEventTypes returns every declared type in ascending order, icon range included.
func AllEventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypeNames))
	for t := EventTypeUnknown; t <= EventTypeShutdown; t++ {
		out = append(out, t)
	}
	for t := EventTypeIconIDsStart; t <= EventTypeIconScanBody; t++ {
		out = append(out, t)
	}
	return out
}

// SplitCaps turns "MaterialCollected" into "Material Collected".
func SplitCaps(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayName is the readable name of the event type.
func (t EventType) DisplayName() string {
	return SplitCaps(t.String())
}
