// Package models contains domain types for the journal monitor.
package models

import "time"

// SyncFlags marks an entry as synced to an external service or as a
// distance-measurement marker.
type SyncFlags int

const (
	SyncNone        SyncFlags = 0
	SyncEDSM        SyncFlags = 0x01
	SyncEDDN        SyncFlags = 0x02
	SyncStartMarker SyncFlags = 0x0100
	SyncStopMarker  SyncFlags = 0x0200
)

// With returns f with set bits added and clear bits removed.
func (f SyncFlags) With(set, clear SyncFlags) SyncFlags {
	return (f | set) &^ clear
}

// Payload is the variant-specific part of a journal entry.
// Every concrete variant reports the tag it was registered under.
type Payload interface {
	EventType() EventType
}

// Entry is one decoded journal record. Only the setters below change it
// after decoding.
type Entry struct {
	ID           int64     `json:"id"`
	TLUID        int64     `json:"tluId"`
	CommanderID  int       `json:"commanderId"`
	Type         EventType `json:"event"`
	EventTimeUTC time.Time `json:"timestamp"`
	Payload      Payload   `json:"payload"`

	// Raw is the record the entry was decoded from, kept when the caller asked for it.
	// It is shared and must be treated as read-only.
	Raw map[string]any `json:"-"`

	synced SyncFlags
}

// EventName returns the entry's tag.
func (e *Entry) EventName() string {
	return e.Type.String()
}

// HasTime reports whether the timestamp parsed.
func (e *Entry) HasTime() bool {
	return !e.EventTimeUTC.IsZero()
}

// SyncFlags returns the current sync bits.
func (e *Entry) SyncFlags() SyncFlags { return e.synced }

// SetSyncFlags replaces the sync bits. Used by the store once the change is persisted.
func (e *Entry) SetSyncFlags(f SyncFlags) { e.synced = f }

func (e *Entry) SyncedEDSM() bool  { return e.synced&SyncEDSM != 0 }
func (e *Entry) SyncedEDDN() bool  { return e.synced&SyncEDDN != 0 }
func (e *Entry) StartMarker() bool { return e.synced&SyncStartMarker != 0 }
func (e *Entry) StopMarker() bool  { return e.synced&SyncStopMarker != 0 }

// SetStorageID records the id assigned by the persistence layer.
func (e *Entry) SetStorageID(id int64) { e.ID = id }

// SetUnitCommander is used during log reading, it is not persisted.
func (e *Entry) SetUnitCommander(tluID int64, commanderID int) {
	e.TLUID = tluID
	e.CommanderID = commanderID
}

// SetCommander is used during log reading, it is not persisted.
func (e *Entry) SetCommander(commanderID int) {
	e.CommanderID = commanderID
}

// TravelLogUnit is one journal file, the source of an ordered run of entries.
type TravelLogUnit struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	CommanderID int    `json:"commanderId"`
	Size        int64  `json:"size"`
	Beta        bool   `json:"beta"`
}
