package models

import "time"

// SessionStatus represents the status of a monitor session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusStopped SessionStatus = "stopped"
	SessionStatusError   SessionStatus = "error"
)

// MonitorSession watches one journal folder: its newest journal file and its status file.
type MonitorSession struct {
	ID           string        `json:"id"`
	Folder       string        `json:"folder"`
	JournalPath  string        `json:"journalPath,omitempty"`
	StatusPath   string        `json:"statusPath"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"startedAt"`
	LastPollAt   time.Time     `json:"lastPollAt,omitempty"`
	PollCount    int           `json:"pollCount"`
	EntryCount   int           `json:"entryCount"`
	UIEventCount int           `json:"uiEventCount"`
	Errors       []string      `json:"errors,omitempty"`
}

// NewMonitorSession creates a new MonitorSession in active status.
func NewMonitorSession(id, folder, statusPath string) *MonitorSession {
	return &MonitorSession{
		ID:         id,
		Folder:     folder,
		StatusPath: statusPath,
		Status:     SessionStatusActive,
		StartedAt:  time.Now(),
		Errors:     make([]string, 0),
	}
}
