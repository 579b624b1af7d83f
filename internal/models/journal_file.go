package models

import "time"

// JournalFile is a journal uploaded for offline decoding.
type JournalFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}
