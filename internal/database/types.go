package database

import (
	"time"
)

// StoredPerson represents an enrolled person.
type StoredPerson struct {
	UID       string
	Name      string
	SISID     string // student ID in the school information system, empty unless imported
	Active    bool   // inactive people are excluded from matching
	CreatedAt time.Time

	// SampleCount is populated by list queries, not stored directly.
	SampleCount int
}

// StoredSample represents one enrolled face embedding for a person.
type StoredSample struct {
	ID          int64
	PersonUID   string
	PersonName  string // cached person name for index lookups
	SampleIndex int
	Embedding   []float32
	Model       string
	Dim         int
	Source      string // where the sample came from ("camera" or a file name)
	CreatedAt   time.Time
}

// AttendanceRecord represents one attendance mark.
type AttendanceRecord struct {
	ID         int64
	PersonUID  string
	PersonName string
	SessionID  string  // watcher session that produced the mark
	Distance   float64 // cosine distance of the winning match
	MarkedAt   time.Time
}
