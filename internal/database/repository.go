package database

import (
	"context"
	"time"
)

// PersonReader provides read-only access to enrolled people
type PersonReader interface {
	// GetPerson retrieves a person by UID, returns nil if not found
	GetPerson(ctx context.Context, uid string) (*StoredPerson, error)
	// GetPersonByName retrieves a person by name. Names are normalized before
	// comparison (lowercase, no diacritics, dashes to spaces) so roster slugs
	// match display names (e.g., "jan-novak" matches "Jan Novák").
	GetPersonByName(ctx context.Context, name string) (*StoredPerson, error)
	// ListPeople returns all people with their sample counts
	ListPeople(ctx context.Context) ([]StoredPerson, error)
	// CountPeople returns the total number of enrolled people
	CountPeople(ctx context.Context) (int, error)
}

// PersonWriter provides write access to enrolled people
type PersonWriter interface {
	PersonReader

	// SavePerson inserts or updates a person
	SavePerson(ctx context.Context, person *StoredPerson) error
	// DeletePerson removes a person and their samples.
	// Returns the deleted sample IDs for HNSW cleanup.
	DeletePerson(ctx context.Context, uid string) ([]int64, error)
}

// SampleReader provides read-only access to face samples
type SampleReader interface {
	// GetSamples retrieves all samples for a person
	GetSamples(ctx context.Context, personUID string) ([]StoredSample, error)
	// CountSamples returns the total number of samples stored
	CountSamples(ctx context.Context) (int, error)
	// FindSimilarWithDistance finds samples with similar embeddings using
	// cosine distance and returns their distances, nearest first
	FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]StoredSample, []float64, error)
}

// SampleWriter provides write access to face samples
type SampleWriter interface {
	SampleReader

	// SaveSamples appends samples for a person
	SaveSamples(ctx context.Context, personUID string, samples []StoredSample) error
	// DeleteSamplesByPerson removes all samples for a person.
	// Returns the deleted sample IDs for HNSW cleanup.
	DeleteSamplesByPerson(ctx context.Context, personUID string) ([]int64, error)
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// ListMarks returns marks within [from, to), newest first
	ListMarks(ctx context.Context, from, to time.Time) ([]AttendanceRecord, error)
	// ListMarksByPerson returns all marks for a person, newest first
	ListMarksByPerson(ctx context.Context, personUID string) ([]AttendanceRecord, error)
	// LastMark returns the most recent mark for a person, nil if none
	LastMark(ctx context.Context, personUID string) (*AttendanceRecord, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// SaveMark stores one attendance mark
	SaveMark(ctx context.Context, rec *AttendanceRecord) error
}
