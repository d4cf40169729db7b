package database

import (
	"context"
	"fmt"
)

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var (
	postgresPersonWriter     func() PersonWriter
	postgresSampleWriter     func() SampleWriter
	postgresAttendanceWriter func() AttendanceWriter
	postgresSampleHNSW       HNSWRebuilder // Singleton for sample HNSW rebuilding
	postgresInitialized      bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	personWriter func() PersonWriter,
	sampleWriter func() SampleWriter,
	attendanceWriter func() AttendanceWriter,
) {
	postgresPersonWriter = personWriter
	postgresSampleWriter = sampleWriter
	postgresAttendanceWriter = attendanceWriter
	postgresInitialized = true
}

// RegisterSampleHNSWRebuilder registers the HNSW rebuilder for the sample repository.
// This allows rebuilding the in-memory HNSW index without knowing the concrete type.
func RegisterSampleHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresSampleHNSW = rebuilder
}

// GetSampleHNSWRebuilder returns the registered sample HNSW rebuilder, or nil if not registered.
func GetSampleHNSWRebuilder() HNSWRebuilder {
	return postgresSampleHNSW
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetPersonWriter returns a PersonWriter from the PostgreSQL backend
func GetPersonWriter(ctx context.Context) (PersonWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresPersonWriter == nil {
		return nil, fmt.Errorf("PostgreSQL person writer not registered")
	}
	return postgresPersonWriter(), nil
}

// GetPersonReader returns a PersonReader from the PostgreSQL backend
func GetPersonReader(ctx context.Context) (PersonReader, error) {
	return GetPersonWriter(ctx)
}

// GetSampleWriter returns a SampleWriter from the PostgreSQL backend
func GetSampleWriter(ctx context.Context) (SampleWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresSampleWriter == nil {
		return nil, fmt.Errorf("PostgreSQL sample writer not registered")
	}
	return postgresSampleWriter(), nil
}

// GetSampleReader returns a SampleReader from the PostgreSQL backend
func GetSampleReader(ctx context.Context) (SampleReader, error) {
	return GetSampleWriter(ctx)
}

// GetAttendanceWriter returns an AttendanceWriter from the PostgreSQL backend
func GetAttendanceWriter(ctx context.Context) (AttendanceWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceWriter == nil {
		return nil, fmt.Errorf("PostgreSQL attendance writer not registered")
	}
	return postgresAttendanceWriter(), nil
}

// GetAttendanceReader returns an AttendanceReader from the PostgreSQL backend
func GetAttendanceReader(ctx context.Context) (AttendanceReader, error) {
	return GetAttendanceWriter(ctx)
}
