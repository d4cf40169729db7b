package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/database/postgres"
)

// repositories bundles the PostgreSQL repositories shared by commands.
type repositories struct {
	pool       *postgres.Pool
	people     *postgres.PersonRepository
	samples    *postgres.SampleRepository
	attendance *postgres.AttendanceRepository
}

// initBackend connects to PostgreSQL, runs migrations, registers the
// repositories and builds the sample HNSW index.
func initBackend(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pool := postgres.GetGlobalPool()
	samples := postgres.NewSampleRepository(pool)
	people := postgres.NewPersonRepository(pool, samples)
	attendance := postgres.NewAttendanceRepository(pool)

	database.RegisterPostgresBackend(
		func() database.PersonWriter { return people },
		func() database.SampleWriter { return samples },
		func() database.AttendanceWriter { return attendance },
	)
	database.RegisterSampleHNSWRebuilder(samples)

	initSampleHNSW(ctx, samples, cfg.Database.HNSWIndexPath)

	return &repositories{
		pool:       pool,
		people:     people,
		samples:    samples,
		attendance: attendance,
	}, nil
}

// initSampleHNSW builds or loads the sample HNSW index for fast similarity search.
func initSampleHNSW(ctx context.Context, samples *postgres.SampleRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading sample HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := samples.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build sample HNSW index: %v\n", err)
		fmt.Printf("Face matching will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Sample HNSW index ready with %d samples (persisted to %s)\n", samples.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Sample HNSW index built with %d samples (in-memory only)\n", samples.HNSWCount())
	}
}

// saveHNSWIndex saves the sample HNSW index to disk during shutdown.
func saveHNSWIndex() {
	if rebuilder := database.GetSampleHNSWRebuilder(); rebuilder != nil {
		if err := rebuilder.SaveHNSWIndex(); err != nil {
			fmt.Printf("Warning: failed to save sample HNSW index: %v\n", err)
		} else {
			fmt.Println("Sample HNSW index saved to disk")
		}
	}
}
