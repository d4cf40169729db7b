//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(dim int, offset float32) []float32 {
	emb := make([]float32, dim)
	for i := range emb {
		emb[i] = (float32(i) + offset) / float32(dim)
	}
	return emb
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	samples := NewSampleRepository(pool)
	repo := NewPersonRepository(pool, samples)

	t.Run("SaveAndGet", func(t *testing.T) {
		err := repo.SavePerson(ctx, &database.StoredPerson{
			UID:    "person1",
			Name:   "Jiří Novák",
			SISID:  "S-1001",
			Active: true,
		})
		if err != nil {
			t.Fatalf("Failed to save person: %v", err)
		}

		got, err := repo.GetPerson(ctx, "person1")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got == nil {
			t.Fatal("Expected person, got nil")
		}
		if got.Name != "Jiří Novák" {
			t.Errorf("Expected name 'Jiří Novák', got '%s'", got.Name)
		}
		if got.SISID != "S-1001" {
			t.Errorf("Expected SIS ID 'S-1001', got '%s'", got.SISID)
		}
	})

	t.Run("GetByNameNormalized", func(t *testing.T) {
		// Lookup must match ignoring case, diacritics and hyphens.
		got, err := repo.GetPersonByName(ctx, "jiri novak")
		if err != nil {
			t.Fatalf("Failed to get person by name: %v", err)
		}
		if got == nil {
			t.Fatal("Expected person, got nil")
		}
		if got.UID != "person1" {
			t.Errorf("Expected UID 'person1', got '%s'", got.UID)
		}
	})

	t.Run("GetByNameCollapsesWhitespace", func(t *testing.T) {
		// A stored name with extra inner spaces must still match its
		// single-spaced normalized form.
		err := repo.SavePerson(ctx, &database.StoredPerson{
			UID:    "person-ws",
			Name:   "Karel  van  Dyk",
			Active: true,
		})
		if err != nil {
			t.Fatalf("Failed to save person: %v", err)
		}
		defer repo.DeletePerson(ctx, "person-ws")

		got, err := repo.GetPersonByName(ctx, "karel van dyk")
		if err != nil {
			t.Fatalf("Failed to get person by name: %v", err)
		}
		if got == nil {
			t.Fatal("Expected person, got nil")
		}
		if got.UID != "person-ws" {
			t.Errorf("Expected UID 'person-ws', got '%s'", got.UID)
		}
	})

	t.Run("ListAndCount", func(t *testing.T) {
		repo.SavePerson(ctx, &database.StoredPerson{UID: "person2", Name: "Anna Dvořáková", Active: true})

		people, err := repo.ListPeople(ctx)
		if err != nil {
			t.Fatalf("Failed to list people: %v", err)
		}
		if len(people) != 2 {
			t.Errorf("Expected 2 people, got %d", len(people))
		}

		count, err := repo.CountPeople(ctx)
		if err != nil {
			t.Fatalf("Failed to count people: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2, got %d", count)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		samples.SaveSamples(ctx, "person2", []database.StoredSample{
			{Embedding: testEmbedding(512, 0), Model: "buffalo_l", Dim: 512, Source: "enroll"},
		})

		removed, err := repo.DeletePerson(ctx, "person2")
		if err != nil {
			t.Fatalf("Failed to delete person: %v", err)
		}
		if len(removed) != 1 {
			t.Errorf("Expected 1 removed sample ID, got %d", len(removed))
		}

		got, err := repo.GetPerson(ctx, "person2")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got != nil {
			t.Error("Expected nil after delete")
		}
	})
}

func TestSampleRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	samples := NewSampleRepository(pool)
	people := NewPersonRepository(pool, samples)

	if err := people.SavePerson(ctx, &database.StoredPerson{UID: "person1", Name: "Jan Svoboda", Active: true}); err != nil {
		t.Fatalf("Failed to save person: %v", err)
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		batch := []database.StoredSample{
			{Embedding: testEmbedding(512, 0), Model: "buffalo_l", Dim: 512, Source: "enroll"},
			{Embedding: testEmbedding(512, 5), Model: "buffalo_l", Dim: 512, Source: "enroll"},
		}

		if err := samples.SaveSamples(ctx, "person1", batch); err != nil {
			t.Fatalf("Failed to save samples: %v", err)
		}

		got, err := samples.GetSamples(ctx, "person1")
		if err != nil {
			t.Fatalf("Failed to get samples: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 samples, got %d", len(got))
		}
		if got[0].SampleIndex != 0 || got[1].SampleIndex != 1 {
			t.Errorf("Sample indexes not sequential: %d, %d", got[0].SampleIndex, got[1].SampleIndex)
		}
		if got[0].PersonName != "Jan Svoboda" {
			t.Errorf("Expected person name 'Jan Svoboda', got '%s'", got[0].PersonName)
		}
		if len(got[0].Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(got[0].Embedding))
		}
	})

	t.Run("AppendContinuesIndex", func(t *testing.T) {
		err := samples.SaveSamples(ctx, "person1", []database.StoredSample{
			{Embedding: testEmbedding(512, 10), Model: "buffalo_l", Dim: 512, Source: "enroll"},
		})
		if err != nil {
			t.Fatalf("Failed to append sample: %v", err)
		}

		got, _ := samples.GetSamples(ctx, "person1")
		if len(got) != 3 {
			t.Fatalf("Expected 3 samples, got %d", len(got))
		}
		if got[2].SampleIndex != 2 {
			t.Errorf("Expected sample index 2, got %d", got[2].SampleIndex)
		}
	})

	t.Run("FindSimilarWithDistance", func(t *testing.T) {
		query := testEmbedding(512, 0)

		results, distances, err := samples.FindSimilarWithDistance(ctx, query, 10, 1.0)
		if err != nil {
			t.Fatalf("Failed to find similar: %v", err)
		}
		if len(results) == 0 {
			t.Fatal("Expected results, got none")
		}
		if len(results) != len(distances) {
			t.Errorf("Results and distances length mismatch: %d vs %d", len(results), len(distances))
		}
		for i := 1; i < len(distances); i++ {
			if distances[i] < distances[i-1] {
				t.Error("Distances not sorted")
			}
		}
	})

	t.Run("InactivePersonExcluded", func(t *testing.T) {
		people.SavePerson(ctx, &database.StoredPerson{UID: "person3", Name: "Eva Malá", Active: false})
		samples.SaveSamples(ctx, "person3", []database.StoredSample{
			{Embedding: testEmbedding(512, 100), Model: "buffalo_l", Dim: 512, Source: "enroll"},
		})

		results, _, err := samples.FindSimilarWithDistance(ctx, testEmbedding(512, 100), 10, 2.0)
		if err != nil {
			t.Fatalf("Failed to find similar: %v", err)
		}
		for _, s := range results {
			if s.PersonUID == "person3" {
				t.Error("Inactive person's sample returned by similarity search")
			}
		}
	})

	t.Run("HNSWSearch", func(t *testing.T) {
		if err := samples.EnableHNSW(ctx, ""); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		defer samples.DisableHNSW()

		if samples.HNSWCount() != 3 {
			t.Errorf("Expected 3 indexed samples, got %d", samples.HNSWCount())
		}

		results, distances, err := samples.FindSimilarWithDistance(ctx, testEmbedding(512, 0), 2, 1.0)
		if err != nil {
			t.Fatalf("HNSW search failed: %v", err)
		}
		if len(results) == 0 {
			t.Fatal("Expected HNSW results, got none")
		}
		if len(results) != len(distances) {
			t.Errorf("Results and distances length mismatch")
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	samples := NewSampleRepository(pool)
	people := NewPersonRepository(pool, samples)
	repo := NewAttendanceRepository(pool)

	people.SavePerson(ctx, &database.StoredPerson{UID: "person1", Name: "Jan Svoboda", Active: true})

	t.Run("SaveAndLast", func(t *testing.T) {
		rec := &database.AttendanceRecord{
			PersonUID: "person1",
			SessionID: "session1",
			Distance:  0.31,
			MarkedAt:  time.Now().Add(-time.Hour),
		}
		if err := repo.SaveMark(ctx, rec); err != nil {
			t.Fatalf("Failed to save mark: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected mark ID to be set")
		}

		later := &database.AttendanceRecord{
			PersonUID: "person1",
			SessionID: "session1",
			Distance:  0.28,
		}
		if err := repo.SaveMark(ctx, later); err != nil {
			t.Fatalf("Failed to save mark: %v", err)
		}

		last, err := repo.LastMark(ctx, "person1")
		if err != nil {
			t.Fatalf("Failed to get last mark: %v", err)
		}
		if last == nil {
			t.Fatal("Expected last mark, got nil")
		}
		if last.ID != later.ID {
			t.Errorf("Expected most recent mark %d, got %d", later.ID, last.ID)
		}
		if last.PersonName != "Jan Svoboda" {
			t.Errorf("Expected person name 'Jan Svoboda', got '%s'", last.PersonName)
		}
	})

	t.Run("LastMarkUnknownPerson", func(t *testing.T) {
		last, err := repo.LastMark(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Failed to get last mark: %v", err)
		}
		if last != nil {
			t.Error("Expected nil for unknown person")
		}
	})

	t.Run("ListMarks", func(t *testing.T) {
		from := time.Now().Add(-30 * time.Minute)
		to := time.Now().Add(time.Minute)

		marks, err := repo.ListMarks(ctx, from, to)
		if err != nil {
			t.Fatalf("Failed to list marks: %v", err)
		}
		if len(marks) != 1 {
			t.Errorf("Expected 1 mark in window, got %d", len(marks))
		}

		marks, err = repo.ListMarksByPerson(ctx, "person1")
		if err != nil {
			t.Fatalf("Failed to list marks by person: %v", err)
		}
		if len(marks) != 2 {
			t.Errorf("Expected 2 marks, got %d", len(marks))
		}
	})
}

func TestSessionRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(pool)

	t.Run("CreateAndValidate", func(t *testing.T) {
		if err := repo.CreateSession(ctx, "token1", time.Hour); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		valid, err := repo.ValidateSession(ctx, "token1")
		if err != nil {
			t.Fatalf("Failed to validate session: %v", err)
		}
		if !valid {
			t.Error("Expected valid session")
		}

		valid, err = repo.ValidateSession(ctx, "unknown")
		if err != nil {
			t.Fatalf("Failed to validate session: %v", err)
		}
		if valid {
			t.Error("Expected invalid session")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteSession(ctx, "token1"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}

		valid, _ := repo.ValidateSession(ctx, "token1")
		if valid {
			t.Error("Expected session gone after delete")
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		repo.CreateSession(ctx, "expired", -time.Hour)
		repo.CreateSession(ctx, "fresh", time.Hour)

		n, err := repo.PurgeExpiredSessions(ctx)
		if err != nil {
			t.Fatalf("Failed to purge sessions: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 purged session, got %d", n)
		}

		valid, _ := repo.ValidateSession(ctx, "fresh")
		if !valid {
			t.Error("Fresh session should survive purge")
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_initial_schema.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}
}
