package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/facematch"
)

// PersonRepository provides PostgreSQL-backed storage of enrolled people.
type PersonRepository struct {
	pool    *Pool
	samples *SampleRepository
}

// NewPersonRepository creates a new PostgreSQL person repository.
// The sample repository is used to cascade sample deletions into the HNSW index.
func NewPersonRepository(pool *Pool, samples *SampleRepository) *PersonRepository {
	return &PersonRepository{pool: pool, samples: samples}
}

// GetPerson retrieves a person by UID, returns nil if not found.
func (r *PersonRepository) GetPerson(ctx context.Context, uid string) (*database.StoredPerson, error) {
	query := `
		SELECT p.uid, p.name, COALESCE(p.sis_id, ''), p.active, p.created_at,
		       (SELECT COUNT(*) FROM samples s WHERE s.person_uid = p.uid)
		FROM people p
		WHERE p.uid = $1
	`

	var person database.StoredPerson
	err := r.pool.QueryRow(ctx, query, uid).Scan(
		&person.UID,
		&person.Name,
		&person.SISID,
		&person.Active,
		&person.CreatedAt,
		&person.SampleCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &person, nil
}

// GetPersonByName retrieves a person by name, returns nil if not found.
// Names are normalized before comparison (lowercase, no diacritics, dashes to
// spaces) to handle format differences (e.g., "jan-novak" matches "Jan Novák").
func (r *PersonRepository) GetPersonByName(ctx context.Context, name string) (*database.StoredPerson, error) {
	normalizedInput := facematch.NormalizePersonName(name)

	// Mirror facematch.NormalizePersonName in SQL: lowercase, strip
	// diacritics, dashes to spaces, collapse whitespace runs and trim.
	query := `
		SELECT p.uid, p.name, COALESCE(p.sis_id, ''), p.active, p.created_at,
		       (SELECT COUNT(*) FROM samples s WHERE s.person_uid = p.uid)
		FROM people p
		WHERE TRIM(REGEXP_REPLACE(LOWER(REPLACE(unaccent(p.name), '-', ' ')), '\s+', ' ', 'g')) = $1
		LIMIT 1
	`

	var person database.StoredPerson
	err := r.pool.QueryRow(ctx, query, normalizedInput).Scan(
		&person.UID,
		&person.Name,
		&person.SISID,
		&person.Active,
		&person.CreatedAt,
		&person.SampleCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person by name: %w", err)
	}
	return &person, nil
}

// ListPeople returns all people with their sample counts, ordered by name.
func (r *PersonRepository) ListPeople(ctx context.Context) ([]database.StoredPerson, error) {
	query := `
		SELECT p.uid, p.name, COALESCE(p.sis_id, ''), p.active, p.created_at,
		       (SELECT COUNT(*) FROM samples s WHERE s.person_uid = p.uid)
		FROM people p
		ORDER BY p.name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var people []database.StoredPerson
	for rows.Next() {
		var person database.StoredPerson
		if err := rows.Scan(
			&person.UID,
			&person.Name,
			&person.SISID,
			&person.Active,
			&person.CreatedAt,
			&person.SampleCount,
		); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

// CountPeople returns the total number of enrolled people.
func (r *PersonRepository) CountPeople(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM people").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return count, nil
}

// SavePerson inserts or updates a person.
func (r *PersonRepository) SavePerson(ctx context.Context, person *database.StoredPerson) error {
	query := `
		INSERT INTO people (uid, name, sis_id, active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NOW())
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			sis_id = EXCLUDED.sis_id,
			active = EXCLUDED.active
	`

	_, err := r.pool.Exec(ctx, query, person.UID, person.Name, person.SISID, person.Active)
	if err != nil {
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

// DeletePerson removes a person and their samples.
// Returns the deleted sample IDs for HNSW cleanup.
func (r *PersonRepository) DeletePerson(ctx context.Context, uid string) ([]int64, error) {
	sampleIDs, err := r.samples.DeleteSamplesByPerson(ctx, uid)
	if err != nil {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, "DELETE FROM people WHERE uid = $1", uid); err != nil {
		return nil, fmt.Errorf("delete person: %w", err)
	}
	return sampleIDs, nil
}
