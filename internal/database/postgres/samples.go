package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/vkadlec/face-attendance/internal/database"
)

// SampleRepository provides PostgreSQL-backed face sample storage with an
// optional in-memory HNSW index.
type SampleRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	hnswMu        sync.RWMutex
}

// NewSampleRepository creates a new PostgreSQL sample repository.
func NewSampleRepository(pool *Pool) *SampleRepository {
	return &SampleRepository{pool: pool}
}

// scanSamples scans sample rows including the cached person name.
func scanSamples(rows *sql.Rows) ([]database.StoredSample, error) {
	var samples []database.StoredSample
	for rows.Next() {
		var s database.StoredSample
		var vec pgvector.Vector
		if err := rows.Scan(
			&s.ID,
			&s.PersonUID,
			&s.PersonName,
			&s.SampleIndex,
			&vec,
			&s.Model,
			&s.Dim,
			&s.Source,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Embedding = vec.Slice()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

const sampleColumns = `
	s.id, s.person_uid, p.name, s.sample_index, s.embedding, s.model, s.dim,
	COALESCE(s.source, ''), s.created_at
`

// GetSamples retrieves all samples for a person.
func (r *SampleRepository) GetSamples(ctx context.Context, personUID string) ([]database.StoredSample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples s JOIN people p ON p.uid = s.person_uid
		WHERE s.person_uid = $1
		ORDER BY s.sample_index
	`

	rows, err := r.pool.Query(ctx, query, personUID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// GetAllSamples retrieves every sample for active people, used to build the HNSW index.
func (r *SampleRepository) GetAllSamples(ctx context.Context) ([]database.StoredSample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples s JOIN people p ON p.uid = s.person_uid
		WHERE p.active
		ORDER BY s.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// CountSamples returns the total number of samples stored.
func (r *SampleRepository) CountSamples(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM samples").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// FindSimilarWithDistance finds similar samples and returns distances.
// Uses in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *SampleRepository) FindSimilarWithDistance(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.StoredSample, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarWithDistanceHNSW(embedding, limit, maxDistance)
	}

	return r.findSimilarWithDistancePostgres(ctx, embedding, limit, maxDistance)
}

// findSimilarWithDistanceHNSW uses the in-memory HNSW index for similarity search.
func (r *SampleRepository) findSimilarWithDistanceHNSW(
	embedding []float32, limit int, maxDistance float64,
) ([]database.StoredSample, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	// Request more candidates to ensure we have enough after distance filtering.
	searchK := limit * database.HNSWSearchMultiplier
	searchK = max(searchK, 100) // Minimum search size for better recall

	ids, distances, err := r.hnswIndex.Search(embedding, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]database.StoredSample, 0, limit)
	distancesOut := make([]float64, 0, limit)

	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		sample := r.hnswIndex.GetSample(id)
		if sample == nil {
			continue
		}
		results = append(results, *sample)
		distancesOut = append(distancesOut, distances[i])
		if len(results) >= limit {
			break
		}
	}

	return results, distancesOut, nil
}

// findSimilarWithDistancePostgres uses PostgreSQL for similarity search with ef_search optimization.
func (r *SampleRepository) findSimilarWithDistancePostgres(
	ctx context.Context, embedding []float32, limit int, maxDistance float64,
) ([]database.StoredSample, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Set ef_search to match in-memory HNSW configuration.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT s.id, s.person_uid, p.name, s.sample_index, s.embedding, s.model, s.dim,
		       COALESCE(s.source, ''), s.created_at,
		       s.embedding <=> $1::vector AS distance
		FROM samples s JOIN people p ON p.uid = s.person_uid
		WHERE p.active AND s.embedding <=> $1::vector < $2
		ORDER BY distance
		LIMIT $3
	`

	vec := pgvector.NewVector(embedding)
	rows, err := tx.QueryContext(ctx, query, vec, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar samples: %w", err)
	}
	defer rows.Close()

	var samples []database.StoredSample
	var distances []float64

	for rows.Next() {
		var s database.StoredSample
		var v pgvector.Vector
		var dist float64
		if err := rows.Scan(
			&s.ID, &s.PersonUID, &s.PersonName, &s.SampleIndex, &v, &s.Model, &s.Dim,
			&s.Source, &s.CreatedAt, &dist,
		); err != nil {
			return nil, nil, fmt.Errorf("scan similar sample: %w", err)
		}
		s.Embedding = v.Slice()
		samples = append(samples, s)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar samples: %w", err)
	}

	return samples, distances, nil
}

// SaveSamples appends samples for a person, numbering them after existing ones.
func (r *SampleRepository) SaveSamples(ctx context.Context, personUID string, samples []database.StoredSample) error {
	hnswEnabled := r.IsHNSWEnabled()

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextIndex int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sample_index), -1) + 1 FROM samples WHERE person_uid = $1", personUID,
	).Scan(&nextIndex)
	if err != nil {
		return fmt.Errorf("next sample index: %w", err)
	}

	inserted := make([]database.StoredSample, 0, len(samples))
	for i := range samples {
		sample := samples[i]
		vec := pgvector.NewVector(sample.Embedding)

		var newID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO samples (person_uid, sample_index, embedding, model, dim, source)
			VALUES ($1, $2, $3::vector, $4, $5, NULLIF($6, ''))
			RETURNING id
		`,
			personUID,
			nextIndex+i,
			vec,
			sample.Model,
			sample.Dim,
			sample.Source,
		).Scan(&newID)
		if err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}

		sample.ID = newID
		sample.PersonUID = personUID
		sample.SampleIndex = nextIndex + i
		inserted = append(inserted, sample)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.updateHNSWSamples(hnswEnabled, nil, inserted)
	return nil
}

// DeleteSamplesByPerson removes all samples for a person.
// Returns the deleted sample IDs for HNSW cleanup.
func (r *SampleRepository) DeleteSamplesByPerson(ctx context.Context, personUID string) ([]int64, error) {
	hnswEnabled := r.IsHNSWEnabled()

	rows, err := r.pool.Query(ctx,
		"DELETE FROM samples WHERE person_uid = $1 RETURNING id", personUID,
	)
	if err != nil {
		return nil, fmt.Errorf("delete samples: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted sample id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted sample ids: %w", err)
	}

	r.updateHNSWSamples(hnswEnabled, ids, nil)
	return ids, nil
}

// updateHNSWSamples removes old sample IDs and adds new samples to the HNSW index.
func (r *SampleRepository) updateHNSWSamples(hnswEnabled bool, oldIDs []int64, newSamples []database.StoredSample) {
	if !hnswEnabled {
		return
	}
	r.hnswMu.Lock()
	for _, id := range oldIDs {
		r.hnswIndex.Delete(id)
	}
	for i := range newSamples {
		r.hnswIndex.Add(&newSamples[i])
	}
	r.hnswMu.Unlock()
}

// EnableHNSW builds (or loads) the in-memory HNSW index for sample matching.
func (r *SampleRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	samples, err := r.GetAllSamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}

	if indexPath != "" {
		idx := database.NewHNSWIndex()
		if err := idx.Load(indexPath); err == nil && !idx.IsEmpty() {
			// Graph loaded from disk; repopulate the ID lookup from the database.
			idx.RebuildFromSamples(samples)
			r.hnswIndex = idx
			r.hnswEnabled = true
			return nil
		}
	}

	r.hnswIndex = database.NewHNSWIndex()
	if err := r.hnswIndex.BuildFromSamples(samples); err != nil {
		return fmt.Errorf("failed to build HNSW index: %w", err)
	}

	if indexPath != "" && len(samples) > 0 {
		r.hnswIndex.SetPath(indexPath)
		if err := r.hnswIndex.Save(); err != nil {
			fmt.Printf("Warning: failed to save HNSW index to disk: %v\n", err)
		}
	}

	r.hnswEnabled = true
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *SampleRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *SampleRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of samples in the HNSW index.
func (r *SampleRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data.
func (r *SampleRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *SampleRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" || r.hnswIndex == nil {
		return nil // Nothing to save
	}

	r.hnswIndex.SetPath(r.hnswIndexPath)
	if err := r.hnswIndex.Save(); err != nil {
		return fmt.Errorf("saving HNSW sample index: %w", err)
	}
	return nil
}
