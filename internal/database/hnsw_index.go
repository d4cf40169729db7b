package database

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex wraps the HNSW graph for face sample embedding search.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64] // For persistence
	idToSample map[int64]*StoredSample // Maps HNSW node ID to sample
	mu         sync.RWMutex
	path       string // Path to save/load index
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToSample: make(map[int64]*StoredSample),
	}
}

// BuildFromSamples builds the index from a slice of samples.
func (h *HNSWIndex) BuildFromSamples(samples []StoredSample) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(samples) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToSample = make(map[int64]*StoredSample)
		return nil
	}

	// Create new graph with cosine distance.
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	h.idToSample = make(map[int64]*StoredSample, len(samples))

	// Add all samples to the graph.
	for i := range samples {
		sample := &samples[i]
		if len(sample.Embedding) == 0 {
			continue
		}

		g.Add(hnsw.MakeNode(sample.ID, sample.Embedding))
		h.idToSample[sample.ID] = sample
	}

	// A full rebuild replaces any index previously loaded from disk.
	h.graph = g
	h.savedGraph = nil
	return nil
}

// Search finds the k nearest neighbors to the query embedding.
// Returns sample IDs and their distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, len(neighbors))
	distances := make([]float64, len(neighbors))

	for i, n := range neighbors {
		ids[i] = n.Key
		// Compute actual cosine distance using the embedding from the node directly.
		// This avoids needing the idToSample map for distance computation.
		if len(n.Value) > 0 {
			distances[i] = CosineDistance(query, n.Value)
		}
	}

	return ids, distances, nil
}

// GetSample returns the sample for a given ID.
func (h *HNSWIndex) GetSample(id int64) *StoredSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToSample[id]
}

// Add adds a single sample to the index.
func (h *HNSWIndex) Add(sample *StoredSample) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(sample.Embedding) == 0 {
		return nil
	}

	// When the index came from disk, grow the loaded graph in place so a
	// later Save keeps every previously persisted sample.
	if h.savedGraph != nil {
		h.savedGraph.Add(hnsw.MakeNode(sample.ID, sample.Embedding))
		h.idToSample[sample.ID] = sample
		return nil
	}

	if h.graph == nil {
		// Create new graph.
		h.graph = hnsw.NewGraph[int64]()
		h.graph.M = HNSWMaxNeighbors
		h.graph.Ml = 1.0 / float64(HNSWMaxNeighbors)
		h.graph.Distance = hnsw.CosineDistance
	}

	h.graph.Add(hnsw.MakeNode(sample.ID, sample.Embedding))
	h.idToSample[sample.ID] = sample

	return nil
}

// Delete removes a sample from the index (marks as deleted).
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.idToSample, id)
	// Note: HNSW doesn't support true deletion, but removing from idToSample
	// effectively removes it from search results since we filter by lookup.
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the index to disk.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil // No path set
	}

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing file if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		return nil
	}

	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	// A disk-loaded index lives in savedGraph; export it rather than the
	// build-time graph so nothing persisted is dropped.
	if h.savedGraph != nil {
		if err := h.savedGraph.Export(f); err != nil {
			return fmt.Errorf("exporting HNSW graph: %w", err)
		}
		return nil
	}

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	return nil
}

// Load loads the index from disk.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No index file, will build from samples
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.savedGraph = saved
	return nil
}

// Count returns the number of indexed samples.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToSample)
}

// IsEmpty returns true if the index has no graph data loaded.
// Note: idToSample is populated separately by RebuildFromSamples after loading.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// RebuildFromSamples rebuilds the idToSample map from samples.
// Called after loading index from disk.
func (h *HNSWIndex) RebuildFromSamples(samples []StoredSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToSample = make(map[int64]*StoredSample, len(samples))
	for i := range samples {
		h.idToSample[samples[i].ID] = &samples[i]
	}
}
