package database

import "math"

// maxCosineDistance is returned for degenerate inputs (mismatched
// dimensions, zero vectors).
const maxCosineDistance = 2.0

// CosineDistance computes 1 - cosine similarity between two embeddings.
// Result is in [0, 2]: 0 means identical direction, 2 means opposite.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return maxCosineDistance
	}

	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return maxCosineDistance
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp against floating point drift before converting to a distance.
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}
