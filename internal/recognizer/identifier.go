package recognizer

import (
	"context"
	"fmt"
	"sort"

	"github.com/vkadlec/face-attendance/internal/constants"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/facematch"
)

// UnknownLabel is the sentinel label for faces that matched no enrolled person.
const UnknownLabel = "unknown"

// Detection is one labeled face within a frame.
type Detection struct {
	Label      string    `json:"label"` // person name or "unknown"
	PersonUID  string    `json:"person_uid,omitempty"`
	Confidence float64   `json:"confidence"`
	Distance   float64   `json:"distance"`
	DetScore   float64   `json:"det_score"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

// Known reports whether the detection matched an enrolled person.
func (d Detection) Known() bool {
	return d.Label != UnknownLabel
}

// FaceDetector detects faces in a frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error)
}

// Identifier labels raw face detections by nearest-neighbor search over
// enrolled samples.
type Identifier struct {
	detector    FaceDetector
	samples     database.SampleReader
	maxDistance float64
	minDetScore float64
}

// NewIdentifier creates an identifier. Zero thresholds fall back to defaults.
func NewIdentifier(detector FaceDetector, samples database.SampleReader, maxDistance, minDetScore float64) *Identifier {
	if maxDistance <= 0 {
		maxDistance = constants.DefaultDistanceThreshold
	}
	if minDetScore <= 0 {
		minDetScore = constants.MinDetScore
	}
	return &Identifier{
		detector:    detector,
		samples:     samples,
		maxDistance: maxDistance,
		minDetScore: minDetScore,
	}
}

// Identify detects faces in a frame and matches them against enrolled people.
// Weak detections are dropped, duplicate boxes for the same face collapse to
// the strongest one, and faces matching no enrolled sample are labeled
// "unknown".
func (id *Identifier) Identify(ctx context.Context, imageData []byte) ([]Detection, error) {
	resp, err := id.detector.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]FaceDetection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if f.DetScore >= id.minDetScore {
			faces = append(faces, f)
		}
	}

	// Strongest detections first so deduplication keeps the best box.
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].DetScore > faces[j].DetScore })

	boxes := make([][]float64, len(faces))
	for i, f := range faces {
		boxes[i] = f.BBox
	}
	kept := facematch.DedupBoxes(boxes, constants.DedupIoUThreshold)

	detections := make([]Detection, 0, len(kept))
	for _, i := range kept {
		face := faces[i]
		det, err := id.matchFace(ctx, face)
		if err != nil {
			return nil, err
		}
		detections = append(detections, det)
	}

	return detections, nil
}

// matchFace labels a single face by its nearest enrolled sample.
func (id *Identifier) matchFace(ctx context.Context, face FaceDetection) (Detection, error) {
	det := Detection{
		Label:      UnknownLabel,
		Confidence: 0,
		Distance:   -1,
		DetScore:   face.DetScore,
		BBox:       face.BBox,
	}

	matches, distances, err := id.samples.FindSimilarWithDistance(ctx, face.Embedding, 1, id.maxDistance)
	if err != nil {
		return Detection{}, fmt.Errorf("find similar samples: %w", err)
	}
	if len(matches) == 0 {
		return det, nil
	}

	det.Label = matches[0].PersonName
	det.PersonUID = matches[0].PersonUID
	det.Distance = distances[0]
	det.Confidence = 1 - distances[0]
	return det, nil
}
