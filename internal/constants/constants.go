// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Attendance loop constants
const (
	// DefaultTickInterval is the cadence at which the watcher samples the camera
	DefaultTickInterval = 1 * time.Second

	// DefaultCooldown is the minimum time between two attendance marks
	// for the same person
	DefaultCooldown = 60 * time.Second
)

// Recognition constants
const (
	// DefaultDistanceThreshold is the default maximum cosine distance for
	// matching a detected face against enrolled samples
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.5

	// MinDetScore is the minimum detection score for a face to be considered
	// Faces below this are dropped before identification
	MinDetScore = 0.55

	// DedupIoUThreshold is the minimum Intersection over Union at which two
	// face boxes in the same frame are treated as duplicate detections
	DedupIoUThreshold = 0.6
)

// Enrollment constants
const (
	// MinEnrollSamples is the minimum number of face samples per person
	// for reliable matching
	MinEnrollSamples = 3

	// MaxEnrollSamples caps the number of samples stored per person
	MaxEnrollSamples = 20
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
