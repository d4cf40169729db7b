// Package camera provides frame sources for the attendance watcher. A frame
// source hands out the most recent frame on demand; the watcher decides when
// to sample it.
package camera

import (
	"context"
	"errors"
)

// ErrNoFrame is returned when no frame is available yet.
var ErrNoFrame = errors.New("no frame available")

// FrameSource supplies camera frames as encoded JPEG bytes.
type FrameSource interface {
	// Frame returns the most recent frame. Blocks until a frame is
	// available or the context is done.
	Frame(ctx context.Context) ([]byte, error)
	// Close releases the underlying device.
	Close() error
}
