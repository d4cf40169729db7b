package camera

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blackjack/webcam"
)

const frameWaitTimeoutSec = 5

// V4L2Source reads frames from a Video4Linux2 device. A reader goroutine
// drains the device continuously and keeps only the latest frame, so the
// watcher always samples a fresh image regardless of its tick cadence.
type V4L2Source struct {
	cam    *webcam.Webcam
	device string

	mu       sync.Mutex
	latest   []byte
	frameSeq uint64
	waiters  []chan []byte

	stopped atomic.Bool
	done    chan struct{}
	readErr error
}

// OpenV4L2 opens the device and starts streaming. An error here is terminal
// for the session; there is no retry.
func OpenV4L2(device string) (*V4L2Source, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", device, err)
	}

	if err := selectMJPEGFormat(cam); err != nil {
		_ = cam.Close()
		return nil, err
	}

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", device, err)
	}

	s := &V4L2Source{
		cam:    cam,
		device: device,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// selectMJPEGFormat picks a motion-JPEG pixel format so frames come out of
// the device already JPEG-encoded.
func selectMJPEGFormat(cam *webcam.Webcam) error {
	formats := cam.GetSupportedFormats()
	for format, desc := range formats {
		name := strings.ToUpper(desc)
		if !strings.Contains(name, "JPEG") && !strings.Contains(name, "MJPG") {
			continue
		}

		sizes := cam.GetSupportedFrameSizes(format)
		if len(sizes) == 0 {
			continue
		}
		// Largest discrete size the device offers.
		best := sizes[0]
		for _, fs := range sizes[1:] {
			if fs.MaxWidth*fs.MaxHeight > best.MaxWidth*best.MaxHeight {
				best = fs
			}
		}

		if _, _, _, err := cam.SetImageFormat(format, best.MaxWidth, best.MaxHeight); err != nil {
			return fmt.Errorf("set image format: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no MJPEG format supported by device")
}

// readLoop drains the device, keeping only the newest frame.
func (s *V4L2Source) readLoop() {
	defer close(s.done)

	for !s.stopped.Load() {
		err := s.cam.WaitForFrame(frameWaitTimeoutSec)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			if !s.stopped.Load() {
				s.readErr = fmt.Errorf("frame wait failed: %w", err)
				log.Printf("camera %s: %v", s.device, s.readErr)
			}
			return
		}

		frame, err := s.cam.ReadFrame()
		if err != nil {
			if !s.stopped.Load() {
				s.readErr = fmt.Errorf("read frame failed: %w", err)
				log.Printf("camera %s: %v", s.device, s.readErr)
			}
			return
		}
		if len(frame) == 0 {
			continue
		}

		buf := make([]byte, len(frame))
		copy(buf, frame)

		s.mu.Lock()
		s.latest = buf
		s.frameSeq++
		for _, w := range s.waiters {
			w <- buf
		}
		s.waiters = nil
		s.mu.Unlock()
	}
}

// Frame returns the most recent frame, waiting for the first one if the
// device has not produced any yet.
func (s *V4L2Source) Frame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.latest != nil {
		frame := s.latest
		s.mu.Unlock()
		return frame, nil
	}
	wait := make(chan []byte, 1)
	s.waiters = append(s.waiters, wait)
	s.mu.Unlock()

	select {
	case frame := <-wait:
		return frame, nil
	case <-s.done:
		if s.readErr != nil {
			return nil, s.readErr
		}
		return nil, ErrNoFrame
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the reader goroutine and releases the device.
func (s *V4L2Source) Close() error {
	if s.stopped.Swap(true) {
		return nil
	}
	err := s.cam.Close()
	<-s.done
	if err != nil {
		return fmt.Errorf("close camera %s: %w", s.device, err)
	}
	return nil
}
