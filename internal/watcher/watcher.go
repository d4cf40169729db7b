// Package watcher implements the attendance loop: sample the camera at a
// fixed cadence, identify faces, and mark attendance at most once per person
// per cooldown window.
package watcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vkadlec/face-attendance/internal/camera"
	"github.com/vkadlec/face-attendance/internal/constants"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/metrics"
	"github.com/vkadlec/face-attendance/internal/recognizer"
)

// OverlapMode decides what happens when a tick fires while a detection
// request is still in flight. Either way there is never more than one
// request running at a time.
type OverlapMode string

const (
	// OverlapSkip drops the overlapping tick.
	OverlapSkip OverlapMode = "skip"
	// OverlapQueue holds at most one overlapping tick and runs it as soon
	// as the in-flight request finishes.
	OverlapQueue OverlapMode = "queue"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("watcher already started")

// FaceIdentifier labels the faces in a frame.
type FaceIdentifier interface {
	Identify(ctx context.Context, frame []byte) ([]recognizer.Detection, error)
}

// Callbacks are invoked from the watcher's detection goroutine. None of them
// fire after Stop returns. They must not call back into the watcher.
type Callbacks struct {
	// OnMarked fires when a person is marked, at most once per person per
	// cooldown window.
	OnMarked func(det recognizer.Detection)
	// OnDetected fires for every recognized person in a tick, marked or not.
	OnDetected func(det recognizer.Detection)
	// OnNotDetected fires when a tick produced no recognized person.
	OnNotDetected func()
}

// Options configures a watch session.
type Options struct {
	// Frames is owned by the session and closed on Stop.
	Frames     camera.FrameSource
	Identifier FaceIdentifier

	// Attendance, when set, persists every mark.
	Attendance database.AttendanceWriter
	// Metrics, when set, receives tick and detection counters.
	Metrics *metrics.Metrics

	Cooldown     time.Duration // default 60s
	TickInterval time.Duration // default 1s
	Overlap      OverlapMode   // default skip

	Callbacks Callbacks

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Watcher runs one watch session. Per-person debounce state lives here, so
// independent sessions never share cooldowns.
type Watcher struct {
	EventBroadcaster

	ID string

	frames     camera.FrameSource
	identifier FaceIdentifier
	attendance database.AttendanceWriter
	metrics    *metrics.Metrics

	cooldown     time.Duration
	tickInterval time.Duration
	overlap      OverlapMode
	callbacks    Callbacks
	now          func() time.Time

	mu             sync.Mutex
	lastSeen       map[string]time.Time
	inFlight       bool
	pending        bool
	stopped        bool
	started        bool
	startedAt      time.Time
	ticks          uint64
	marks          uint64
	lastFrame      []byte
	lastDetections []recognizer.Detection

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watch session with the given ID.
func New(id string, opts Options) *Watcher {
	if opts.Cooldown <= 0 {
		opts.Cooldown = constants.DefaultCooldown
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = constants.DefaultTickInterval
	}
	if opts.Overlap != OverlapQueue {
		opts.Overlap = OverlapSkip
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Watcher{
		ID:           id,
		frames:       opts.Frames,
		identifier:   opts.Identifier,
		attendance:   opts.Attendance,
		metrics:      opts.Metrics,
		cooldown:     opts.Cooldown,
		tickInterval: opts.TickInterval,
		overlap:      opts.Overlap,
		callbacks:    opts.Callbacks,
		now:          opts.Clock,
		lastSeen:     make(map[string]time.Time),
	}
}

// Start begins the tick loop. It returns immediately; detections run in the
// background until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true
	w.startedAt = w.now()

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	if w.metrics != nil {
		w.metrics.ActiveSessions.Add(1)
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	// First tick fires immediately so a short session still sees a frame.
	w.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one cadence step: if a detection request is already in flight
// the tick is skipped or queued per the overlap mode, otherwise a new
// request starts in the background.
func (w *Watcher) Tick(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if w.inFlight {
		if w.overlap == OverlapQueue && !w.pending {
			w.pending = true
			if w.metrics != nil {
				w.metrics.TicksQueued.Add(1)
			}
		} else if w.metrics != nil {
			w.metrics.TicksSkipped.Add(1)
		}
		w.mu.Unlock()
		return
	}
	w.inFlight = true
	w.mu.Unlock()

	go w.runDetection(ctx)
}

// runDetection performs the detection request for a tick and, in queue mode,
// any tick that arrived while the request was running.
func (w *Watcher) runDetection(ctx context.Context) {
	if w.metrics != nil {
		w.metrics.InFlight.Add(1)
		defer func() {
			w.metrics.InFlight.Add(^uint64(0))
		}()
	}

	for {
		w.detectOnce(ctx)

		w.mu.Lock()
		if w.pending && !w.stopped && ctx.Err() == nil {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.pending = false
		w.inFlight = false
		w.mu.Unlock()
		return
	}
}

// detectOnce grabs a frame, identifies faces, and applies the debounce
// rules. A failed frame read or detection request counts as a tick with
// zero detections.
func (w *Watcher) detectOnce(ctx context.Context) {
	if w.metrics != nil {
		w.metrics.Ticks.Add(1)
	}

	var detections []recognizer.Detection
	frame, err := w.frames.Frame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			if w.metrics != nil {
				w.metrics.CameraErrors.Add(1)
			}
			log.Printf("watch %s: frame read failed: %v", w.ID, err)
			w.SendEvent(Event{Type: EventError, Message: err.Error(), Timestamp: w.now()})
		}
	} else {
		detections, err = w.identifier.Identify(ctx, frame)
		if err != nil {
			if ctx.Err() == nil {
				if w.metrics != nil {
					w.metrics.RecognizerErrors.Add(1)
				}
				log.Printf("watch %s: detection failed: %v", w.ID, err)
				w.SendEvent(Event{Type: EventError, Message: err.Error(), Timestamp: w.now()})
			}
			detections = nil
		}
	}

	w.handleDetections(ctx, frame, detections)
}

// handleDetections applies the cooldown rules and fires callbacks. Callbacks
// run under the session lock: Stop takes the same lock before returning, so
// once Stop returns no callback can fire.
func (w *Watcher) handleDetections(ctx context.Context, frame []byte, detections []recognizer.Detection) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.ticks++
	if frame != nil {
		w.lastFrame = frame
		w.lastDetections = detections
	}

	anyKnown := false
	for _, det := range detections {
		if !det.Known() {
			if w.metrics != nil {
				w.metrics.FacesUnknown.Add(1)
			}
			continue
		}
		anyKnown = true
		if w.metrics != nil {
			w.metrics.FacesRecognized.Add(1)
		}

		w.SendEvent(Event{Type: EventDetected, Label: det.Label, Detection: &det, Timestamp: now})
		if w.callbacks.OnDetected != nil {
			w.callbacks.OnDetected(det)
		}

		last, seen := w.lastSeen[det.Label]
		if seen && now.Sub(last) <= w.cooldown {
			continue
		}
		w.lastSeen[det.Label] = now
		w.marks++
		if w.metrics != nil {
			w.metrics.Marks.Add(1)
		}

		if w.attendance != nil {
			rec := &database.AttendanceRecord{
				PersonUID:  det.PersonUID,
				PersonName: det.Label,
				SessionID:  w.ID,
				Distance:   det.Distance,
				MarkedAt:   now,
			}
			if err := w.attendance.SaveMark(ctx, rec); err != nil {
				log.Printf("watch %s: save mark for %s: %v", w.ID, det.Label, err)
			}
		}

		w.SendEvent(Event{Type: EventMarked, Label: det.Label, Detection: &det, Timestamp: now})
		if w.callbacks.OnMarked != nil {
			w.callbacks.OnMarked(det)
		}
	}

	if !anyKnown {
		w.SendEvent(Event{Type: EventNotDetected, Timestamp: now})
		if w.callbacks.OnNotDetected != nil {
			w.callbacks.OnNotDetected()
		}
	}
}

// Stop ends the session. After Stop returns no callback fires, including
// from a detection request still in flight; its result is discarded. The
// per-person debounce state is cleared.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.lastSeen = make(map[string]time.Time)
	started := w.started
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if w.frames != nil {
		_ = w.frames.Close()
	}
	if w.metrics != nil && started {
		w.metrics.ActiveSessions.Add(^uint64(0))
	}
	w.SendEvent(Event{Type: EventStopped, Timestamp: w.now()})
}

// Status is a point-in-time summary of a session.
type Status struct {
	ID        string    `json:"id"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	Ticks     uint64    `json:"ticks"`
	Marks     uint64    `json:"marks"`
	Overlap   string    `json:"overlap_mode"`
	Cooldown  string    `json:"cooldown"`
}

// Status reports the session's current state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		ID:        w.ID,
		Running:   w.started && !w.stopped,
		StartedAt: w.startedAt,
		Ticks:     w.ticks,
		Marks:     w.marks,
		Overlap:   string(w.overlap),
		Cooldown:  w.cooldown.String(),
	}
}

// LastFrame returns the most recent frame and its detections, nil if no
// frame has been processed yet.
func (w *Watcher) LastFrame() ([]byte, []recognizer.Detection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFrame, w.lastDetections
}
