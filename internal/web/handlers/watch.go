package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vkadlec/face-attendance/internal/camera"
	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/metrics"
	"github.com/vkadlec/face-attendance/internal/overlay"
	"github.com/vkadlec/face-attendance/internal/watcher"
)

// FrameSourceFactory opens the configured camera. Injected so handler tests
// can supply a fake source.
type FrameSourceFactory func(cfg *config.Config) (camera.FrameSource, error)

// OpenFrameSource opens the camera named by the config: a frame directory
// when set, otherwise the V4L2 device.
func OpenFrameSource(cfg *config.Config) (camera.FrameSource, error) {
	if cfg.Camera.Dir != "" {
		return camera.OpenDir(cfg.Camera.Dir)
	}
	device := cfg.Camera.Device
	if device == "" {
		device = "/dev/video0"
	}
	return camera.OpenV4L2(device)
}

// WatchHandler handles watch session endpoints
type WatchHandler struct {
	config     *config.Config
	manager    *watcher.Manager
	identifier watcher.FaceIdentifier
	attendance database.AttendanceWriter
	metrics    *metrics.Metrics
	newSource  FrameSourceFactory
}

// NewWatchHandler creates a new watch handler
func NewWatchHandler(
	cfg *config.Config,
	manager *watcher.Manager,
	identifier watcher.FaceIdentifier,
	attendance database.AttendanceWriter,
	m *metrics.Metrics,
	newSource FrameSourceFactory,
) *WatchHandler {
	if newSource == nil {
		newSource = OpenFrameSource
	}
	return &WatchHandler{
		config:     cfg,
		manager:    manager,
		identifier: identifier,
		attendance: attendance,
		metrics:    m,
		newSource:  newSource,
	}
}

// startWatchRequest represents a start session request. All fields are
// optional; missing ones fall back to the configured defaults.
type startWatchRequest struct {
	Cooldown     string `json:"cooldown,omitempty"`      // e.g. "60s"
	TickInterval string `json:"tick_interval,omitempty"` // e.g. "1s"
	Overlap      string `json:"overlap,omitempty"`       // "skip" or "queue"
}

// Start creates and starts a new watch session
func (h *WatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startWatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	cooldown := h.config.Attendance.Cooldown
	if req.Cooldown != "" {
		d, err := time.ParseDuration(req.Cooldown)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "invalid cooldown")
			return
		}
		cooldown = d
	}

	tickInterval := h.config.Attendance.TickInterval
	if req.TickInterval != "" {
		d, err := time.ParseDuration(req.TickInterval)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "invalid tick interval")
			return
		}
		tickInterval = d
	}

	overlap := watcher.OverlapMode(h.config.Attendance.OverlapMode)
	if req.Overlap != "" {
		switch req.Overlap {
		case string(watcher.OverlapSkip), string(watcher.OverlapQueue):
			overlap = watcher.OverlapMode(req.Overlap)
		default:
			respondError(w, http.StatusBadRequest, "overlap must be 'skip' or 'queue'")
			return
		}
	}

	// Camera acquisition failure is terminal for the session.
	frames, err := h.newSource(h.config)
	if err != nil {
		log.Printf("open camera: %v", err)
		respondError(w, http.StatusBadGateway, "failed to open camera")
		return
	}

	// Sessions outlive the request; they stop via DELETE or shutdown.
	sess, err := h.manager.StartSession(context.Background(), watcher.Options{
		Frames:       frames,
		Identifier:   h.identifier,
		Attendance:   h.attendance,
		Metrics:      h.metrics,
		Cooldown:     cooldown,
		TickInterval: tickInterval,
		Overlap:      overlap,
	})
	if err != nil {
		_ = frames.Close()
		log.Printf("start session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	respondJSON(w, http.StatusCreated, sess.Status())
}

// List returns the status of all sessions
func (h *WatchHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses := h.manager.ListSessions()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": statuses,
		"count":    len(statuses),
	})
}

// Status returns one session's status
func (h *WatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.GetSession(chi.URLParam(r, "id"))
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sess.Status())
}

// Stop ends a session
func (h *WatchHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.manager.StopSession(id) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Events streams session events over SSE
func (h *WatchHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.GetSession(chi.URLParam(r, "id"))
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	streamSessionEvents(w, r, sess)
}

// Snapshot serves the latest frame with detection boxes drawn on it
func (h *WatchHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.GetSession(chi.URLParam(r, "id"))
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	frame, detections := sess.LastFrame()
	if frame == nil {
		respondError(w, http.StatusNotFound, "no frame captured yet")
		return
	}

	annotated, err := overlay.DrawDetections(frame, detections)
	if err != nil {
		log.Printf("draw detections: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to render snapshot")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(annotated)
}
