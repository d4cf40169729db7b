package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkadlec/face-attendance/internal/camera"
	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database/mock"
	"github.com/vkadlec/face-attendance/internal/metrics"
	"github.com/vkadlec/face-attendance/internal/recognizer"
	"github.com/vkadlec/face-attendance/internal/watcher"
)

// fakeFrames is a FrameSource that always returns the same frame.
type fakeFrames struct {
	frame  []byte
	closed bool
}

func (f *fakeFrames) Frame(ctx context.Context) ([]byte, error) {
	return f.frame, nil
}

func (f *fakeFrames) Close() error {
	f.closed = true
	return nil
}

// fakeIdentifier returns a fixed detection result.
type fakeIdentifier struct {
	detections []recognizer.Detection
	err        error
}

func (f *fakeIdentifier) Identify(ctx context.Context, frame []byte) ([]recognizer.Detection, error) {
	return f.detections, f.err
}

func newWatchHandlerForTest(t *testing.T, factory FrameSourceFactory) (*WatchHandler, *watcher.Manager) {
	t.Helper()
	manager := watcher.NewManager()
	t.Cleanup(manager.StopAll)
	handler := NewWatchHandler(
		testConfig(),
		manager,
		&fakeIdentifier{},
		mock.NewMockAttendanceWriter(),
		metrics.New(),
		factory,
	)
	return handler, manager
}

func fakeFactory(frames *fakeFrames) FrameSourceFactory {
	return func(cfg *config.Config) (camera.FrameSource, error) {
		return frames, nil
	}
}

func TestWatchHandler_Start(t *testing.T) {
	frames := &fakeFrames{frame: []byte("jpeg")}
	handler, manager := newWatchHandlerForTest(t, fakeFactory(frames))

	req := httptest.NewRequest("POST", "/api/v1/watch", nil)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var status watcher.Status
	parseJSONResponse(t, recorder, &status)

	if status.ID == "" {
		t.Fatal("expected a session ID")
	}
	if !status.Running {
		t.Error("expected session to be running")
	}
	if status.Overlap != "skip" {
		t.Errorf("expected default overlap 'skip', got '%s'", status.Overlap)
	}
	if status.Cooldown != "1m0s" {
		t.Errorf("expected default cooldown '1m0s', got '%s'", status.Cooldown)
	}

	if manager.GetSession(status.ID) == nil {
		t.Error("expected session to be registered with the manager")
	}
}

func TestWatchHandler_StartWithOverrides(t *testing.T) {
	frames := &fakeFrames{frame: []byte("jpeg")}
	handler, _ := newWatchHandlerForTest(t, fakeFactory(frames))

	body := bytes.NewBufferString(`{"cooldown": "30s", "tick_interval": "500ms", "overlap": "queue"}`)
	req := httptest.NewRequest("POST", "/api/v1/watch", body)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var status watcher.Status
	parseJSONResponse(t, recorder, &status)

	if status.Cooldown != "30s" {
		t.Errorf("expected cooldown '30s', got '%s'", status.Cooldown)
	}
	if status.Overlap != "queue" {
		t.Errorf("expected overlap 'queue', got '%s'", status.Overlap)
	}
}

func TestWatchHandler_StartInvalidOverrides(t *testing.T) {
	frames := &fakeFrames{frame: []byte("jpeg")}

	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad cooldown", `{"cooldown": "soon"}`, "invalid cooldown"},
		{"negative cooldown", `{"cooldown": "-5s"}`, "invalid cooldown"},
		{"bad tick interval", `{"tick_interval": "fast"}`, "invalid tick interval"},
		{"bad overlap", `{"overlap": "drop"}`, "overlap must be 'skip' or 'queue'"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := newWatchHandlerForTest(t, fakeFactory(frames))

			req := httptest.NewRequest("POST", "/api/v1/watch", bytes.NewBufferString(tc.body))
			recorder := httptest.NewRecorder()
			handler.Start(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.want)
		})
	}
}

func TestWatchHandler_StartCameraFailure(t *testing.T) {
	factory := func(cfg *config.Config) (camera.FrameSource, error) {
		return nil, errors.New("device busy")
	}
	handler, manager := newWatchHandlerForTest(t, factory)

	req := httptest.NewRequest("POST", "/api/v1/watch", nil)
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "failed to open camera")

	if len(manager.ListSessions()) != 0 {
		t.Error("expected no session after camera failure")
	}
}

func TestWatchHandler_StatusAndList(t *testing.T) {
	frames := &fakeFrames{frame: []byte("jpeg")}
	handler, manager := newWatchHandlerForTest(t, fakeFactory(frames))

	sess, err := manager.StartSession(context.Background(), watcher.Options{
		Frames:     frames,
		Identifier: &fakeIdentifier{},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/watch/"+sess.ID, nil)
	req = requestWithChiParams(req, map[string]string{"id": sess.ID})
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	req = httptest.NewRequest("GET", "/api/v1/watch", nil)
	recorder = httptest.NewRecorder()
	handler.List(recorder, req)

	var result struct {
		Sessions []watcher.Status `json:"sessions"`
		Count    int              `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 1 {
		t.Errorf("expected 1 session, got %d", result.Count)
	}
}

func TestWatchHandler_StatusNotFound(t *testing.T) {
	handler, _ := newWatchHandlerForTest(t, fakeFactory(&fakeFrames{}))

	req := httptest.NewRequest("GET", "/api/v1/watch/missing", nil)
	req = requestWithChiParams(req, map[string]string{"id": "missing"})
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "session not found")
}

func TestWatchHandler_Stop(t *testing.T) {
	frames := &fakeFrames{frame: []byte("jpeg")}
	handler, manager := newWatchHandlerForTest(t, fakeFactory(frames))

	sess, err := manager.StartSession(context.Background(), watcher.Options{
		Frames:     frames,
		Identifier: &fakeIdentifier{},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/api/v1/watch/"+sess.ID, nil)
	req = requestWithChiParams(req, map[string]string{"id": sess.ID})
	recorder := httptest.NewRecorder()
	handler.Stop(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	if manager.GetSession(sess.ID) != nil {
		t.Error("expected session to be removed")
	}
	if !frames.closed {
		t.Error("expected frame source to be closed on stop")
	}

	// Stopping again is a 404
	recorder = httptest.NewRecorder()
	handler.Stop(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

// blockedFrames never delivers a frame until the session context ends.
type blockedFrames struct{}

func (blockedFrames) Frame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockedFrames) Close() error { return nil }

func TestWatchHandler_SnapshotNoFrame(t *testing.T) {
	handler, manager := newWatchHandlerForTest(t, fakeFactory(&fakeFrames{}))

	sess, err := manager.StartSession(context.Background(), watcher.Options{
		Frames:     blockedFrames{},
		Identifier: &fakeIdentifier{},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/watch/"+sess.ID+"/snapshot", nil)
	req = requestWithChiParams(req, map[string]string{"id": sess.ID})
	recorder := httptest.NewRecorder()
	handler.Snapshot(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no frame captured yet")
}
