package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/vkadlec/face-attendance/internal/watcher"
)

// streamSessionEvents streams a watch session's events until the session
// stops, the client disconnects, or the event channel closes.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, sess *watcher.Watcher) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := sess.AddListener()
	defer sess.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", sess.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
			if event.Type == watcher.EventStopped {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
