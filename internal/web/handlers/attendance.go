package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vkadlec/face-attendance/internal/database"
)

// AttendanceHandler handles attendance record endpoints
type AttendanceHandler struct {
	attendance database.AttendanceReader
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendance database.AttendanceReader) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// MarkResponse represents one attendance mark
type MarkResponse struct {
	ID         int64   `json:"id"`
	PersonUID  string  `json:"person_uid"`
	PersonName string  `json:"person_name"`
	SessionID  string  `json:"session_id"`
	Distance   float64 `json:"distance"`
	MarkedAt   string  `json:"marked_at"`
}

func toMarkResponses(marks []database.AttendanceRecord) []MarkResponse {
	out := make([]MarkResponse, 0, len(marks))
	for _, m := range marks {
		out = append(out, MarkResponse{
			ID:         m.ID,
			PersonUID:  m.PersonUID,
			PersonName: m.PersonName,
			SessionID:  m.SessionID,
			Distance:   m.Distance,
			MarkedAt:   m.MarkedAt.Format(time.RFC3339),
		})
	}
	return out
}

// List returns marks for a day. Query params: date (YYYY-MM-DD, default
// today), or an explicit from/to RFC3339 range.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time

	q := r.URL.Query()
	switch {
	case q.Get("from") != "" && q.Get("to") != "":
		var err error
		from, err = time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'from' timestamp")
			return
		}
		to, err = time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid 'to' timestamp")
			return
		}
	case q.Get("date") != "":
		day, err := time.ParseInLocation("2006-01-02", q.Get("date"), time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		from = day
		to = day.AddDate(0, 0, 1)
	default:
		now := time.Now()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		to = from.AddDate(0, 0, 1)
	}

	marks, err := h.attendance.ListMarks(r.Context(), from, to)
	if err != nil {
		log.Printf("list marks: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"from":  from.Format(time.RFC3339),
		"to":    to.Format(time.RFC3339),
		"marks": toMarkResponses(marks),
		"count": len(marks),
	})
}

// ListByPerson returns all marks for one person
func (h *AttendanceHandler) ListByPerson(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	marks, err := h.attendance.ListMarksByPerson(r.Context(), uid)
	if err != nil {
		log.Printf("list marks for %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"person_uid": uid,
		"marks":      toMarkResponses(marks),
		"count":      len(marks),
	})
}
