package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/database/mock"
)

func saveMark(t *testing.T, store *mock.MockAttendanceWriter, uid, name string, at time.Time) {
	t.Helper()
	err := store.SaveMark(context.Background(), &database.AttendanceRecord{
		PersonUID:  uid,
		PersonName: name,
		SessionID:  "session-1",
		Distance:   0.21,
		MarkedAt:   at,
	})
	if err != nil {
		t.Fatalf("save mark: %v", err)
	}
}

func TestAttendanceHandler_ListDefaultToday(t *testing.T) {
	store := mock.NewMockAttendanceWriter()
	now := time.Now()
	saveMark(t, store, "uid-1", "Jan Novák", now)
	saveMark(t, store, "uid-2", "Anna Svobodová", now.AddDate(0, 0, -2))

	handler := NewAttendanceHandler(store)

	req := httptest.NewRequest("GET", "/api/v1/attendance", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Marks []MarkResponse `json:"marks"`
		Count int            `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 1 {
		t.Fatalf("expected 1 mark for today, got %d", result.Count)
	}
	if result.Marks[0].PersonName != "Jan Novák" {
		t.Errorf("expected today's mark, got '%s'", result.Marks[0].PersonName)
	}
}

func TestAttendanceHandler_ListByDate(t *testing.T) {
	store := mock.NewMockAttendanceWriter()
	day := time.Date(2026, 3, 10, 8, 15, 0, 0, time.Local)
	saveMark(t, store, "uid-1", "Jan Novák", day)
	saveMark(t, store, "uid-1", "Jan Novák", day.AddDate(0, 0, 1))

	handler := NewAttendanceHandler(store)

	req := httptest.NewRequest("GET", "/api/v1/attendance?date=2026-03-10", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Marks []MarkResponse `json:"marks"`
		Count int            `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 1 {
		t.Errorf("expected 1 mark on 2026-03-10, got %d", result.Count)
	}
}

func TestAttendanceHandler_ListByRange(t *testing.T) {
	store := mock.NewMockAttendanceWriter()
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	saveMark(t, store, "uid-1", "Jan Novák", base)
	saveMark(t, store, "uid-2", "Anna Svobodová", base.Add(2*time.Hour))
	saveMark(t, store, "uid-3", "Petr Dvořák", base.Add(26*time.Hour))

	handler := NewAttendanceHandler(store)

	url := "/api/v1/attendance?from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z"
	req := httptest.NewRequest("GET", url, nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Marks []MarkResponse `json:"marks"`
		Count int            `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 2 {
		t.Fatalf("expected 2 marks in range, got %d", result.Count)
	}
	// Newest first
	if result.Marks[0].PersonName != "Anna Svobodová" {
		t.Errorf("expected newest mark first, got '%s'", result.Marks[0].PersonName)
	}
}

func TestAttendanceHandler_ListBadParams(t *testing.T) {
	handler := NewAttendanceHandler(mock.NewMockAttendanceWriter())

	cases := []struct {
		name string
		url  string
		want string
	}{
		{"bad date", "/api/v1/attendance?date=10.3.2026", "invalid date, expected YYYY-MM-DD"},
		{"bad from", "/api/v1/attendance?from=yesterday&to=2026-03-11T00:00:00Z", "invalid 'from' timestamp"},
		{"bad to", "/api/v1/attendance?from=2026-03-10T00:00:00Z&to=tomorrow", "invalid 'to' timestamp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.url, nil)
			recorder := httptest.NewRecorder()
			handler.List(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.want)
		})
	}
}

func TestAttendanceHandler_ListByPerson(t *testing.T) {
	store := mock.NewMockAttendanceWriter()
	now := time.Now()
	saveMark(t, store, "uid-1", "Jan Novák", now.Add(-time.Hour))
	saveMark(t, store, "uid-1", "Jan Novák", now)
	saveMark(t, store, "uid-2", "Anna Svobodová", now)

	handler := NewAttendanceHandler(store)

	req := httptest.NewRequest("GET", "/api/v1/attendance/person/uid-1", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.ListByPerson(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		PersonUID string         `json:"person_uid"`
		Marks     []MarkResponse `json:"marks"`
		Count     int            `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 2 {
		t.Fatalf("expected 2 marks, got %d", result.Count)
	}
	first, err := time.Parse(time.RFC3339, result.Marks[0].MarkedAt)
	if err != nil {
		t.Fatalf("parse marked_at: %v", err)
	}
	second, err := time.Parse(time.RFC3339, result.Marks[1].MarkedAt)
	if err != nil {
		t.Fatalf("parse marked_at: %v", err)
	}
	if first.Before(second) {
		t.Error("expected marks sorted newest first")
	}
}
