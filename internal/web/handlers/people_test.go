package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/database/mock"
)

func TestPeopleHandler_List(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Anna Svobodová", Active: true})
	people.AddPerson(database.StoredPerson{UID: "uid-2", Name: "Jan Novák", Active: true})

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	req := httptest.NewRequest("GET", "/api/v1/people", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		People []PersonResponse `json:"people"`
		Count  int              `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 2 {
		t.Errorf("expected 2 people, got %d", result.Count)
	}
	if result.People[0].Name != "Anna Svobodová" {
		t.Errorf("expected people sorted by name, got '%s' first", result.People[0].Name)
	}
}

func TestPeopleHandler_ListError(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.ListError = errors.New("database unavailable")

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	req := httptest.NewRequest("GET", "/api/v1/people", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list people")
}

func TestPeopleHandler_Get(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Jan Novák", SISID: "S-1001", Active: true})

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	req := httptest.NewRequest("GET", "/api/v1/people/uid-1", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var person PersonResponse
	parseJSONResponse(t, recorder, &person)

	if person.Name != "Jan Novák" {
		t.Errorf("expected name 'Jan Novák', got '%s'", person.Name)
	}
	if person.SISID != "S-1001" {
		t.Errorf("expected SIS ID 'S-1001', got '%s'", person.SISID)
	}
}

func TestPeopleHandler_GetNotFound(t *testing.T) {
	handler := NewPeopleHandler(mock.NewMockPersonWriter(), mock.NewMockSampleWriter())

	req := httptest.NewRequest("GET", "/api/v1/people/missing", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "missing"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "person not found")
}

func TestPeopleHandler_Create(t *testing.T) {
	people := mock.NewMockPersonWriter()
	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	body := bytes.NewBufferString(`{"name": "Jan Novák", "sis_id": "S-1001"}`)
	req := httptest.NewRequest("POST", "/api/v1/people", body)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var person PersonResponse
	parseJSONResponse(t, recorder, &person)

	if person.UID == "" {
		t.Error("expected a generated UID")
	}
	if !person.Active {
		t.Error("expected new person to be active by default")
	}

	saved, err := people.GetPerson(req.Context(), person.UID)
	if err != nil {
		t.Fatalf("get saved person: %v", err)
	}
	if saved == nil || saved.Name != "Jan Novák" {
		t.Errorf("person was not saved correctly: %+v", saved)
	}
}

func TestPeopleHandler_CreateMissingName(t *testing.T) {
	handler := NewPeopleHandler(mock.NewMockPersonWriter(), mock.NewMockSampleWriter())

	body := bytes.NewBufferString(`{"name": "   "}`)
	req := httptest.NewRequest("POST", "/api/v1/people", body)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "name is required")
}

func TestPeopleHandler_CreateDuplicateName(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Jan Novák", Active: true})

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	// Diacritics-insensitive duplicate
	body := bytes.NewBufferString(`{"name": "jan novak"}`)
	req := httptest.NewRequest("POST", "/api/v1/people", body)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "person with this name already exists")
}

func TestPeopleHandler_CreateInvalidBody(t *testing.T) {
	handler := NewPeopleHandler(mock.NewMockPersonWriter(), mock.NewMockSampleWriter())

	body := bytes.NewBufferString(`{not json`)
	req := httptest.NewRequest("POST", "/api/v1/people", body)
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestPeopleHandler_Update(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Jan Novák", Active: true})

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	body := bytes.NewBufferString(`{"active": false}`)
	req := httptest.NewRequest("PUT", "/api/v1/people/uid-1", body)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var person PersonResponse
	parseJSONResponse(t, recorder, &person)

	if person.Active {
		t.Error("expected person to be deactivated")
	}
	if person.Name != "Jan Novák" {
		t.Errorf("expected name to be unchanged, got '%s'", person.Name)
	}
}

func TestPeopleHandler_Delete(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Jan Novák", Active: true})

	handler := NewPeopleHandler(people, mock.NewMockSampleWriter())

	req := httptest.NewRequest("DELETE", "/api/v1/people/uid-1", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	got, err := people.GetPerson(req.Context(), "uid-1")
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if got != nil {
		t.Error("expected person to be deleted")
	}
}

func TestPeopleHandler_GetSamples(t *testing.T) {
	people := mock.NewMockPersonWriter()
	people.AddPerson(database.StoredPerson{UID: "uid-1", Name: "Jan Novák", Active: true})

	samples := mock.NewMockSampleWriter()
	samples.AddSample(database.StoredSample{
		PersonUID:   "uid-1",
		SampleIndex: 0,
		Model:       "buffalo_l",
		Dim:         512,
		Embedding:   []float32{1, 0, 0},
		Source:      "enroll",
	})

	handler := NewPeopleHandler(people, samples)

	req := httptest.NewRequest("GET", "/api/v1/people/uid-1/samples", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.GetSamples(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		PersonUID string           `json:"person_uid"`
		Samples   []SampleResponse `json:"samples"`
		Count     int              `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 1 {
		t.Fatalf("expected 1 sample, got %d", result.Count)
	}
	if result.Samples[0].Model != "buffalo_l" {
		t.Errorf("expected model 'buffalo_l', got '%s'", result.Samples[0].Model)
	}

	// Embeddings must not leak through the API
	if bytes.Contains(recorder.Body.Bytes(), []byte("embedding")) {
		t.Error("sample response must not include the embedding")
	}
}

func TestPeopleHandler_DeleteSamples(t *testing.T) {
	samples := mock.NewMockSampleWriter()
	samples.AddSample(database.StoredSample{PersonUID: "uid-1", Embedding: []float32{1, 0}})
	samples.AddSample(database.StoredSample{PersonUID: "uid-1", Embedding: []float32{0, 1}})
	samples.AddSample(database.StoredSample{PersonUID: "uid-2", Embedding: []float32{1, 1}})

	handler := NewPeopleHandler(mock.NewMockPersonWriter(), samples)

	req := httptest.NewRequest("DELETE", "/api/v1/people/uid-1/samples", nil)
	req = requestWithChiParams(req, map[string]string{"uid": "uid-1"})
	recorder := httptest.NewRecorder()
	handler.DeleteSamples(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		SamplesRemoved int `json:"samples_removed"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.SamplesRemoved != 2 {
		t.Errorf("expected 2 samples removed, got %d", result.SamplesRemoved)
	}

	remaining, err := samples.GetSamples(req.Context(), "uid-2")
	if err != nil {
		t.Fatalf("get samples: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected other person's sample to survive, got %d", len(remaining))
	}
}
