package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vkadlec/face-attendance/internal/database"
)

// PeopleHandler handles enrolled people endpoints
type PeopleHandler struct {
	people  database.PersonWriter
	samples database.SampleWriter
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(people database.PersonWriter, samples database.SampleWriter) *PeopleHandler {
	return &PeopleHandler{
		people:  people,
		samples: samples,
	}
}

// PersonResponse represents one enrolled person
type PersonResponse struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	SISID       string `json:"sis_id,omitempty"`
	Active      bool   `json:"active"`
	SampleCount int    `json:"sample_count"`
}

func toPersonResponse(p *database.StoredPerson) PersonResponse {
	return PersonResponse{
		UID:         p.UID,
		Name:        p.Name,
		SISID:       p.SISID,
		Active:      p.Active,
		SampleCount: p.SampleCount,
	}
}

// List returns all enrolled people
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.people.ListPeople(r.Context())
	if err != nil {
		log.Printf("list people: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list people")
		return
	}

	out := make([]PersonResponse, 0, len(people))
	for i := range people {
		out = append(out, toPersonResponse(&people[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"people": out,
		"count":  len(out),
	})
}

// Get returns a single person
func (h *PeopleHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	person, err := h.people.GetPerson(r.Context(), uid)
	if err != nil {
		log.Printf("get person %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(person))
}

// createPersonRequest represents a create person request
type createPersonRequest struct {
	Name   string `json:"name"`
	SISID  string `json:"sis_id"`
	Active *bool  `json:"active"`
}

// Create enrolls a new person (without samples; samples come from the
// enroll CLI or the samples endpoint)
func (h *PeopleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	existing, err := h.people.GetPersonByName(r.Context(), req.Name)
	if err != nil {
		log.Printf("check person %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to check existing person")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "person with this name already exists")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	person := &database.StoredPerson{
		UID:    uuid.New().String(),
		Name:   req.Name,
		SISID:  req.SISID,
		Active: active,
	}

	if err := h.people.SavePerson(r.Context(), person); err != nil {
		log.Printf("save person %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "failed to save person")
		return
	}

	respondJSON(w, http.StatusCreated, toPersonResponse(person))
}

// Update changes a person's name, SIS ID or active flag
func (h *PeopleHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	person, err := h.people.GetPerson(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	var req createPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		person.Name = name
	}
	if req.SISID != "" {
		person.SISID = req.SISID
	}
	if req.Active != nil {
		person.Active = *req.Active
	}

	if err := h.people.SavePerson(r.Context(), person); err != nil {
		log.Printf("update person %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to update person")
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(person))
}

// Delete removes a person and their samples
func (h *PeopleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	person, err := h.people.GetPerson(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	removed, err := h.people.DeletePerson(r.Context(), uid)
	if err != nil {
		log.Printf("delete person %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to delete person")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"samples_removed": len(removed),
	})
}

// SampleResponse describes one stored face sample (without the embedding)
type SampleResponse struct {
	ID          int64  `json:"id"`
	SampleIndex int    `json:"sample_index"`
	Model       string `json:"model"`
	Dim         int    `json:"dim"`
	Source      string `json:"source"`
}

// GetSamples lists a person's enrolled face samples
func (h *PeopleHandler) GetSamples(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	person, err := h.people.GetPerson(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	samples, err := h.samples.GetSamples(r.Context(), uid)
	if err != nil {
		log.Printf("get samples for %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to get samples")
		return
	}

	out := make([]SampleResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, SampleResponse{
			ID:          s.ID,
			SampleIndex: s.SampleIndex,
			Model:       s.Model,
			Dim:         s.Dim,
			Source:      s.Source,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_uid": uid,
		"samples":    out,
		"count":      len(out),
	})
}

// DeleteSamples removes all samples for a person
func (h *PeopleHandler) DeleteSamples(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	removed, err := h.samples.DeleteSamplesByPerson(r.Context(), uid)
	if err != nil {
		log.Printf("delete samples for %s: %v", sanitizeForLog(uid), err)
		respondError(w, http.StatusInternalServerError, "failed to delete samples")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"samples_removed": len(removed),
	})
}
