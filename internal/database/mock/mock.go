// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/facematch"
)

// MockPersonWriter is a mock implementation of database.PersonWriter
type MockPersonWriter struct {
	mu     sync.RWMutex
	people map[string]*database.StoredPerson

	// Error injection
	GetError    error
	ListError   error
	CountError  error
	SaveError   error
	DeleteError error
}

// NewMockPersonWriter creates a new mock person writer
func NewMockPersonWriter() *MockPersonWriter {
	return &MockPersonWriter{
		people: make(map[string]*database.StoredPerson),
	}
}

// AddPerson adds a person to the mock store
func (m *MockPersonWriter) AddPerson(p database.StoredPerson) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people[p.UID] = &p
}

// GetPerson retrieves a person by UID
func (m *MockPersonWriter) GetPerson(ctx context.Context, uid string) (*database.StoredPerson, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.people[uid], nil
}

// GetPersonByName retrieves a person by normalized name
func (m *MockPersonWriter) GetPersonByName(ctx context.Context, name string) (*database.StoredPerson, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := facematch.NormalizePersonName(name)
	for _, p := range m.people {
		if facematch.NormalizePersonName(p.Name) == want {
			return p, nil
		}
	}
	return nil, nil
}

// ListPeople returns all people sorted by name
func (m *MockPersonWriter) ListPeople(ctx context.Context) ([]database.StoredPerson, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	people := make([]database.StoredPerson, 0, len(m.people))
	for _, p := range m.people {
		people = append(people, *p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// CountPeople returns the number of people
func (m *MockPersonWriter) CountPeople(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.people), nil
}

// SavePerson inserts or updates a person
func (m *MockPersonWriter) SavePerson(ctx context.Context, person *database.StoredPerson) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *person
	m.people[p.UID] = &p
	return nil
}

// DeletePerson removes a person
func (m *MockPersonWriter) DeletePerson(ctx context.Context, uid string) ([]int64, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.people, uid)
	return nil, nil
}

// MockSampleWriter is a mock implementation of database.SampleWriter
type MockSampleWriter struct {
	mu      sync.RWMutex
	samples []database.StoredSample
	nextID  int64

	// Error injection
	GetError         error
	CountError       error
	FindSimilarError error
	SaveError        error
	DeleteError      error
}

// NewMockSampleWriter creates a new mock sample writer
func NewMockSampleWriter() *MockSampleWriter {
	return &MockSampleWriter{nextID: 1}
}

// AddSample adds a sample to the mock store
func (m *MockSampleWriter) AddSample(s database.StoredSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.nextID
		m.nextID++
	}
	m.samples = append(m.samples, s)
}

// GetSamples retrieves all samples for a person
func (m *MockSampleWriter) GetSamples(ctx context.Context, personUID string) ([]database.StoredSample, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredSample
	for _, s := range m.samples {
		if s.PersonUID == personUID {
			out = append(out, s)
		}
	}
	return out, nil
}

// CountSamples returns the total number of samples
func (m *MockSampleWriter) CountSamples(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples), nil
}

// FindSimilarWithDistance finds samples by cosine distance, nearest first
func (m *MockSampleWriter) FindSimilarWithDistance(ctx context.Context, embedding []float32, limit int, maxDistance float64) ([]database.StoredSample, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		sample   database.StoredSample
		distance float64
	}
	var matches []scored
	for _, s := range m.samples {
		d := database.CosineDistance(embedding, s.Embedding)
		if d < maxDistance {
			matches = append(matches, scored{s, d})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]database.StoredSample, len(matches))
	distances := make([]float64, len(matches))
	for i, mt := range matches {
		results[i] = mt.sample
		distances[i] = mt.distance
	}
	return results, distances, nil
}

// SaveSamples appends samples for a person
func (m *MockSampleWriter) SaveSamples(ctx context.Context, personUID string, samples []database.StoredSample) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := 0
	for _, s := range m.samples {
		if s.PersonUID == personUID && s.SampleIndex >= idx {
			idx = s.SampleIndex + 1
		}
	}
	for _, s := range samples {
		s.PersonUID = personUID
		s.SampleIndex = idx
		s.ID = m.nextID
		m.nextID++
		idx++
		m.samples = append(m.samples, s)
	}
	return nil
}

// DeleteSamplesByPerson removes all samples for a person
func (m *MockSampleWriter) DeleteSamplesByPerson(ctx context.Context, personUID string) ([]int64, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []int64
	var kept []database.StoredSample
	for _, s := range m.samples {
		if s.PersonUID == personUID {
			removed = append(removed, s.ID)
		} else {
			kept = append(kept, s)
		}
	}
	m.samples = kept
	return removed, nil
}

// MockAttendanceWriter is a mock implementation of database.AttendanceWriter
type MockAttendanceWriter struct {
	mu     sync.RWMutex
	marks  []database.AttendanceRecord
	nextID int64

	// Error injection
	ListError error
	LastError error
	SaveError error
}

// NewMockAttendanceWriter creates a new mock attendance writer
func NewMockAttendanceWriter() *MockAttendanceWriter {
	return &MockAttendanceWriter{nextID: 1}
}

// ListMarks returns marks within [from, to), newest first
func (m *MockAttendanceWriter) ListMarks(ctx context.Context, from, to time.Time) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.AttendanceRecord
	for _, rec := range m.marks {
		if !rec.MarkedAt.Before(from) && rec.MarkedAt.Before(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.After(out[j].MarkedAt) })
	return out, nil
}

// ListMarksByPerson returns all marks for a person, newest first
func (m *MockAttendanceWriter) ListMarksByPerson(ctx context.Context, personUID string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.AttendanceRecord
	for _, rec := range m.marks {
		if rec.PersonUID == personUID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.After(out[j].MarkedAt) })
	return out, nil
}

// LastMark returns the most recent mark for a person
func (m *MockAttendanceWriter) LastMark(ctx context.Context, personUID string) (*database.AttendanceRecord, error) {
	if m.LastError != nil {
		return nil, m.LastError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *database.AttendanceRecord
	for i := range m.marks {
		rec := m.marks[i]
		if rec.PersonUID != personUID {
			continue
		}
		if last == nil || rec.MarkedAt.After(last.MarkedAt) {
			last = &rec
		}
	}
	return last, nil
}

// SaveMark stores one attendance mark
func (m *MockAttendanceWriter) SaveMark(ctx context.Context, rec *database.AttendanceRecord) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now()
	}
	rec.ID = m.nextID
	m.nextID++
	m.marks = append(m.marks, *rec)
	return nil
}

// Marks returns a copy of all stored marks, oldest first
func (m *MockAttendanceWriter) Marks() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceRecord, len(m.marks))
	copy(out, m.marks)
	return out
}
