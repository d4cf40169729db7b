package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session, err := sm.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == "" {
		t.Fatal("Expected session ID")
	}

	got := sm.GetSession(session.ID)
	if got == nil {
		t.Fatal("Expected session, got nil")
	}

	sm.DeleteSession(session.ID)
	if sm.GetSession(session.ID) != nil {
		t.Error("Expected nil after delete")
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session, _ := sm.CreateSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if sm.GetSession(session.ID) != nil {
		t.Error("Expected expired session to be rejected")
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session, _ := sm.CreateSession()

	rec := httptest.NewRecorder()
	sm.SetSessionCookie(rec, session)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	got := sm.GetSessionFromRequest(req)
	if got == nil || got.ID != session.ID {
		t.Error("Expected session from signed cookie")
	}
}

func TestTamperedCookieRejected(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session, _ := sm.CreateSession()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  sessionCookieName,
		Value: session.ID + ".forged-signature",
	})

	if sm.GetSessionFromRequest(req) != nil {
		t.Error("Expected tampered cookie to be rejected")
	}
}

func TestBearerTokenAuth(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	session, _ := sm.CreateSession()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)

	got := sm.GetSessionFromRequest(req)
	if got == nil || got.ID != session.ID {
		t.Error("Expected session from bearer token")
	}
}

func TestRequireAuth(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	defer sm.Stop()

	handler := RequireAuth(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionFromContext(r.Context()) == nil {
			t.Error("Expected session in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	// No session.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}

	// Valid session.
	session, _ := sm.CreateSession()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
