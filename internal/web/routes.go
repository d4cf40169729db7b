package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vkadlec/face-attendance/internal/web/handlers"
	"github.com/vkadlec/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.config, s.sessionManager)
	peopleHandler := handlers.NewPeopleHandler(s.deps.People, s.deps.Samples)
	watchHandler := handlers.NewWatchHandler(s.config, s.manager, s.deps.Identifier, s.deps.Attendance, s.deps.Metrics, nil)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Everything else requires a session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Enrolled people
			r.Get("/people", peopleHandler.List)
			r.Post("/people", peopleHandler.Create)
			r.Get("/people/{uid}", peopleHandler.Get)
			r.Put("/people/{uid}", peopleHandler.Update)
			r.Delete("/people/{uid}", peopleHandler.Delete)
			r.Get("/people/{uid}/samples", peopleHandler.GetSamples)
			r.Delete("/people/{uid}/samples", peopleHandler.DeleteSamples)

			// Watch sessions
			r.Post("/watch", watchHandler.Start)
			r.Get("/watch", watchHandler.List)
			r.Get("/watch/{id}", watchHandler.Status)
			r.Delete("/watch/{id}", watchHandler.Stop)
			r.Get("/watch/{id}/events", watchHandler.Events)
			r.Get("/watch/{id}/snapshot", watchHandler.Snapshot)

			// Attendance records
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/person/{uid}", attendanceHandler.ListByPerson)

			// Config
			r.Get("/config", configHandler.Get)
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a minimal landing page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Face Attendance</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Face Attendance</h1>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
        <p>Start a camera session with <code>POST /api/v1/watch</code></p>
    </div>
</body>
</html>`))
}
