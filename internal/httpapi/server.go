// Package httpapi exposes the learning services over JSON HTTP.
//
// Callers are identified by the X-User-ID header set by the upstream
// gateway; the role is resolved from the account store on every request.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/report"
)

// UserHeader carries the authenticated user id.
const UserHeader = "X-User-ID"

// Config holds the services behind the API.
type Config struct {
	Accounts *account.Service
	Catalog  *catalog.Service
	Progress *progress.Engine
	Reports  *report.Service
}

// Server routes API requests to the learning services.
type Server struct {
	accounts *account.Service
	catalog  *catalog.Service
	progress *progress.Engine
	reports  *report.Service
	mux      *http.ServeMux
}

// New creates the API server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		accounts: cfg.Accounts,
		catalog:  cfg.Catalog,
		progress: cfg.Progress,
		reports:  cfg.Reports,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("POST /api/register", s.handleRegister)
	s.handle("POST /api/login", s.handleLogin)
	s.handle("GET /api/me", s.handleMe)

	s.handle("GET /api/courses", s.handleListCourses)
	s.handle("POST /api/courses", s.handleCreateCourse)
	s.handle("GET /api/courses/{id}", s.handleGetCourse)
	s.handle("PATCH /api/courses/{id}", s.handleUpdateCourse)
	s.handle("POST /api/courses/{id}/publish", s.handlePublish(true))
	s.handle("POST /api/courses/{id}/unpublish", s.handlePublish(false))
	s.handle("POST /api/lessons", s.handleCreateLesson)
	s.handle("POST /api/quizzes", s.handleCreateQuiz)
	s.handle("POST /api/questions", s.handleAddQuestion)

	s.handle("POST /api/courses/{id}/enroll", s.handleEnroll)
	s.handle("POST /api/courses/{id}/unenroll", s.handleUnenroll)
	s.handle("GET /api/enrollments", s.handleListEnrollments)
	s.handle("GET /api/enrollments/{id}/progress", s.handleEnrollmentProgress)
	s.handle("POST /api/enrollments/{id}/check-completion", s.handleCheckCompletion)
	s.handle("GET /api/lessons/{id}", s.handleViewLesson)
	s.handle("POST /api/lessons/{id}/complete", s.handleCompleteLesson)
	s.handle("POST /api/lessons/{id}/reset", s.handleResetLesson)
	s.handle("GET /api/quizzes/{id}", s.handleViewQuiz)
	s.handle("POST /api/quizzes/{id}/attempts", s.handleSubmitAttempt)
	s.handle("GET /api/quizzes/{id}/attempts", s.handleAttemptHistory)

	s.handle("POST /api/enrollments/{id}/certificate", s.handleIssueCertificate)
	s.handle("POST /api/certificates/regenerate", s.handleRegenerateCertificate)
	s.handle("GET /api/certificates", s.handleListCertificates)
	s.handle("GET /api/certificates/verify/{certificate_id}", s.handleVerifyCertificate)

	s.handle("GET /api/courses/{id}/analytics", s.handleAnalytics)
	s.handle("GET /api/courses/{id}/gradebook.xlsx", s.handleGradebook)
}

// actorHandler is an API handler that receives the resolved caller.
type actorHandler func(w http.ResponseWriter, r *http.Request, actor access.Actor)

// handle registers h behind caller resolution. A request without the user
// header runs as the anonymous actor; the services reject it where a role
// is required.
func (s *Server) handle(pattern string, h actorHandler) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		var actor access.Actor
		if id := r.Header.Get(UserHeader); id != "" {
			a, err := s.accounts.ResolveActor(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			actor = a
		}
		h(w, r, actor)
	})
}

// ServeHTTP logs each request and dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	slog.Info("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", time.Since(start).Milliseconds(),
		"user_id", r.Header.Get(UserHeader),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// ReadyHandler reports 200 when every check passes and 503 otherwise.
func ReadyHandler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				slog.Warn("readiness check failed", "check", c.Name, "error", err)
				failed[c.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
