package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// handleEnroll answers 201 for a new enrollment and 200 with the existing
// one when the student is already enrolled.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	enr, err := s.progress.Enroll(r.Context(), actor, r.PathValue("id"))
	switch {
	case apperr.Is(err, apperr.AlreadyEnrolled):
		writeJSON(w, http.StatusOK, map[string]any{
			"enrollment": enr,
			"message":    "already enrolled in this course",
		})
	case err != nil:
		writeError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, map[string]any{"enrollment": enr})
	}
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := s.progress.Unenroll(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unenrolled"})
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	enrollments, err := s.progress.ListEnrollments(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollments": enrollments})
}

func (s *Server) handleEnrollmentProgress(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	rep, err := s.progress.EnrollmentProgress(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleCheckCompletion(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	sum, err := s.progress.CheckCourseCompletion(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleViewLesson(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	view, err := s.progress.ViewLesson(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	res, err := s.progress.MarkLessonComplete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResetLesson(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	p, err := s.progress.ResetLessonProgress(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleViewQuiz(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	view, err := s.progress.ViewQuiz(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitRequest struct {
	Answers []progress.Answer `json:"answers"`
}

func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in submitRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.progress.SubmitAttempt(r.Context(), actor, r.PathValue("id"), in.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleAttemptHistory(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	h, err := s.progress.AttemptHistory(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	c, err := s.progress.IssueCertificate(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type regenerateRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

func (s *Server) handleRegenerateCertificate(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in regenerateRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.progress.RegenerateCertificate(r.Context(), actor, in.CourseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	certs, err := s.progress.ListCertificates(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": certs})
}

func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	info, err := s.progress.VerifyCertificate(r.Context(), r.PathValue("certificate_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
