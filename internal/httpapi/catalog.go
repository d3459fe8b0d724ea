package httpapi

import (
	"bytes"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/catalog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	courses, err := s.catalog.ListCourses(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in catalog.NewCourse
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.catalog.CreateCourse(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	c, err := s.catalog.GetCourse(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in catalog.CourseUpdate
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.catalog.UpdateCourse(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePublish(published bool) actorHandler {
	return func(w http.ResponseWriter, r *http.Request, actor access.Actor) {
		c, err := s.catalog.SetPublished(r.Context(), actor, r.PathValue("id"), published)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in catalog.NewLesson
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.catalog.CreateLesson(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in catalog.NewQuiz
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.catalog.CreateQuiz(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var in catalog.NewQuestion
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := s.catalog.AddQuestion(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	a, err := s.reports.CourseAnalytics(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleGradebook buffers the workbook so a late failure can still be
// reported as JSON.
func (s *Server) handleGradebook(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var buf bytes.Buffer
	courseID := r.PathValue("id")
	if err := s.reports.Gradebook(r.Context(), actor, courseID, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="gradebook-`+courseID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
