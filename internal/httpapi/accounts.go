package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	var in account.NewUser
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// handleLogin verifies credentials and returns the user. Token issuance
// belongs to the gateway in front of this service.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.accounts.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := actor.Require(access.RoleStudent, access.RoleInstructor, access.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.accounts.GetUser(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
