package memstore

import (
	"context"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

func (s *Store) CreateUser(_ context.Context, u account.User) (account.User, error) {
	err := s.update(func(st *state) error {
		fields := map[string]string{}
		for _, other := range st.users {
			if strings.EqualFold(other.Username, u.Username) {
				fields["username"] = "username already taken"
			}
			if strings.EqualFold(other.Email, u.Email) {
				fields["email"] = "email already registered"
			}
		}
		if len(fields) > 0 {
			return apperr.Invalid("invalid input", fields)
		}
		if u.ID == "" {
			u.ID = newID()
		}
		u.CreatedAt = s.now()
		st.users[u.ID] = u
		return nil
	})
	return u, err
}

func (s *Store) GetUser(_ context.Context, id string) (account.User, error) {
	st := s.read().st
	u, ok := st.users[id]
	if !ok {
		return account.User{}, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (account.User, error) {
	st := s.read().st
	for _, u := range st.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return account.User{}, apperr.New(apperr.NotFound, "user %s not found", username)
}
