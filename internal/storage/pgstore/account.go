package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

const userColumns = `id::text, username, email, first_name, last_name, role, password_hash, created_at`

func scanUser(row pgx.Row) (account.User, error) {
	var u account.User
	var role, hash string
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&role,
		&hash,
		&u.CreatedAt,
	)
	u.Role = access.Role(role)
	u.PasswordHash = []byte(hash)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u account.User) (account.User, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, first_name, last_name, role, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id::text, created_at`,
		u.Username,
		u.Email,
		u.FirstName,
		u.LastName,
		string(u.Role),
		string(u.PasswordHash),
	).Scan(&u.ID, &u.CreatedAt)
	switch {
	case isUniqueViolation(err, "users_username_key"):
		return account.User{}, apperr.Invalid("invalid input", map[string]string{"username": "username already taken"})
	case isUniqueViolation(err, "users_email_key"):
		return account.User{}, apperr.Invalid("invalid input", map[string]string{"email": "email already registered"})
	case err != nil:
		return account.User{}, mapError(err, "create user")
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (account.User, error) {
	if !validIDs(id) {
		return account.User{}, notFound("user", id)
	}
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id))
	if err != nil {
		return account.User{}, mapError(err, "get user "+id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (account.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
	if err != nil {
		return account.User{}, mapError(err, "get user "+username)
	}
	return u, nil
}
