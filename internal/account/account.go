// Package account manages platform users: registration, password checks and
// directory lookups.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
)

// User is a registered platform user.
type User struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Role         access.Role `json:"role"`
	PasswordHash []byte      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// FullName returns "First Last", or the username when both are empty.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// SetPassword hashes and stores pwd.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether pwd matches the stored hash.
func (u User) CheckPassword(pwd string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd)) == nil
}

// Actor returns the access identity of the user.
func (u User) Actor() access.Actor {
	return access.Actor{UserID: u.ID, Role: u.Role}
}

// Store persists users. CreateUser reports a taken username or email as an
// apperr validation error naming the field.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
}

// NewUser is the registration input.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=3,max=150,alphanum"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Role            string `json:"role" validate:"omitempty,oneof=student instructor"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// Service implements registration and authentication.
type Service struct {
	store Store
}

// NewService creates an account service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates a student or instructor account.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}

	role := access.RoleStudent
	if in.Role != "" {
		role = access.Role(in.Role)
	}
	u := User{
		Username:  strings.ToLower(in.Username),
		Email:     strings.ToLower(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      role,
	}
	if err := u.SetPassword(in.Password); err != nil {
		return User{}, err
	}

	u, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}

	slog.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// CreateAdmin creates an admin account. It is meant for operators, not the
// public registration endpoint.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (User, error) {
	u := User{
		Username: strings.ToLower(username),
		Email:    strings.ToLower(email),
		Role:     access.RoleAdmin,
	}
	if err := u.SetPassword(password); err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, u)
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.ToLower(username))
	if apperr.Is(err, apperr.NotFound) {
		return User{}, apperr.New(apperr.Unauthenticated, "invalid username or password")
	}
	if err != nil {
		return User{}, err
	}
	if !u.CheckPassword(password) {
		return User{}, apperr.New(apperr.Unauthenticated, "invalid username or password")
	}
	return u, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}

// ResolveActor maps a user id to the caller identity. Unknown users are
// unauthenticated.
func (s *Service) ResolveActor(ctx context.Context, userID string) (access.Actor, error) {
	if userID == "" {
		return access.Actor{}, apperr.New(apperr.Unauthenticated, "no authenticated user")
	}
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return access.Actor{}, apperr.New(apperr.Unauthenticated, "unknown user")
	}
	if err != nil {
		return access.Actor{}, err
	}
	return u.Actor(), nil
}

// DisplayName returns the user's full name.
func (s *Service) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.FullName(), nil
}
