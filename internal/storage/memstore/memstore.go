// Package memstore is an in-memory implementation of the catalog, account
// and progress stores, used for tests and single-process development.
//
// Transactions are serialised by one store-wide mutex. Each transaction
// works on a copy of the state that replaces the live state only when the
// transaction function succeeds.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

type state struct {
	users        map[string]account.User
	courses      map[string]catalog.Course
	lessons      map[string]catalog.Lesson
	quizzes      map[string]catalog.Quiz
	questions    map[string]catalog.Question
	enrollments  map[string]progress.Enrollment
	progress     map[string]progress.LessonProgress
	attempts     map[string]progress.QuizAttempt
	certificates map[string]progress.Certificate
}

func newState() *state {
	return &state{
		users:        make(map[string]account.User),
		courses:      make(map[string]catalog.Course),
		lessons:      make(map[string]catalog.Lesson),
		quizzes:      make(map[string]catalog.Quiz),
		questions:    make(map[string]catalog.Question),
		enrollments:  make(map[string]progress.Enrollment),
		progress:     make(map[string]progress.LessonProgress),
		attempts:     make(map[string]progress.QuizAttempt),
		certificates: make(map[string]progress.Certificate),
	}
}

// clone copies every table. Record values are treated as immutable, so a
// shallow copy of each map is enough.
func (st *state) clone() *state {
	return &state{
		users:        maps.Clone(st.users),
		courses:      maps.Clone(st.courses),
		lessons:      maps.Clone(st.lessons),
		quizzes:      maps.Clone(st.quizzes),
		questions:    maps.Clone(st.questions),
		enrollments:  maps.Clone(st.enrollments),
		progress:     maps.Clone(st.progress),
		attempts:     maps.Clone(st.attempts),
		certificates: maps.Clone(st.certificates),
	}
}

// Store is the in-memory store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var (
	_ catalog.Store  = (*Store)(nil)
	_ account.Store  = (*Store)(nil)
	_ progress.Store = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// InTx runs fn against a private copy of the state and publishes the copy if
// fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx progress.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{view: view{st: work}, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// update applies fn to a copy of the state and publishes it on success.
func (s *Store) update(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() view {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{st: s.st}
}

func newID() string {
	return uuid.NewString()
}
