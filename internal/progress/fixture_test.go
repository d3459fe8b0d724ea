package progress_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/storage/memstore"
)

type fixture struct {
	store      *memstore.Store
	catalog    *catalog.Service
	accounts   *account.Service
	engine     *progress.Engine
	events     *progress.MemoryEventLogger
	cache      *recordingCache
	instructor access.Actor
	student    access.Actor
	admin      access.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()

	store := memstore.New()
	accounts := account.NewService(store)
	f := &fixture{
		store:    store,
		catalog:  catalog.NewService(catalog.ServiceConfig{Store: store}),
		accounts: accounts,
		events:   progress.NewMemoryEventLogger(),
		cache:    newRecordingCache(),
	}
	f.engine = progress.NewEngine(progress.EngineConfig{
		Store:       store,
		Users:       accounts,
		Events:      f.events,
		VerifyCache: f.cache,
	})

	f.instructor = f.register(t, "teacher", "instructor", "Ada", "Lovelace")
	f.student = f.register(t, "learner", "student", "Grace", "Hopper")

	admin, err := accounts.CreateAdmin(ctx, "root", "root@example.com", "supersecret")
	if err != nil {
		t.Fatalf("CreateAdmin() error = %v", err)
	}
	f.admin = admin.Actor()
	return f
}

func (f *fixture) register(t *testing.T, username, role, first, last string) access.Actor {
	t.Helper()
	u, err := f.accounts.Register(t.Context(), account.NewUser{
		Username:        username,
		Email:           username + "@example.com",
		FirstName:       first,
		LastName:        last,
		Role:            role,
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return u.Actor()
}

// course creates a published course with n text lessons.
func (f *fixture) course(t *testing.T, n int) (catalog.Course, []catalog.Lesson) {
	t.Helper()
	ctx := t.Context()

	c, err := f.catalog.CreateCourse(ctx, f.instructor, catalog.NewCourse{Title: "Go Basics", Publish: true})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	lessons := make([]catalog.Lesson, 0, n)
	for i := range n {
		l, err := f.catalog.CreateLesson(ctx, f.instructor, catalog.NewLesson{
			CourseID: c.ID,
			Title:    fmt.Sprintf("Lesson %d", i+1),
		})
		if err != nil {
			t.Fatalf("CreateLesson() error = %v", err)
		}
		lessons = append(lessons, l)
	}
	return c, lessons
}

// quiz attaches the two-question, four-point quiz to a lesson.
func (f *fixture) quiz(t *testing.T, lessonID string, maxAttempts int) (catalog.Quiz, []catalog.Question) {
	t.Helper()
	ctx := t.Context()

	q, err := f.catalog.CreateQuiz(ctx, f.instructor, catalog.NewQuiz{
		LessonID:    lessonID,
		Title:       "Checkpoint",
		MaxAttempts: &maxAttempts,
	})
	if err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}

	one, three := 1, 3
	q1, err := f.catalog.AddQuestion(ctx, f.instructor, catalog.NewQuestion{
		QuizID: q.ID, Type: "mcq", Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: "4", Points: &one,
	})
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	q2, err := f.catalog.AddQuestion(ctx, f.instructor, catalog.NewQuestion{
		QuizID: q.ID, Type: "sa", Text: "Capital of France?", CorrectAnswer: "Paris", Points: &three,
	})
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	return q, []catalog.Question{q1, q2}
}

func answers(questions []catalog.Question, values ...string) []progress.Answer {
	out := make([]progress.Answer, 0, len(values))
	for i, v := range values {
		out = append(out, progress.Answer{QuestionID: questions[i].ID, Answer: v})
	}
	return out
}

func (f *fixture) enroll(t *testing.T, actor access.Actor, courseID string) progress.Enrollment {
	t.Helper()
	enr, err := f.engine.Enroll(t.Context(), actor, courseID)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	return enr
}

func (f *fixture) complete(t *testing.T, lessonID string) progress.CompletionResult {
	t.Helper()
	res, err := f.engine.MarkLessonComplete(t.Context(), f.student, lessonID)
	if err != nil {
		t.Fatalf("MarkLessonComplete(%s) error = %v", lessonID, err)
	}
	return res
}

// recordingCache is an in-process VerifyCache that records revocations.
// beforeAdd, when set, runs ahead of every Add.
type recordingCache struct {
	mu        sync.Mutex
	entries   map[string]progress.VerifyEntry
	revoked   []string
	beforeAdd func()
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]progress.VerifyEntry{}}
}

func (c *recordingCache) Get(_ context.Context, id string) (progress.VerifyEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	return entry, ok
}

func (c *recordingCache) Add(_ context.Context, id string, info progress.CertificateInfo) {
	if c.beforeAdd != nil {
		c.beforeAdd()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		c.entries[id] = progress.VerifyEntry{Info: info}
	}
}

func (c *recordingCache) Revoke(_ context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.entries[id] = progress.VerifyEntry{Revoked: true}
		c.revoked = append(c.revoked, id)
	}
}

func (c *recordingCache) Revoked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.revoked...)
}
