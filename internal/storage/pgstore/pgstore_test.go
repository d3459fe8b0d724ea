package pgstore_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/storage/pgstore"
)

func newStore(t *testing.T) *pgstore.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learn"),
		postgres.WithUsername("learn"),
		postgres.WithPassword("learn"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, dsn, 10, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	// Applying the schema twice must be harmless.
	require.NoError(t, db.Migrate(ctx))

	store, err := pgstore.New(db.Pool)
	require.NoError(t, err)
	return store
}

type world struct {
	store      *pgstore.Store
	accounts   *account.Service
	catalog    *catalog.Service
	engine     *progress.Engine
	instructor access.Actor
	student    access.Actor
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := newStore(t)
	w := &world{
		store:    store,
		accounts: account.NewService(store),
		catalog:  catalog.NewService(catalog.ServiceConfig{Store: store}),
	}
	w.engine = progress.NewEngine(progress.EngineConfig{Store: store, Users: w.accounts})
	w.instructor = w.register(t, "teacher", "instructor")
	w.student = w.register(t, "learner", "student")
	return w
}

func (w *world) register(t *testing.T, username, role string) access.Actor {
	t.Helper()
	u, err := w.accounts.Register(t.Context(), account.NewUser{
		Username:        username,
		Email:           username + "@example.com",
		FirstName:       username,
		Role:            role,
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	require.NoError(t, err)
	return u.Actor()
}

func TestPostgres_FullCourseFlow(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()

	course, err := w.catalog.CreateCourse(ctx, w.instructor, catalog.NewCourse{Title: "Databases", Publish: true})
	require.NoError(t, err)
	first, err := w.catalog.CreateLesson(ctx, w.instructor, catalog.NewLesson{CourseID: course.ID, Title: "Tables"})
	require.NoError(t, err)
	second, err := w.catalog.CreateLesson(ctx, w.instructor, catalog.NewLesson{CourseID: course.ID, Title: "Joins"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, second.Order)

	quiz, err := w.catalog.CreateQuiz(ctx, w.instructor, catalog.NewQuiz{LessonID: second.ID, Title: "Joins check"})
	require.NoError(t, err)
	_, err = w.catalog.CreateQuiz(ctx, w.instructor, catalog.NewQuiz{LessonID: second.ID, Title: "Again"})
	assert.True(t, apperr.Is(err, apperr.Validation), "duplicate quiz error = %v", err)

	q, err := w.catalog.AddQuestion(ctx, w.instructor, catalog.NewQuestion{
		QuizID: quiz.ID, Type: "mcq", Text: "Which join keeps unmatched left rows?",
		Options: []string{"INNER", "LEFT"}, CorrectAnswer: "LEFT",
	})
	require.NoError(t, err)
	questions, err := w.store.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, []string{"INNER", "LEFT"}, questions[0].Options)

	enr, err := w.engine.Enroll(ctx, w.student, course.ID)
	require.NoError(t, err)
	_, err = w.engine.Enroll(ctx, w.student, course.ID)
	assert.True(t, apperr.Is(err, apperr.AlreadyEnrolled), "second enroll error = %v", err)

	_, err = w.engine.MarkLessonComplete(ctx, w.student, first.ID)
	require.NoError(t, err)
	_, err = w.engine.MarkLessonComplete(ctx, w.student, second.ID)
	assert.True(t, apperr.Is(err, apperr.QuizRequired), "gated lesson error = %v", err)

	failed, err := w.engine.SubmitAttempt(ctx, w.student, quiz.ID, []progress.Answer{{QuestionID: q.ID, Answer: "inner"}})
	require.NoError(t, err)
	assert.False(t, failed.Attempt.Passed)
	assert.Equal(t, 0.0, failed.Attempt.Score)

	passed, err := w.engine.SubmitAttempt(ctx, w.student, quiz.ID, []progress.Answer{{QuestionID: q.ID, Answer: " left "}})
	require.NoError(t, err)
	assert.True(t, passed.Attempt.Passed)
	assert.Equal(t, 100.0, passed.Attempt.Score)
	assert.True(t, passed.CourseCompleted)
	require.NotNil(t, passed.Certificate)

	info, err := w.engine.VerifyCertificate(ctx, passed.Certificate.CertificateID)
	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.Equal(t, "Databases", info.CourseTitle)
	assert.Equal(t, "learner", info.StudentName)

	report, err := w.engine.EnrollmentProgress(ctx, w.student, enr.ID)
	require.NoError(t, err)
	assert.True(t, report.Enrollment.Completed)
	assert.Len(t, report.Attempts, 2)
	assert.Len(t, report.Attempts[1].Results, 1)

	regen, err := w.engine.RegenerateCertificate(ctx, w.student, course.ID)
	require.NoError(t, err)
	assert.NotEqual(t, passed.Certificate.CertificateID, regen.CertificateID)
	_, err = w.engine.VerifyCertificate(ctx, passed.Certificate.CertificateID)
	assert.True(t, apperr.Is(err, apperr.NotFound), "old certificate error = %v", err)

	_, err = w.engine.ResetLessonProgress(ctx, w.student, first.ID)
	require.NoError(t, err)
	_, err = w.engine.VerifyCertificate(ctx, regen.CertificateID)
	assert.True(t, apperr.Is(err, apperr.NotFound), "revoked certificate error = %v", err)

	require.NoError(t, w.engine.Unenroll(ctx, w.student, course.ID))
	again, err := w.engine.Enroll(ctx, w.student, course.ID)
	require.NoError(t, err)
	history, err := w.engine.AttemptHistory(ctx, w.student, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, history.Attempts)
	assert.False(t, again.Completed)
}

func TestPostgres_ConcurrentSubmissionsRespectMaxAttempts(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()

	course, err := w.catalog.CreateCourse(ctx, w.instructor, catalog.NewCourse{Title: "Race", Publish: true})
	require.NoError(t, err)
	lesson, err := w.catalog.CreateLesson(ctx, w.instructor, catalog.NewLesson{CourseID: course.ID, Title: "Only"})
	require.NoError(t, err)
	quiz, err := w.catalog.CreateQuiz(ctx, w.instructor, catalog.NewQuiz{LessonID: lesson.ID, Title: "Quiz"})
	require.NoError(t, err)
	q, err := w.catalog.AddQuestion(ctx, w.instructor, catalog.NewQuestion{QuizID: quiz.ID, Type: "tf", Text: "1 = 2", CorrectAnswer: "false"})
	require.NoError(t, err)
	_, err = w.engine.Enroll(ctx, w.student, course.ID)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, exhausted int
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.engine.SubmitAttempt(ctx, w.student, quiz.ID, []progress.Answer{{QuestionID: q.ID, Answer: "true"}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.AttemptsExhausted):
				exhausted++
			default:
				t.Errorf("SubmitAttempt() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, quiz.MaxAttempts, succeeded)
	assert.Equal(t, workers-quiz.MaxAttempts, exhausted)
}

func TestPostgres_ConcurrentEnrollCreatesOneRow(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()

	course, err := w.catalog.CreateCourse(ctx, w.instructor, catalog.NewCourse{Title: "Popular", Publish: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enr, err := w.engine.Enroll(ctx, w.student, course.ID)
			if err != nil && !apperr.Is(err, apperr.AlreadyEnrolled) {
				t.Errorf("Enroll() error = %v", err)
			}
			ids[i] = enr.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := w.engine.ListEnrollments(ctx, access.Admin("ops"))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPostgres_AccountsAndLookups(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()

	_, err := w.accounts.Register(ctx, account.NewUser{
		Username: "LEARNER", Email: "other@example.com", Password: "password123", PasswordConfirm: "password123",
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.NotEmpty(t, ae.Fields["username"])

	u, err := w.accounts.Authenticate(ctx, "Learner", "password123")
	require.NoError(t, err)
	assert.Equal(t, w.student.UserID, u.ID)

	_, err = w.accounts.ResolveActor(ctx, "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated), "ResolveActor() error = %v", err)
	_, err = w.store.GetCourse(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperr.Is(err, apperr.NotFound), "GetCourse() error = %v", err)
}
