package report_test

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/report"
	"github.com/p-n-ai/pai-learn/internal/storage/memstore"
)

type world struct {
	reports    *report.Service
	course     catalog.Course
	instructor access.Actor
	student    access.Actor
}

func register(t *testing.T, accounts *account.Service, username, role, first, last string) access.Actor {
	t.Helper()
	u, err := accounts.Register(t.Context(), account.NewUser{
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

// newWorld builds a course where one student fails the quiz once, then
// passes it and finishes the course.
func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := t.Context()

	store := memstore.New()
	accounts := account.NewService(store)
	cat := catalog.NewService(catalog.ServiceConfig{Store: store})
	engine := progress.NewEngine(progress.EngineConfig{Store: store, Users: accounts})

	w := &world{
		reports:    report.NewService(report.ServiceConfig{Store: store, Users: accounts}),
		instructor: register(t, accounts, "teacher", "instructor", "Ada", "Lovelace"),
		student:    register(t, accounts, "learner", "student", "Grace", "Hopper"),
	}

	var err error
	w.course, err = cat.CreateCourse(ctx, w.instructor, catalog.NewCourse{Title: "Go Basics", Publish: true})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	first, err := cat.CreateLesson(ctx, w.instructor, catalog.NewLesson{CourseID: w.course.ID, Title: "Intro"})
	if err != nil {
		t.Fatalf("CreateLesson() error = %v", err)
	}
	second, err := cat.CreateLesson(ctx, w.instructor, catalog.NewLesson{CourseID: w.course.ID, Title: "Types"})
	if err != nil {
		t.Fatalf("CreateLesson() error = %v", err)
	}
	quiz, err := cat.CreateQuiz(ctx, w.instructor, catalog.NewQuiz{LessonID: second.ID, Title: "Types check"})
	if err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}
	q, err := cat.AddQuestion(ctx, w.instructor, catalog.NewQuestion{
		QuizID: quiz.ID, Type: "tf", Text: "int is 64 bits on amd64", CorrectAnswer: "true",
	})
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}

	if _, err := engine.Enroll(ctx, w.student, w.course.ID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if _, err := engine.MarkLessonComplete(ctx, w.student, first.ID); err != nil {
		t.Fatalf("MarkLessonComplete() error = %v", err)
	}
	for _, ans := range []string{"false", "true"} {
		if _, err := engine.SubmitAttempt(ctx, w.student, quiz.ID, []progress.Answer{{QuestionID: q.ID, Answer: ans}}); err != nil {
			t.Fatalf("SubmitAttempt(%s) error = %v", ans, err)
		}
	}
	return w
}

func TestService_CourseAnalytics(t *testing.T) {
	w := newWorld(t)

	a, err := w.reports.CourseAnalytics(t.Context(), w.instructor, w.course.ID)
	if err != nil {
		t.Fatalf("CourseAnalytics() error = %v", err)
	}
	if a.TotalStudents != 1 || a.CompletionRate != 100 {
		t.Errorf("TotalStudents, CompletionRate = %d, %v, want 1, 100", a.TotalStudents, a.CompletionRate)
	}
	if a.Engagement.Active != 1 {
		t.Errorf("Engagement.Active = %d, want 1", a.Engagement.Active)
	}
	if len(a.Quizzes) != 1 {
		t.Fatalf("len(Quizzes) = %d, want 1", len(a.Quizzes))
	}
	if qp := a.Quizzes[0]; qp.Attempts != 2 || qp.PassRate != 50 || qp.AverageScore != 50 {
		t.Errorf("Quizzes[0] = %+v, want 2 attempts, 50%% pass rate, 50 average", qp)
	}
	for _, b := range a.Distribution {
		if b.Label == "100" && b.Count != 1 {
			t.Errorf("Distribution[100] = %d, want 1", b.Count)
		}
	}
}

func TestService_Permissions(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()

	tests := []struct {
		name   string
		actor  access.Actor
		course string
		want   apperr.Kind
	}{
		{"student", w.student, w.course.ID, apperr.PermissionDenied},
		{"other instructor", access.Instructor("someone-else"), w.course.ID, apperr.PermissionDenied},
		{"anonymous", access.Actor{}, w.course.ID, apperr.Unauthenticated},
		{"unknown course", w.instructor, "missing", apperr.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.reports.CourseAnalytics(ctx, tt.actor, tt.course)
			if !apperr.Is(err, tt.want) {
				t.Errorf("CourseAnalytics() error = %v, want kind %v", err, tt.want)
			}
		})
	}

	if _, err := w.reports.CourseAnalytics(ctx, access.Admin("ops"), w.course.ID); err != nil {
		t.Errorf("CourseAnalytics(admin) error = %v", err)
	}
}

func TestService_Gradebook(t *testing.T) {
	w := newWorld(t)

	var buf bytes.Buffer
	if err := w.reports.Gradebook(t.Context(), w.instructor, w.course.ID, &buf); err != nil {
		t.Fatalf("Gradebook() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	name, err := f.GetCellValue("Grades", "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if name != "Grace Hopper" {
		t.Errorf("A2 = %q, want %q", name, "Grace Hopper")
	}
	best, err := f.GetCellValue("Grades", "H2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if best != "100" {
		t.Errorf("H2 = %q, want %q", best, "100")
	}

	err = w.reports.Gradebook(t.Context(), w.student, w.course.ID, &bytes.Buffer{})
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Errorf("Gradebook(student) error = %v, want PermissionDenied", err)
	}
}
