package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/storage/memstore"
)

const goCourseYAML = `title: Go Basics
instructor_id: inst-1
description: An introduction to Go.
level: beginner
price: 4900
published: true
lessons:
  - title: Hello
    content: Write your first program.
    duration_minutes: 10
  - title: Types
    content_type: video
    video_url: https://example.com/types.mp4
    quiz:
      title: Types check
      passing_score: 60
      questions:
        - type: mcq
          text: Which is a signed integer type?
          options: [uint8, int32]
          correct_answer: int32
        - type: tf
          text: A string is mutable.
          correct_answer: "false"
          points: 2
`

func setupCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	courses := filepath.Join(dir, "courses", "go")
	if err := os.MkdirAll(courses, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"basics.yaml":  goCourseYAML,
		"broken.yaml":  "title: [unclosed",
		"invalid.yaml": "title: No instructor\nlessons: []\n",
		"notes.txt":    "not a course",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(courses, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newLoader(t *testing.T) (*catalog.Loader, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	loader, err := catalog.NewLoader(catalog.NewService(catalog.ServiceConfig{Store: store}))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return loader, store
}

func TestLoader_ImportDir(t *testing.T) {
	dir := setupCatalog(t)
	loader, store := newLoader(t)
	ctx := t.Context()

	imported, err := loader.ImportDir(ctx, dir)
	if err != nil {
		t.Fatalf("ImportDir() error = %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("ImportDir() imported %d courses, want 1", len(imported))
	}
	course := imported[0]
	if course.Title != "Go Basics" || course.InstructorID != "inst-1" || !course.IsPublished || course.Price != 4900 {
		t.Errorf("course = %+v", course)
	}

	lessons, err := store.ListLessons(ctx, course.ID)
	if err != nil {
		t.Fatalf("ListLessons() error = %v", err)
	}
	if len(lessons) != 2 || lessons[1].ContentType != catalog.ContentVideo {
		t.Fatalf("lessons = %+v", lessons)
	}

	quiz, ok, err := store.FindQuizByLesson(ctx, lessons[1].ID)
	if err != nil || !ok {
		t.Fatalf("FindQuizByLesson() = %v, %v", ok, err)
	}
	if quiz.PassingScore != 60 || quiz.MaxAttempts != 3 || !quiz.IsActive {
		t.Errorf("quiz = %+v", quiz)
	}
	questions, err := store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	if len(questions) != 2 || questions[0].Points != 1 || questions[1].Points != 2 {
		t.Errorf("questions = %+v", questions)
	}
}

func TestLoader_ImportDir_Idempotent(t *testing.T) {
	dir := setupCatalog(t)
	loader, store := newLoader(t)
	ctx := t.Context()

	if _, err := loader.ImportDir(ctx, dir); err != nil {
		t.Fatalf("ImportDir() error = %v", err)
	}
	again, err := loader.ImportDir(ctx, dir)
	if err != nil {
		t.Fatalf("second ImportDir() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second ImportDir() imported %d, want 0", len(again))
	}

	courses, err := store.ListCourses(ctx, catalog.CourseFilter{})
	if err != nil {
		t.Fatalf("ListCourses() error = %v", err)
	}
	if len(courses) != 1 {
		t.Errorf("len(courses) = %d, want 1", len(courses))
	}
}

func TestLoader_Parse(t *testing.T) {
	loader, _ := newLoader(t)

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "valid", doc: goCourseYAML},
		{name: "empty", doc: "", wantErr: "empty document"},
		{name: "missing instructor", doc: "title: x\nlessons: []\n", wantErr: "instructor_id"},
		{name: "unknown field", doc: "title: x\ninstructor_id: i\nlessons: []\nrating: 5\n", wantErr: "rating"},
		{name: "bad question type", doc: `title: x
instructor_id: i
lessons:
  - title: l
    quiz:
      title: q
      questions:
        - type: essay
          text: t
          correct_answer: a
`, wantErr: "does not match schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := loader.Parse([]byte(tt.doc))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				if len(cf.Lessons) != 2 || cf.Lessons[1].Quiz == nil || len(cf.Lessons[1].Quiz.Questions) != 2 {
					t.Errorf("Parse() = %+v", cf)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_ImportFile_RejectsBadAnswerKey(t *testing.T) {
	loader, _ := newLoader(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := `title: Bad
instructor_id: inst-1
lessons:
  - title: l
    quiz:
      title: q
      questions:
        - type: mcq
          text: t
          options: [a, b]
          correct_answer: c
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, created, err := loader.ImportFile(t.Context(), path)
	if err == nil || created {
		t.Fatalf("ImportFile() = created %v, err %v; want error", created, err)
	}
	if !strings.Contains(err.Error(), "lesson 1 question 1") {
		t.Errorf("error = %v, want position in message", err)
	}
}
