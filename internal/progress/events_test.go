package progress_test

import (
	"testing"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := progress.NewMemoryEventLogger()

	err := logger.LogEvent(progress.Event{
		EnrollmentID: "enr-1",
		UserID:       "user-1",
		CourseID:     "course-1",
		EventType:    progress.EventEnrolled,
		Data: map[string]any{
			"lessons": 3,
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != progress.EventEnrolled {
		t.Errorf("EventType = %q, want %s", events[0].EventType, progress.EventEnrolled)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if got := logger.Count(progress.EventEnrolled); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := progress.NewMemoryEventLogger()
	if err := logger.LogEvent(progress.Event{UserID: "user-1"}); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := progress.NewPostgresEventLogger(nil)

	err := logger.LogEvent(progress.Event{
		UserID:    "user-1",
		EventType: progress.EventQuizSubmitted,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestEngineEmitsEventsAfterCommit(t *testing.T) {
	f := newFixture(t)
	course, lessons := f.course(t, 2)
	f.enroll(t, f.student, course.ID)

	// A failed transition must not leak events.
	if _, err := f.engine.Enroll(t.Context(), f.student, course.ID); err == nil {
		t.Fatal("expected AlreadyEnrolled")
	}
	f.complete(t, lessons[0].ID)
	f.complete(t, lessons[1].ID)

	want := map[string]int{
		progress.EventEnrolled:          1,
		progress.EventLessonCompleted:   2,
		progress.EventCourseCompleted:   1,
		progress.EventCertificateIssued: 1,
	}
	for typ, n := range want {
		if got := f.events.Count(typ); got != n {
			t.Errorf("Count(%s) = %d, want %d", typ, got, n)
		}
	}
	if got := len(f.events.Events()); got != 5 {
		t.Errorf("len(Events()) = %d, want 5", got)
	}
}
