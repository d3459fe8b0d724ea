package report_test

import (
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/report"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBucket(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, "0-25"},
		{25.99, "0-25"},
		{26, "26-50"},
		{50.5, "26-50"},
		{51, "51-75"},
		{75.9, "51-75"},
		{76, "76-99"},
		{99.99, "76-99"},
		{100, "100"},
	}
	for _, tt := range tests {
		if got := report.Bucket(tt.pct); got != tt.want {
			t.Errorf("Bucket(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

// sampleSnapshot is a two-lesson course with a quiz on the second lesson and
// three students: one finished, one halfway and idle, one untouched.
func sampleSnapshot() report.CourseSnapshot {
	done := now.Add(-48 * time.Hour)
	return report.CourseSnapshot{
		Course: catalog.Course{ID: "c1", Title: "Go Basics"},
		Lessons: []catalog.Lesson{
			{ID: "l1", CourseID: "c1", Order: 1, DurationMinutes: 30},
			{ID: "l2", CourseID: "c1", Order: 2, DurationMinutes: 90},
		},
		Quizzes: []catalog.Quiz{{ID: "q1", LessonID: "l2", Title: "Checkpoint", PassingScore: 70}},
		Enrollments: []report.EnrollmentSnapshot{
			{
				Enrollment: progress.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Completed: true, CompletedAt: &done},
				Progress: []progress.LessonProgress{
					{LessonID: "l1", Completed: true, LastAccessed: now.Add(-72 * time.Hour)},
					{LessonID: "l2", Completed: true, LastAccessed: now.Add(-24 * time.Hour)},
				},
				Attempts: []progress.QuizAttempt{
					{QuizID: "q1", Score: 80, Passed: true},
					{QuizID: "q1", Score: 50},
				},
			},
			{
				Enrollment: progress.Enrollment{ID: "e2", StudentID: "s2", CourseID: "c1"},
				Progress: []progress.LessonProgress{
					{LessonID: "l1", Completed: true, LastAccessed: now.Add(-10 * 24 * time.Hour)},
				},
				Attempts: []progress.QuizAttempt{{QuizID: "q1", Score: 40}},
			},
			{
				Enrollment: progress.Enrollment{ID: "e3", StudentID: "s3", CourseID: "c1"},
			},
		},
	}
}

func TestAnalyze(t *testing.T) {
	a := report.Analyze(sampleSnapshot(), now)

	if a.TotalStudents != 3 {
		t.Errorf("TotalStudents = %d, want 3", a.TotalStudents)
	}
	if a.CompletionRate != 33.33 {
		t.Errorf("CompletionRate = %v, want 33.33", a.CompletionRate)
	}
	if a.RecentCompletions != 1 {
		t.Errorf("RecentCompletions = %d, want 1", a.RecentCompletions)
	}

	wantDist := map[string]int{"0-25": 1, "26-50": 1, "51-75": 0, "76-99": 0, "100": 1}
	if len(a.Distribution) != 5 {
		t.Fatalf("len(Distribution) = %d, want 5", len(a.Distribution))
	}
	for _, b := range a.Distribution {
		if b.Count != wantDist[b.Label] {
			t.Errorf("Distribution[%s] = %d, want %d", b.Label, b.Count, wantDist[b.Label])
		}
	}

	wantEng := report.Engagement{Active: 1, Inactive: 2, ActivityRate: 33.33}
	if a.Engagement != wantEng {
		t.Errorf("Engagement = %+v, want %+v", a.Engagement, wantEng)
	}

	wantTime := report.TimeAnalysis{TotalHours: 2.5, AverageHours: 0.83, AverageLessonMinutes: 25}
	if a.Time != wantTime {
		t.Errorf("Time = %+v, want %+v", a.Time, wantTime)
	}

	if len(a.Quizzes) != 1 {
		t.Fatalf("len(Quizzes) = %d, want 1", len(a.Quizzes))
	}
	want := report.QuizPerformance{
		QuizID: "q1", Title: "Checkpoint", PassingScore: 70,
		Attempts: 3, Students: 2, AverageScore: 56.67, PassRate: 33.33,
	}
	if a.Quizzes[0] != want {
		t.Errorf("Quizzes[0] = %+v, want %+v", a.Quizzes[0], want)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	a := report.Analyze(report.CourseSnapshot{Course: catalog.Course{ID: "c1"}}, now)
	if a.TotalStudents != 0 || a.CompletionRate != 0 || a.Engagement.ActivityRate != 0 {
		t.Errorf("Analyze(empty) = %+v, want zero rates", a)
	}
	if len(a.Distribution) != 5 {
		t.Errorf("len(Distribution) = %d, want 5", len(a.Distribution))
	}
	if a.Time != (report.TimeAnalysis{}) {
		t.Errorf("Time = %+v, want zero", a.Time)
	}
}

func TestBestScores(t *testing.T) {
	got := report.BestScores([]progress.QuizAttempt{
		{QuizID: "a", Score: 10},
		{QuizID: "a", Score: 90},
		{QuizID: "b", Score: 0},
	})
	if len(got) != 2 || got["a"] != 90 || got["b"] != 0 {
		t.Errorf("BestScores() = %v, want map[a:90 b:0]", got)
	}
}
