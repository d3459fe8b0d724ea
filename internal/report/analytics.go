// Package report aggregates course-level analytics and exports gradebooks
// for instructors.
package report

import (
	"math"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

const (
	activeWindow     = 7 * 24 * time.Hour
	recentCompletion = 30 * 24 * time.Hour
)

// Progress buckets, in display order.
var bucketLabels = []string{"0-25", "26-50", "51-75", "76-99", "100"}

// Bucket returns the progress bucket for a completion percentage.
func Bucket(percentage float64) string {
	switch {
	case percentage >= 100:
		return "100"
	case percentage >= 76:
		return "76-99"
	case percentage >= 51:
		return "51-75"
	case percentage >= 26:
		return "26-50"
	default:
		return "0-25"
	}
}

// BucketCount is one bar of the progress distribution.
type BucketCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// EnrollmentSnapshot is one enrollment with everything hanging off it.
type EnrollmentSnapshot struct {
	Enrollment progress.Enrollment       `json:"enrollment"`
	Progress   []progress.LessonProgress `json:"progress"`
	Attempts   []progress.QuizAttempt    `json:"attempts"`
}

// CourseSnapshot is a consistent read of a course and its enrollments.
type CourseSnapshot struct {
	Course      catalog.Course       `json:"course"`
	Lessons     []catalog.Lesson     `json:"lessons"`
	Quizzes     []catalog.Quiz       `json:"quizzes"`
	Enrollments []EnrollmentSnapshot `json:"enrollments"`
}

// QuizPerformance summarises every attempt at one quiz.
type QuizPerformance struct {
	QuizID       string  `json:"quiz_id"`
	Title        string  `json:"title"`
	PassingScore int     `json:"passing_score"`
	Attempts     int     `json:"total_attempts"`
	Students     int     `json:"students"`
	AverageScore float64 `json:"average_score"`
	PassRate     float64 `json:"pass_rate"`
}

// Engagement counts students by recent activity.
type Engagement struct {
	Active       int     `json:"active_students"`
	Inactive     int     `json:"inactive_students"`
	ActivityRate float64 `json:"activity_rate"`
}

// TimeAnalysis estimates study time from the lessons each student opened.
type TimeAnalysis struct {
	TotalHours           float64 `json:"total_time_spent_hours"`
	AverageHours         float64 `json:"average_time_spent_hours"`
	AverageLessonMinutes float64 `json:"average_time_per_lesson_minutes"`
}

// Analytics is the instructor view of a course.
type Analytics struct {
	CourseID          string            `json:"course_id"`
	CourseTitle       string            `json:"course_title"`
	TotalStudents     int               `json:"total_students"`
	CompletionRate    float64           `json:"completion_rate"`
	Distribution      []BucketCount     `json:"progress_distribution"`
	Engagement        Engagement        `json:"engagement"`
	Time              TimeAnalysis      `json:"time_analysis"`
	Quizzes           []QuizPerformance `json:"quiz_performance"`
	RecentCompletions int               `json:"recent_completions"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// Analyze computes course analytics from a snapshot as of now.
func Analyze(s CourseSnapshot, now time.Time) Analytics {
	a := Analytics{
		CourseID:      s.Course.ID,
		CourseTitle:   s.Course.Title,
		TotalStudents: len(s.Enrollments),
		GeneratedAt:   now,
	}

	counts := make(map[string]int, len(bucketLabels))
	minutes := make(map[string]int, len(s.Lessons))
	for _, l := range s.Lessons {
		minutes[l.ID] = l.DurationMinutes
	}

	var completed, totalMinutes int
	for _, e := range s.Enrollments {
		summary := progress.Summarize(s.Lessons, e.Progress)
		counts[Bucket(summary.Percentage)]++

		if e.Enrollment.Completed {
			completed++
			if e.Enrollment.CompletedAt != nil && now.Sub(*e.Enrollment.CompletedAt) <= recentCompletion {
				a.RecentCompletions++
			}
		}

		active := false
		for _, p := range e.Progress {
			totalMinutes += minutes[p.LessonID]
			if now.Sub(p.LastAccessed) <= activeWindow {
				active = true
			}
		}
		if active {
			a.Engagement.Active++
		}
	}

	a.Distribution = make([]BucketCount, 0, len(bucketLabels))
	for _, label := range bucketLabels {
		a.Distribution = append(a.Distribution, BucketCount{Label: label, Count: counts[label]})
	}

	n := len(s.Enrollments)
	a.CompletionRate = rate(completed, n)
	a.Engagement.Inactive = n - a.Engagement.Active
	a.Engagement.ActivityRate = rate(a.Engagement.Active, n)

	a.Time.TotalHours = round2(float64(totalMinutes) / 60)
	if n > 0 {
		avgMinutes := float64(totalMinutes) / float64(n)
		a.Time.AverageHours = round2(avgMinutes / 60)
		if len(s.Lessons) > 0 {
			a.Time.AverageLessonMinutes = round2(avgMinutes / float64(len(s.Lessons)))
		}
	}

	a.Quizzes = QuizStats(s)
	return a
}

// QuizStats aggregates attempts per quiz across all enrollments.
func QuizStats(s CourseSnapshot) []QuizPerformance {
	out := make([]QuizPerformance, 0, len(s.Quizzes))
	for _, q := range s.Quizzes {
		qp := QuizPerformance{QuizID: q.ID, Title: q.Title, PassingScore: q.PassingScore}
		var sum float64
		var passed int
		for _, e := range s.Enrollments {
			tried := false
			for _, at := range e.Attempts {
				if at.QuizID != q.ID {
					continue
				}
				tried = true
				qp.Attempts++
				sum += at.Score
				if at.Passed {
					passed++
				}
			}
			if tried {
				qp.Students++
			}
		}
		if qp.Attempts > 0 {
			qp.AverageScore = round2(sum / float64(qp.Attempts))
		}
		qp.PassRate = rate(passed, qp.Attempts)
		out = append(out, qp)
	}
	return out
}

// BestScores returns the best score per quiz id for one enrollment.
func BestScores(attempts []progress.QuizAttempt) map[string]float64 {
	best := make(map[string]float64)
	for _, a := range attempts {
		if cur, ok := best[a.QuizID]; !ok || a.Score > cur {
			best[a.QuizID] = a.Score
		}
	}
	return best
}

func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
