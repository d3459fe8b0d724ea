package progress

import "github.com/p-n-ai/pai-learn/internal/catalog"

// Summary is the derived completion state of an enrollment.
type Summary struct {
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	Percentage       float64 `json:"percentage"`
	Complete         bool    `json:"complete"`
}

// Summarize derives completion from the course's current lessons and the
// enrollment's progress rows. Rows for lessons outside the course are
// ignored. A course with no lessons is never complete.
func Summarize(lessons []catalog.Lesson, rows []LessonProgress) Summary {
	inCourse := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		inCourse[l.ID] = true
	}

	done := make(map[string]bool, len(rows))
	for _, p := range rows {
		if p.Completed && inCourse[p.LessonID] {
			done[p.LessonID] = true
		}
	}

	s := Summary{
		TotalLessons:     len(lessons),
		CompletedLessons: len(done),
	}
	s.Percentage = Percentage(s.CompletedLessons, s.TotalLessons)
	s.Complete = s.TotalLessons > 0 && s.CompletedLessons == s.TotalLessons
	return s
}

// AttemptStats summarises a student's attempts on one quiz.
type AttemptStats struct {
	Total     int     `json:"total"`
	Best      float64 `json:"best"`
	Average   float64 `json:"average"`
	PassCount int     `json:"pass_count"`
	Passed    bool    `json:"passed"`
}

// SummarizeAttempts computes attempt statistics. Zero attempts yield zeros.
func SummarizeAttempts(attempts []QuizAttempt) AttemptStats {
	var st AttemptStats
	var sum float64
	for _, a := range attempts {
		st.Total++
		sum += a.Score
		if a.Score > st.Best {
			st.Best = a.Score
		}
		if a.Passed {
			st.PassCount++
		}
	}
	if st.Total > 0 {
		st.Average = round2(sum / float64(st.Total))
	}
	st.Passed = st.PassCount > 0
	return st
}
