package progress

import (
	"math"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

// Grade is the outcome of scoring one submission.
type Grade struct {
	RawPoints  int
	MaxPoints  int
	Percentage float64
	Passed     bool
	Results    []QuestionResult
}

// GradeAnswers scores answers against questions. It has no side effects.
//
// MaxPoints is the sum of all question points, answered or not. Answers that
// reference unknown question ids are ignored. A question answered more than
// once is correct when any of its answers matches and scores its points
// once. Comparison is a lower-cased string equality.
func GradeAnswers(questions []catalog.Question, answers []Answer, passingScore int) Grade {
	submitted := make(map[string][]string, len(answers))
	for _, a := range answers {
		submitted[a.QuestionID] = append(submitted[a.QuestionID], a.Answer)
	}

	lower := cases.Lower(language.Und)
	g := Grade{Results: make([]QuestionResult, 0, len(questions))}
	for _, q := range questions {
		g.MaxPoints += q.Points

		answer, correct := pickAnswer(submitted[q.ID], lower.String(q.CorrectAnswer), lower)

		r := QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			Points:        q.Points,
			Explanation:   q.Explanation,
		}
		if correct {
			r.Awarded = q.Points
			g.RawPoints += q.Points
		}
		g.Results = append(g.Results, r)
	}

	g.Percentage = Percentage(g.RawPoints, g.MaxPoints)
	g.Passed = g.Percentage >= float64(passingScore)
	return g
}

// pickAnswer returns the answer reported for a question: the smallest
// matching answer when one matches, otherwise the smallest submitted one.
func pickAnswer(given []string, want string, lower cases.Caser) (string, bool) {
	if len(given) == 0 {
		return "", false
	}
	sorted := slices.Clone(given)
	slices.Sort(sorted)
	for _, a := range sorted {
		if lower.String(a) == want {
			return a, true
		}
	}
	return sorted[0], false
}

// Percentage returns part/whole*100 rounded to two decimals, or 0 when whole
// is zero.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
