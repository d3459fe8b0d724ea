package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
)

// ExhaustedDetails is attached to AttemptsExhausted errors.
type ExhaustedDetails struct {
	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"max_attempts"`
	BestScore   float64 `json:"best_score"`
	Passed      bool    `json:"passed"`
}

// AttemptResult is the outcome of SubmitAttempt.
type AttemptResult struct {
	Attempt         QuizAttempt  `json:"attempt"`
	LessonCompleted bool         `json:"lesson_completed"`
	CourseCompleted bool         `json:"course_completed"`
	Certificate     *Certificate `json:"certificate,omitempty"`
}

type submission struct {
	Answers []Answer `json:"answers" validate:"dive"`
}

// SubmitAttempt grades and records one attempt at an active quiz. A passing
// attempt completes the quiz's lesson in the same transaction, which may in
// turn complete the course and issue its certificate.
func (e *Engine) SubmitAttempt(ctx context.Context, actor access.Actor, quizID string, answers []Answer) (AttemptResult, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return AttemptResult{}, err
	}
	if err := validate.Struct(submission{Answers: answers}); err != nil {
		return AttemptResult{}, err
	}

	var res AttemptResult
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		quiz, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if !quiz.IsActive {
			return apperr.New(apperr.NotFound, "quiz %s not found", quizID)
		}
		lesson, err := tx.GetLesson(ctx, quiz.LessonID)
		if err != nil {
			return err
		}

		// Holding the enrollment row serialises concurrent submissions so
		// the attempt count below cannot be raced past MaxAttempts.
		enr, ok, err := tx.LockEnrollment(ctx, actor.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", lesson.CourseID)
		}

		taken, err := tx.CountAttempts(ctx, enr.ID, quiz.ID)
		if err != nil {
			return err
		}
		if taken >= quiz.MaxAttempts {
			prior, err := tx.ListAttempts(ctx, enr.ID, quiz.ID)
			if err != nil {
				return err
			}
			st := SummarizeAttempts(prior)
			return &apperr.Error{
				Kind:    apperr.AttemptsExhausted,
				Message: fmt.Sprintf("maximum attempts (%d) reached", quiz.MaxAttempts),
				Details: ExhaustedDetails{
					Attempts:    taken,
					MaxAttempts: quiz.MaxAttempts,
					BestScore:   st.Best,
					Passed:      st.Passed,
				},
			}
		}

		questions, err := tx.ListQuestions(ctx, quiz.ID)
		if err != nil {
			return err
		}
		grade := GradeAnswers(questions, answers, quiz.PassingScore)

		now := e.now()
		attempt, err := tx.CreateAttempt(ctx, QuizAttempt{
			StudentID:     actor.UserID,
			QuizID:        quiz.ID,
			EnrollmentID:  enr.ID,
			AttemptNumber: taken + 1,
			Score:         grade.Percentage,
			RawPoints:     grade.RawPoints,
			MaxPoints:     grade.MaxPoints,
			Passed:        grade.Passed,
			StartedAt:     now,
			CompletedAt:   now,
			Results:       grade.Results,
		})
		if err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		res.Attempt = attempt
		out.emit(Event{
			EnrollmentID: enr.ID,
			UserID:       actor.UserID,
			CourseID:     enr.CourseID,
			EventType:    EventQuizSubmitted,
			Data: map[string]any{
				"quiz_id":        quiz.ID,
				"attempt_number": attempt.AttemptNumber,
				"score":          attempt.Score,
				"passed":         attempt.Passed,
			},
		})

		if !grade.Passed {
			return nil
		}
		c, err := e.completeLesson(ctx, tx, out, enr, lesson)
		if err != nil {
			return err
		}
		res.LessonCompleted = true
		res.CourseCompleted = c.courseCompleted
		res.Certificate = c.certificate
		return nil
	})
	if err != nil {
		return AttemptResult{}, err
	}

	slog.Info("quiz attempt graded",
		"student_id", actor.UserID,
		"quiz_id", quizID,
		"attempt", res.Attempt.AttemptNumber,
		"score", res.Attempt.Score,
		"passed", res.Attempt.Passed,
	)
	return res, nil
}

// AttemptHistory is a student's record on one quiz.
type AttemptHistory struct {
	Quiz      catalog.Quiz  `json:"quiz"`
	Attempts  []QuizAttempt `json:"attempts"` // newest first
	Stats     AttemptStats  `json:"stats"`
	Remaining int           `json:"remaining"`
}

// AttemptHistory returns the acting student's attempts on a quiz.
func (e *Engine) AttemptHistory(ctx context.Context, actor access.Actor, quizID string) (AttemptHistory, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return AttemptHistory{}, err
	}

	var h AttemptHistory
	err := e.view(ctx, func(tx Tx) error {
		quiz, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		lesson, err := tx.GetLesson(ctx, quiz.LessonID)
		if err != nil {
			return err
		}
		enr, ok, err := tx.FindEnrollment(ctx, actor.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", lesson.CourseID)
		}

		attempts, err := tx.ListAttempts(ctx, enr.ID, quiz.ID)
		if err != nil {
			return err
		}
		h = AttemptHistory{
			Quiz:     quiz,
			Attempts: attempts,
			Stats:    SummarizeAttempts(attempts),
		}
		h.Remaining = max(quiz.MaxAttempts-h.Stats.Total, 0)
		return nil
	})
	if err != nil {
		return AttemptHistory{}, err
	}
	return h, nil
}

// PublicQuestion is a question without its answer key.
type PublicQuestion struct {
	ID      string               `json:"id"`
	Type    catalog.QuestionType `json:"type"`
	Text    string               `json:"text"`
	Options []string             `json:"options,omitempty"`
	Points  int                  `json:"points"`
	Order   int                  `json:"order"`
}

// QuizView is a quiz as presented to a student taking it.
type QuizView struct {
	Quiz      catalog.Quiz     `json:"quiz"`
	Questions []PublicQuestion `json:"questions"`
	Summary   QuizSummary      `json:"summary"`
}

// ViewQuiz returns an active quiz's questions, minus answers, to an
// enrolled student.
func (e *Engine) ViewQuiz(ctx context.Context, actor access.Actor, quizID string) (QuizView, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return QuizView{}, err
	}

	var v QuizView
	err := e.view(ctx, func(tx Tx) error {
		quiz, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if !quiz.IsActive {
			return apperr.New(apperr.NotFound, "quiz %s not found", quizID)
		}
		lesson, err := tx.GetLesson(ctx, quiz.LessonID)
		if err != nil {
			return err
		}
		enr, ok, err := tx.FindEnrollment(ctx, actor.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", lesson.CourseID)
		}

		questions, err := tx.ListQuestions(ctx, quiz.ID)
		if err != nil {
			return err
		}
		v.Quiz = quiz
		v.Questions = make([]PublicQuestion, 0, len(questions))
		for _, q := range questions {
			v.Questions = append(v.Questions, PublicQuestion{
				ID:      q.ID,
				Type:    q.Type,
				Text:    q.Text,
				Options: q.Options,
				Points:  q.Points,
				Order:   q.Order,
			})
		}
		v.Summary, err = quizSummary(ctx, tx, enr.ID, quiz)
		return err
	})
	if err != nil {
		return QuizView{}, err
	}
	return v, nil
}
