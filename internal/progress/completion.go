package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// CompletionResult is the outcome of completing a lesson.
type CompletionResult struct {
	Progress        LessonProgress `json:"progress"`
	Summary         Summary        `json:"summary"`
	CourseCompleted bool           `json:"course_completed"`
	Certificate     *Certificate   `json:"certificate,omitempty"`
}

type completion struct {
	progress        LessonProgress
	summary         Summary
	courseCompleted bool
	certificate     *Certificate
}

// MarkLessonComplete completes a lesson for the acting student. A lesson
// with an active quiz that has questions requires a passing attempt first.
func (e *Engine) MarkLessonComplete(ctx context.Context, actor access.Actor, lessonID string) (CompletionResult, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return CompletionResult{}, err
	}

	var c completion
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		enr, ok, err := tx.LockEnrollment(ctx, actor.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", lesson.CourseID)
		}

		if err := requireQuizPassed(ctx, tx, enr.ID, lesson.ID); err != nil {
			return err
		}

		c, err = e.completeLesson(ctx, tx, out, enr, lesson)
		return err
	})
	if err != nil {
		return CompletionResult{}, err
	}

	return CompletionResult{
		Progress:        c.progress,
		Summary:         c.summary,
		CourseCompleted: c.courseCompleted,
		Certificate:     c.certificate,
	}, nil
}

func requireQuizPassed(ctx context.Context, tx Tx, enrollmentID, lessonID string) error {
	quiz, ok, err := tx.FindQuizByLesson(ctx, lessonID)
	if err != nil || !ok || !quiz.IsActive {
		return err
	}
	questions, err := tx.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}
	passed, err := tx.HasPassingAttempt(ctx, enrollmentID, quiz.ID)
	if err != nil {
		return err
	}
	if !passed {
		return apperr.New(apperr.QuizRequired, "pass the quiz %q to complete this lesson", quiz.Title)
	}
	return nil
}

// completeLesson marks the lesson completed and re-evaluates the course.
// The caller holds the enrollment lock.
func (e *Engine) completeLesson(ctx context.Context, tx Tx, out *outbox, enr Enrollment, lesson catalog.Lesson) (completion, error) {
	p, ok, err := tx.FindLessonProgress(ctx, enr.ID, lesson.ID)
	if err != nil {
		return completion{}, err
	}
	if !ok {
		p = LessonProgress{EnrollmentID: enr.ID, StudentID: enr.StudentID, LessonID: lesson.ID}
	}

	now := e.now()
	newlyCompleted := !p.Completed
	if newlyCompleted {
		p.Completed = true
		p.CompletedAt = &now
	}
	p.LastAccessed = now
	if p, err = tx.SaveLessonProgress(ctx, p); err != nil {
		return completion{}, fmt.Errorf("save lesson progress: %w", err)
	}
	if newlyCompleted {
		out.emit(Event{
			EnrollmentID: enr.ID,
			UserID:       enr.StudentID,
			CourseID:     enr.CourseID,
			EventType:    EventLessonCompleted,
			Data:         map[string]any{"lesson_id": lesson.ID},
		})
	}

	c, err := e.checkCourseCompletion(ctx, tx, out, enr)
	if err != nil {
		return completion{}, err
	}
	c.progress = p
	return c, nil
}

// checkCourseCompletion completes the enrollment and issues its
// certificate when every lesson of a non-empty course is completed. The
// transition happens at most once per enrollment.
func (e *Engine) checkCourseCompletion(ctx context.Context, tx Tx, out *outbox, enr Enrollment) (completion, error) {
	lessons, err := tx.ListLessons(ctx, enr.CourseID)
	if err != nil {
		return completion{}, err
	}
	rows, err := tx.ListLessonProgress(ctx, enr.ID)
	if err != nil {
		return completion{}, err
	}

	c := completion{summary: Summarize(lessons, rows)}
	if !c.summary.Complete || enr.Completed {
		return c, nil
	}

	now := e.now()
	flipped, err := tx.MarkEnrollmentCompleted(ctx, enr.ID, now)
	if err != nil {
		return completion{}, fmt.Errorf("complete enrollment: %w", err)
	}
	if !flipped {
		return c, nil
	}
	enr.Completed = true
	enr.CompletedAt = &now

	cert, err := e.issue(ctx, tx, out, enr)
	if err != nil {
		return completion{}, err
	}
	c.courseCompleted = true
	c.certificate = &cert

	out.emit(Event{
		EnrollmentID: enr.ID,
		UserID:       enr.StudentID,
		CourseID:     enr.CourseID,
		EventType:    EventCourseCompleted,
		Data:         map[string]any{"lessons": c.summary.TotalLessons},
	})
	slog.Info("course completed",
		"student_id", enr.StudentID,
		"course_id", enr.CourseID,
		"certificate_id", cert.CertificateID,
	)
	return c, nil
}

// CheckCourseCompletion re-evaluates an enrollment's completion. It is
// idempotent and is run by every lesson completion; admins can also call it
// to repair an enrollment.
func (e *Engine) CheckCourseCompletion(ctx context.Context, actor access.Actor, enrollmentID string) (Summary, error) {
	if err := actor.Require(access.RoleAdmin); err != nil {
		return Summary{}, err
	}

	var s Summary
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		enr, err := tx.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if enr, _, err = tx.LockEnrollment(ctx, enr.StudentID, enr.CourseID); err != nil {
			return err
		}
		c, err := e.checkCourseCompletion(ctx, tx, out, enr)
		s = c.summary
		return err
	})
	return s, err
}

// ResetLessonProgress clears the acting student's completion of a lesson.
// If that makes a completed course incomplete, the enrollment's completion
// and certificate are revoked.
func (e *Engine) ResetLessonProgress(ctx context.Context, actor access.Actor, lessonID string) (LessonProgress, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return LessonProgress{}, err
	}

	var p LessonProgress
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		enr, ok, err := tx.LockEnrollment(ctx, actor.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", lesson.CourseID)
		}

		var found bool
		p, found, err = tx.FindLessonProgress(ctx, enr.ID, lesson.ID)
		if err != nil {
			return err
		}
		if !found {
			p = LessonProgress{EnrollmentID: enr.ID, StudentID: enr.StudentID, LessonID: lesson.ID}
		}

		p.Completed = false
		p.CompletedAt = nil
		p.LastAccessed = e.now()
		if p, err = tx.SaveLessonProgress(ctx, p); err != nil {
			return fmt.Errorf("save lesson progress: %w", err)
		}
		out.emit(Event{
			EnrollmentID: enr.ID,
			UserID:       enr.StudentID,
			CourseID:     enr.CourseID,
			EventType:    EventLessonReset,
			Data:         map[string]any{"lesson_id": lesson.ID},
		})

		return e.revokeIfIncomplete(ctx, tx, out, enr)
	})
	if err != nil {
		return LessonProgress{}, err
	}
	return p, nil
}

// revokeIfIncomplete is the only path that takes completion away from an
// enrollment.
func (e *Engine) revokeIfIncomplete(ctx context.Context, tx Tx, out *outbox, enr Enrollment) error {
	if !enr.Completed {
		return nil
	}
	lessons, err := tx.ListLessons(ctx, enr.CourseID)
	if err != nil {
		return err
	}
	rows, err := tx.ListLessonProgress(ctx, enr.ID)
	if err != nil {
		return err
	}
	if Summarize(lessons, rows).Complete {
		return nil
	}

	if _, err := tx.ClearEnrollmentCompleted(ctx, enr.ID); err != nil {
		return fmt.Errorf("clear enrollment completion: %w", err)
	}
	cert, ok, err := tx.DeleteCertificate(ctx, enr.ID)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if ok {
		out.revoked = append(out.revoked, cert.CertificateID)
		out.emit(Event{
			EnrollmentID: enr.ID,
			UserID:       enr.StudentID,
			CourseID:     enr.CourseID,
			EventType:    EventCertificateRevoked,
			Data:         map[string]any{"certificate_id": cert.CertificateID},
		})
	}
	slog.Info("course completion revoked", "student_id", enr.StudentID, "course_id", enr.CourseID)
	return nil
}
