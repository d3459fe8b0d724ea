package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// Enroll enrolls the acting student in a published course and creates one
// LessonProgress per lesson. If the student is already enrolled the existing
// enrollment is returned together with an AlreadyEnrolled error.
func (e *Engine) Enroll(ctx context.Context, actor access.Actor, courseID string) (Enrollment, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return Enrollment{}, err
	}

	var enr, existing Enrollment
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		found, ok, err := tx.FindEnrollment(ctx, actor.UserID, courseID)
		if err != nil {
			return err
		}
		if ok {
			existing = found
			return apperr.New(apperr.AlreadyEnrolled, "already enrolled in course %s", courseID)
		}

		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if !course.IsPublished {
			return apperr.New(apperr.CourseUnavailable, "course %s is not published", courseID)
		}

		now := e.now()
		created, isNew, err := tx.CreateEnrollment(ctx, Enrollment{
			StudentID:  actor.UserID,
			CourseID:   courseID,
			EnrolledAt: now,
		})
		if err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		if !isNew {
			// Lost a race with a concurrent enroll of the same student.
			existing = created
			return apperr.New(apperr.AlreadyEnrolled, "already enrolled in course %s", courseID)
		}

		lessons, err := tx.ListLessons(ctx, courseID)
		if err != nil {
			return err
		}
		for _, l := range lessons {
			if _, err := tx.SaveLessonProgress(ctx, LessonProgress{
				EnrollmentID: created.ID,
				StudentID:    actor.UserID,
				LessonID:     l.ID,
				LastAccessed: now,
			}); err != nil {
				return fmt.Errorf("create lesson progress: %w", err)
			}
		}

		enr = created
		out.emit(Event{
			EnrollmentID: created.ID,
			UserID:       actor.UserID,
			CourseID:     courseID,
			EventType:    EventEnrolled,
			Data:         map[string]any{"lessons": len(lessons)},
		})
		return nil
	})
	if apperr.Is(err, apperr.AlreadyEnrolled) {
		return existing, err
	}
	if err != nil {
		return Enrollment{}, err
	}

	slog.Info("student enrolled", "student_id", actor.UserID, "course_id", courseID, "enrollment_id", enr.ID)
	return enr, nil
}

// Unenroll removes the acting student's enrollment and everything hanging
// off it: lesson progress, quiz attempts, the certificate, then the
// enrollment itself.
func (e *Engine) Unenroll(ctx context.Context, actor access.Actor, courseID string) error {
	if err := actor.Require(access.RoleStudent); err != nil {
		return err
	}

	return e.run(ctx, func(tx Tx, out *outbox) error {
		enr, ok, err := tx.LockEnrollment(ctx, actor.UserID, courseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", courseID)
		}

		progressRows, err := tx.DeleteLessonProgress(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("delete lesson progress: %w", err)
		}
		attempts, err := tx.DeleteAttempts(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("delete quiz attempts: %w", err)
		}
		cert, hadCert, err := tx.DeleteCertificate(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("delete certificate: %w", err)
		}
		if err := tx.DeleteEnrollment(ctx, enr.ID); err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}

		if hadCert {
			out.revoked = append(out.revoked, cert.CertificateID)
		}
		out.emit(Event{
			EnrollmentID: enr.ID,
			UserID:       actor.UserID,
			CourseID:     courseID,
			EventType:    EventUnenrolled,
			Data: map[string]any{
				"lesson_progress": progressRows,
				"attempts":        attempts,
				"certificate":     hadCert,
			},
		})
		slog.Info("student unenrolled",
			"student_id", actor.UserID,
			"course_id", courseID,
			"progress_rows", progressRows,
			"attempts", attempts,
		)
		return nil
	})
}

// LessonView is what a caller sees when opening a lesson.
type LessonView struct {
	Lesson   catalog.Lesson  `json:"lesson"`
	Progress *LessonProgress `json:"progress,omitempty"`
	Quiz     *QuizSummary    `json:"quiz,omitempty"`
}

// QuizSummary describes a lesson's quiz from the viewer's perspective.
type QuizSummary struct {
	Quiz              catalog.Quiz `json:"quiz"`
	QuestionCount     int          `json:"question_count"`
	AttemptsTaken     int          `json:"attempts_taken"`
	AttemptsRemaining int          `json:"attempts_remaining"`
	BestScore         float64      `json:"best_score"`
	Passed            bool         `json:"passed"`
}

// ViewLesson returns a lesson. Students must be enrolled and have their
// last access time recorded; instructors must own the course.
func (e *Engine) ViewLesson(ctx context.Context, actor access.Actor, lessonID string) (LessonView, error) {
	if err := actor.Require(access.RoleStudent, access.RoleInstructor, access.RoleAdmin); err != nil {
		return LessonView{}, err
	}

	var view LessonView
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		course, err := tx.GetCourse(ctx, lesson.CourseID)
		if err != nil {
			return err
		}
		view.Lesson = lesson

		quiz, hasQuiz, err := tx.FindQuizByLesson(ctx, lesson.ID)
		if err != nil {
			return err
		}

		if !actor.IsStudent() {
			if err := actor.RequireOwner(course.InstructorID); err != nil {
				return err
			}
			if hasQuiz {
				questions, err := tx.ListQuestions(ctx, quiz.ID)
				if err != nil {
					return err
				}
				view.Quiz = &QuizSummary{Quiz: quiz, QuestionCount: len(questions)}
			}
			return nil
		}

		enr, ok, err := tx.FindEnrollment(ctx, actor.UserID, course.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotEnrolled, "not enrolled in course %s", course.ID)
		}

		p, ok, err := tx.FindLessonProgress(ctx, enr.ID, lesson.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Lessons added after enrollment get their row on first view.
			p = LessonProgress{EnrollmentID: enr.ID, StudentID: actor.UserID, LessonID: lesson.ID}
		}
		p.LastAccessed = e.now()
		if p, err = tx.SaveLessonProgress(ctx, p); err != nil {
			return fmt.Errorf("save lesson progress: %w", err)
		}
		view.Progress = &p

		if hasQuiz && quiz.IsActive {
			summary, err := quizSummary(ctx, tx, enr.ID, quiz)
			if err != nil {
				return err
			}
			view.Quiz = &summary
		}
		return nil
	})
	if err != nil {
		return LessonView{}, err
	}
	return view, nil
}

func quizSummary(ctx context.Context, tx Tx, enrollmentID string, quiz catalog.Quiz) (QuizSummary, error) {
	questions, err := tx.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return QuizSummary{}, err
	}
	attempts, err := tx.ListAttempts(ctx, enrollmentID, quiz.ID)
	if err != nil {
		return QuizSummary{}, err
	}
	st := SummarizeAttempts(attempts)
	return QuizSummary{
		Quiz:              quiz,
		QuestionCount:     len(questions),
		AttemptsTaken:     st.Total,
		AttemptsRemaining: max(quiz.MaxAttempts-st.Total, 0),
		BestScore:         st.Best,
		Passed:            st.Passed,
	}, nil
}

// LessonStatus pairs a lesson with the enrollment's progress on it.
type LessonStatus struct {
	Lesson   catalog.Lesson  `json:"lesson"`
	Progress *LessonProgress `json:"progress,omitempty"`
}

// ProgressReport is the full state of one enrollment.
type ProgressReport struct {
	Enrollment  Enrollment     `json:"enrollment"`
	Summary     Summary        `json:"summary"`
	Lessons     []LessonStatus `json:"lessons"`
	Attempts    []QuizAttempt  `json:"attempts"`
	Certificate *Certificate   `json:"certificate,omitempty"`
}

// EnrollmentProgress returns an enrollment's state. It is visible to the
// enrolled student, the course instructor and admins.
func (e *Engine) EnrollmentProgress(ctx context.Context, actor access.Actor, enrollmentID string) (ProgressReport, error) {
	var report ProgressReport
	err := e.view(ctx, func(tx Tx) error {
		enr, err := tx.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		course, err := tx.GetCourse(ctx, enr.CourseID)
		if err != nil {
			return err
		}
		if !(actor.IsStudent() && actor.UserID == enr.StudentID) && !actor.CanManage(course.InstructorID) {
			return apperr.New(apperr.PermissionDenied, "cannot view this enrollment")
		}

		lessons, err := tx.ListLessons(ctx, course.ID)
		if err != nil {
			return err
		}
		rows, err := tx.ListLessonProgress(ctx, enr.ID)
		if err != nil {
			return err
		}
		byLesson := make(map[string]LessonProgress, len(rows))
		for _, p := range rows {
			byLesson[p.LessonID] = p
		}

		report.Enrollment = enr
		report.Summary = Summarize(lessons, rows)
		report.Lessons = make([]LessonStatus, 0, len(lessons))
		for _, l := range lessons {
			st := LessonStatus{Lesson: l}
			if p, ok := byLesson[l.ID]; ok {
				st.Progress = &p
			}
			report.Lessons = append(report.Lessons, st)
		}

		if report.Attempts, err = tx.ListEnrollmentAttempts(ctx, enr.ID); err != nil {
			return err
		}
		if cert, ok, err := tx.FindCertificate(ctx, enr.ID); err != nil {
			return err
		} else if ok {
			report.Certificate = &cert
		}
		return nil
	})
	if err != nil {
		return ProgressReport{}, err
	}
	return report, nil
}

// ListEnrollments lists the acting student's enrollments, or every
// enrollment for admins.
func (e *Engine) ListEnrollments(ctx context.Context, actor access.Actor) ([]Enrollment, error) {
	filter := EnrollmentFilter{}
	switch {
	case actor.IsStudent():
		filter.StudentID = actor.UserID
	case actor.IsAdmin():
	default:
		return nil, apperr.New(apperr.PermissionDenied, "only students and admins can list enrollments")
	}

	var enrollments []Enrollment
	err := e.view(ctx, func(tx Tx) error {
		var err error
		enrollments, err = tx.ListEnrollments(ctx, filter)
		return err
	})
	return enrollments, err
}
