package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// ServiceConfig holds dependencies for the report service.
type ServiceConfig struct {
	Store progress.Store
	Users progress.UserDirectory // optional; gradebook falls back to ids
	Now   func() time.Time
}

// Service serves course reports to the owning instructor and admins.
type Service struct {
	store progress.Store
	users progress.UserDirectory
	now   func() time.Time
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, users: cfg.Users, now: now}
}

// CourseAnalytics returns aggregated progress and quiz statistics.
func (s *Service) CourseAnalytics(ctx context.Context, actor access.Actor, courseID string) (Analytics, error) {
	snap, err := s.Snapshot(ctx, actor, courseID)
	if err != nil {
		return Analytics{}, err
	}
	return Analyze(snap, s.now()), nil
}

// Gradebook writes the course gradebook as an xlsx workbook to w.
func (s *Service) Gradebook(ctx context.Context, actor access.Actor, courseID string, w io.Writer) error {
	snap, err := s.Snapshot(ctx, actor, courseID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(snap.Enrollments))
	if s.users != nil {
		for _, e := range snap.Enrollments {
			name, err := s.users.DisplayName(ctx, e.Enrollment.StudentID)
			if err != nil {
				return fmt.Errorf("resolve student %s: %w", e.Enrollment.StudentID, err)
			}
			names[e.Enrollment.StudentID] = name
		}
	}
	return WriteGradebook(w, snap, names, s.now())
}

// Snapshot reads a course with all its enrollments in one transaction.
func (s *Service) Snapshot(ctx context.Context, actor access.Actor, courseID string) (CourseSnapshot, error) {
	var snap CourseSnapshot
	err := s.store.InTx(ctx, func(tx progress.Tx) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if err := actor.RequireOwner(course.InstructorID); err != nil {
			return err
		}

		lessons, err := tx.ListLessons(ctx, courseID)
		if err != nil {
			return err
		}
		quizzes := make([]catalog.Quiz, 0, len(lessons))
		for _, l := range lessons {
			q, ok, err := tx.FindQuizByLesson(ctx, l.ID)
			if err != nil {
				return err
			}
			if ok {
				quizzes = append(quizzes, q)
			}
		}

		enrollments, err := tx.ListEnrollments(ctx, progress.EnrollmentFilter{CourseID: courseID})
		if err != nil {
			return err
		}
		entries := make([]EnrollmentSnapshot, 0, len(enrollments))
		for _, e := range enrollments {
			rows, err := tx.ListLessonProgress(ctx, e.ID)
			if err != nil {
				return err
			}
			attempts, err := tx.ListEnrollmentAttempts(ctx, e.ID)
			if err != nil {
				return err
			}
			entries = append(entries, EnrollmentSnapshot{Enrollment: e, Progress: rows, Attempts: attempts})
		}

		snap = CourseSnapshot{Course: course, Lessons: lessons, Quizzes: quizzes, Enrollments: entries}
		return nil
	})
	if err != nil {
		return CourseSnapshot{}, err
	}
	return snap, nil
}
