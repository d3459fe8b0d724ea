// Package progress implements the learner state machine: enrollment, quiz
// grading, lesson and course completion, and certificate issuance.
package progress

import (
	"context"
	"time"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

// Store runs units of work against the learner state. Every mutating engine
// operation is a single InTx call; a non-nil error from fn rolls back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside one transaction. Lookups of missing
// records by id return an apperr NotFound error; Find* methods report
// absence with a bool instead.
type Tx interface {
	catalog.Reader

	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	FindEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, bool, error)
	// LockEnrollment is FindEnrollment that also holds the enrollment row
	// for the rest of the transaction.
	LockEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, bool, error)
	// CreateEnrollment inserts e unless (student, course) already exists, in
	// which case it returns the existing row and created=false.
	CreateEnrollment(ctx context.Context, e Enrollment) (enr Enrollment, created bool, err error)
	// MarkEnrollmentCompleted flips completed false to true. It reports
	// false when the enrollment was already completed.
	MarkEnrollmentCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	// ClearEnrollmentCompleted flips completed true to false.
	ClearEnrollmentCompleted(ctx context.Context, id string) (bool, error)
	DeleteEnrollment(ctx context.Context, id string) error
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

	FindLessonProgress(ctx context.Context, enrollmentID, lessonID string) (LessonProgress, bool, error)
	// SaveLessonProgress inserts or updates by (enrollment, lesson).
	SaveLessonProgress(ctx context.Context, p LessonProgress) (LessonProgress, error)
	ListLessonProgress(ctx context.Context, enrollmentID string) ([]LessonProgress, error)
	DeleteLessonProgress(ctx context.Context, enrollmentID string) (int64, error)

	CountAttempts(ctx context.Context, enrollmentID, quizID string) (int, error)
	// ListAttempts returns attempts newest first.
	ListAttempts(ctx context.Context, enrollmentID, quizID string) ([]QuizAttempt, error)
	ListEnrollmentAttempts(ctx context.Context, enrollmentID string) ([]QuizAttempt, error)
	HasPassingAttempt(ctx context.Context, enrollmentID, quizID string) (bool, error)
	CreateAttempt(ctx context.Context, a QuizAttempt) (QuizAttempt, error)
	DeleteAttempts(ctx context.Context, enrollmentID string) (int64, error)

	FindCertificate(ctx context.Context, enrollmentID string) (Certificate, bool, error)
	FindCertificateByCode(ctx context.Context, certificateID string) (Certificate, bool, error)
	// CreateCertificate inserts c unless the enrollment already holds a
	// certificate, in which case it returns that one and created=false.
	// A clash on the public certificate id is reported as apperr Conflict.
	CreateCertificate(ctx context.Context, c Certificate) (cert Certificate, created bool, err error)
	// DeleteCertificate removes the enrollment's certificate and returns it.
	DeleteCertificate(ctx context.Context, enrollmentID string) (Certificate, bool, error)
	ListCertificates(ctx context.Context, filter CertificateFilter) ([]Certificate, error)
}
