package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// memTx is a transaction over a private state copy. The store mutex is held
// for its whole lifetime, so LockEnrollment needs no extra locking.
type memTx struct {
	view
	now func() time.Time
}

var _ progress.Tx = (*memTx)(nil)

func (tx *memTx) GetEnrollment(_ context.Context, id string) (progress.Enrollment, error) {
	e, ok := tx.st.enrollments[id]
	if !ok {
		return progress.Enrollment{}, apperr.New(apperr.NotFound, "enrollment %s not found", id)
	}
	return e, nil
}

func (tx *memTx) FindEnrollment(_ context.Context, studentID, courseID string) (progress.Enrollment, bool, error) {
	for _, e := range tx.st.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, true, nil
		}
	}
	return progress.Enrollment{}, false, nil
}

func (tx *memTx) LockEnrollment(ctx context.Context, studentID, courseID string) (progress.Enrollment, bool, error) {
	return tx.FindEnrollment(ctx, studentID, courseID)
}

func (tx *memTx) CreateEnrollment(ctx context.Context, e progress.Enrollment) (progress.Enrollment, bool, error) {
	if existing, ok, _ := tx.FindEnrollment(ctx, e.StudentID, e.CourseID); ok {
		return existing, false, nil
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = tx.now()
	}
	tx.st.enrollments[e.ID] = e
	return e, true, nil
}

func (tx *memTx) MarkEnrollmentCompleted(_ context.Context, id string, at time.Time) (bool, error) {
	e, ok := tx.st.enrollments[id]
	if !ok {
		return false, apperr.New(apperr.NotFound, "enrollment %s not found", id)
	}
	if e.Completed {
		return false, nil
	}
	e.Completed = true
	e.CompletedAt = &at
	tx.st.enrollments[id] = e
	return true, nil
}

func (tx *memTx) ClearEnrollmentCompleted(_ context.Context, id string) (bool, error) {
	e, ok := tx.st.enrollments[id]
	if !ok {
		return false, apperr.New(apperr.NotFound, "enrollment %s not found", id)
	}
	if !e.Completed {
		return false, nil
	}
	e.Completed = false
	e.CompletedAt = nil
	tx.st.enrollments[id] = e
	return true, nil
}

func (tx *memTx) DeleteEnrollment(_ context.Context, id string) error {
	if _, ok := tx.st.enrollments[id]; !ok {
		return apperr.New(apperr.NotFound, "enrollment %s not found", id)
	}
	delete(tx.st.enrollments, id)
	return nil
}

func (tx *memTx) ListEnrollments(_ context.Context, filter progress.EnrollmentFilter) ([]progress.Enrollment, error) {
	out := []progress.Enrollment{}
	for _, e := range tx.st.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b progress.Enrollment) int {
		return cmp.Or(a.EnrolledAt.Compare(b.EnrolledAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (tx *memTx) FindLessonProgress(_ context.Context, enrollmentID, lessonID string) (progress.LessonProgress, bool, error) {
	for _, p := range tx.st.progress {
		if p.EnrollmentID == enrollmentID && p.LessonID == lessonID {
			return p, true, nil
		}
	}
	return progress.LessonProgress{}, false, nil
}

func (tx *memTx) SaveLessonProgress(ctx context.Context, p progress.LessonProgress) (progress.LessonProgress, error) {
	if _, ok := tx.st.enrollments[p.EnrollmentID]; !ok {
		return progress.LessonProgress{}, apperr.New(apperr.NotFound, "enrollment %s not found", p.EnrollmentID)
	}
	if existing, ok, _ := tx.FindLessonProgress(ctx, p.EnrollmentID, p.LessonID); ok {
		p.ID = existing.ID
	}
	if p.ID == "" {
		p.ID = newID()
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = tx.now()
	}
	tx.st.progress[p.ID] = p
	return p, nil
}

func (tx *memTx) ListLessonProgress(_ context.Context, enrollmentID string) ([]progress.LessonProgress, error) {
	out := []progress.LessonProgress{}
	for _, p := range tx.st.progress {
		if p.EnrollmentID == enrollmentID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b progress.LessonProgress) int { return cmp.Compare(a.LessonID, b.LessonID) })
	return out, nil
}

func (tx *memTx) DeleteLessonProgress(_ context.Context, enrollmentID string) (int64, error) {
	var n int64
	for id, p := range tx.st.progress {
		if p.EnrollmentID == enrollmentID {
			delete(tx.st.progress, id)
			n++
		}
	}
	return n, nil
}

func (tx *memTx) CountAttempts(_ context.Context, enrollmentID, quizID string) (int, error) {
	n := 0
	for _, a := range tx.st.attempts {
		if a.EnrollmentID == enrollmentID && a.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) ListAttempts(_ context.Context, enrollmentID, quizID string) ([]progress.QuizAttempt, error) {
	out := []progress.QuizAttempt{}
	for _, a := range tx.st.attempts {
		if a.EnrollmentID == enrollmentID && a.QuizID == quizID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b progress.QuizAttempt) int { return cmp.Compare(b.AttemptNumber, a.AttemptNumber) })
	return out, nil
}

func (tx *memTx) ListEnrollmentAttempts(_ context.Context, enrollmentID string) ([]progress.QuizAttempt, error) {
	out := []progress.QuizAttempt{}
	for _, a := range tx.st.attempts {
		if a.EnrollmentID == enrollmentID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b progress.QuizAttempt) int {
		return cmp.Or(a.CompletedAt.Compare(b.CompletedAt), cmp.Compare(a.QuizID, b.QuizID), cmp.Compare(a.AttemptNumber, b.AttemptNumber))
	})
	return out, nil
}

func (tx *memTx) HasPassingAttempt(_ context.Context, enrollmentID, quizID string) (bool, error) {
	for _, a := range tx.st.attempts {
		if a.EnrollmentID == enrollmentID && a.QuizID == quizID && a.Passed {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) CreateAttempt(_ context.Context, a progress.QuizAttempt) (progress.QuizAttempt, error) {
	if _, ok := tx.st.enrollments[a.EnrollmentID]; !ok {
		return progress.QuizAttempt{}, apperr.New(apperr.NotFound, "enrollment %s not found", a.EnrollmentID)
	}
	for _, other := range tx.st.attempts {
		if other.EnrollmentID == a.EnrollmentID && other.QuizID == a.QuizID && other.AttemptNumber == a.AttemptNumber {
			return progress.QuizAttempt{}, apperr.New(apperr.Conflict, "attempt %d already recorded", a.AttemptNumber)
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.Results = append([]progress.QuestionResult(nil), a.Results...)
	tx.st.attempts[a.ID] = a
	return a, nil
}

func (tx *memTx) DeleteAttempts(_ context.Context, enrollmentID string) (int64, error) {
	var n int64
	for id, a := range tx.st.attempts {
		if a.EnrollmentID == enrollmentID {
			delete(tx.st.attempts, id)
			n++
		}
	}
	return n, nil
}

func (tx *memTx) FindCertificate(_ context.Context, enrollmentID string) (progress.Certificate, bool, error) {
	for _, c := range tx.st.certificates {
		if c.EnrollmentID == enrollmentID {
			return c, true, nil
		}
	}
	return progress.Certificate{}, false, nil
}

func (tx *memTx) FindCertificateByCode(_ context.Context, certificateID string) (progress.Certificate, bool, error) {
	for _, c := range tx.st.certificates {
		if c.CertificateID == certificateID {
			return c, true, nil
		}
	}
	return progress.Certificate{}, false, nil
}

func (tx *memTx) CreateCertificate(ctx context.Context, c progress.Certificate) (progress.Certificate, bool, error) {
	if existing, ok, _ := tx.FindCertificate(ctx, c.EnrollmentID); ok {
		return existing, false, nil
	}
	if _, ok, _ := tx.FindCertificateByCode(ctx, c.CertificateID); ok {
		return progress.Certificate{}, false, apperr.New(apperr.Conflict, "certificate id %s already issued", c.CertificateID)
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = tx.now()
	}
	tx.st.certificates[c.ID] = c
	return c, true, nil
}

func (tx *memTx) DeleteCertificate(ctx context.Context, enrollmentID string) (progress.Certificate, bool, error) {
	c, ok, _ := tx.FindCertificate(ctx, enrollmentID)
	if !ok {
		return progress.Certificate{}, false, nil
	}
	delete(tx.st.certificates, c.ID)
	return c, true, nil
}

func (tx *memTx) ListCertificates(_ context.Context, filter progress.CertificateFilter) ([]progress.Certificate, error) {
	out := []progress.Certificate{}
	for _, c := range tx.st.certificates {
		if filter.StudentID != "" && c.StudentID != filter.StudentID {
			continue
		}
		if filter.InstructorID != "" {
			course, ok := tx.st.courses[c.CourseID]
			if !ok || course.InstructorID != filter.InstructorID {
				continue
			}
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b progress.Certificate) int {
		return cmp.Or(a.IssuedAt.Compare(b.IssuedAt), cmp.Compare(a.CertificateID, b.CertificateID))
	})
	return out, nil
}
