package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// pgTx implements progress.Tx on one database transaction.
type pgTx struct {
	queries
	tx pgx.Tx
}

var _ progress.Tx = (*pgTx)(nil)

const enrollmentColumns = `id::text, student_id::text, course_id::text, enrolled_at, completed, completed_at`

func scanEnrollment(row pgx.Row) (progress.Enrollment, error) {
	var e progress.Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.EnrolledAt, &e.Completed, &e.CompletedAt)
	return e, err
}

const progressColumns = `id::text, enrollment_id::text, student_id::text, lesson_id::text, completed, completed_at, last_accessed`

func scanProgress(row pgx.Row) (progress.LessonProgress, error) {
	var p progress.LessonProgress
	err := row.Scan(&p.ID, &p.EnrollmentID, &p.StudentID, &p.LessonID, &p.Completed, &p.CompletedAt, &p.LastAccessed)
	return p, err
}

const attemptColumns = `id::text, student_id::text, quiz_id::text, enrollment_id::text, attempt_number,
	score, raw_points, max_points, passed, started_at, completed_at, results`

func scanAttempt(row pgx.Row) (progress.QuizAttempt, error) {
	var a progress.QuizAttempt
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.QuizID,
		&a.EnrollmentID,
		&a.AttemptNumber,
		&a.Score,
		&a.RawPoints,
		&a.MaxPoints,
		&a.Passed,
		&a.StartedAt,
		&a.CompletedAt,
		&a.Results,
	)
	return a, err
}

const certificateColumns = `id::text, certificate_id, student_id::text, course_id::text, enrollment_id::text, issued_at`

func scanCertificate(row pgx.Row) (progress.Certificate, error) {
	var c progress.Certificate
	err := row.Scan(&c.ID, &c.CertificateID, &c.StudentID, &c.CourseID, &c.EnrollmentID, &c.IssuedAt)
	return c, err
}

func (t *pgTx) GetEnrollment(ctx context.Context, id string) (progress.Enrollment, error) {
	if !validIDs(id) {
		return progress.Enrollment{}, notFound("enrollment", id)
	}
	e, err := scanEnrollment(t.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1::uuid`, id))
	if err != nil {
		return progress.Enrollment{}, mapError(err, "get enrollment "+id)
	}
	return e, nil
}

func (t *pgTx) findEnrollment(ctx context.Context, studentID, courseID, suffix string) (progress.Enrollment, bool, error) {
	if !validIDs(studentID, courseID) {
		return progress.Enrollment{}, false, nil
	}
	e, err := scanEnrollment(t.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE student_id = $1::uuid AND course_id = $2::uuid`+suffix,
		studentID, courseID,
	))
	if noRows(err) {
		return progress.Enrollment{}, false, nil
	}
	if err != nil {
		return progress.Enrollment{}, false, fmt.Errorf("find enrollment: %w", err)
	}
	return e, true, nil
}

func (t *pgTx) FindEnrollment(ctx context.Context, studentID, courseID string) (progress.Enrollment, bool, error) {
	return t.findEnrollment(ctx, studentID, courseID, "")
}

// LockEnrollment takes a row lock that serialises every transition on the
// enrollment until commit.
func (t *pgTx) LockEnrollment(ctx context.Context, studentID, courseID string) (progress.Enrollment, bool, error) {
	return t.findEnrollment(ctx, studentID, courseID, " FOR UPDATE")
}

func (t *pgTx) CreateEnrollment(ctx context.Context, e progress.Enrollment) (progress.Enrollment, bool, error) {
	if !validIDs(e.StudentID, e.CourseID) {
		return progress.Enrollment{}, false, notFound("course", e.CourseID)
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	created, err := scanEnrollment(t.q.QueryRow(ctx,
		`INSERT INTO enrollments (student_id, course_id, enrolled_at)
		 VALUES ($1::uuid, $2::uuid, $3)
		 ON CONFLICT (student_id, course_id) DO NOTHING
		 RETURNING `+enrollmentColumns,
		e.StudentID, e.CourseID, e.EnrolledAt,
	))
	if noRows(err) {
		existing, ok, err := t.FindEnrollment(ctx, e.StudentID, e.CourseID)
		if err != nil {
			return progress.Enrollment{}, false, err
		}
		if !ok {
			return progress.Enrollment{}, false, fmt.Errorf("create enrollment: conflicting row vanished")
		}
		return existing, false, nil
	}
	if err != nil {
		return progress.Enrollment{}, false, mapError(err, "create enrollment")
	}
	return created, true, nil
}

func (t *pgTx) setCompleted(ctx context.Context, id string, completed bool, at *time.Time) (bool, error) {
	if !validIDs(id) {
		return false, notFound("enrollment", id)
	}
	tag, err := t.q.Exec(ctx,
		`UPDATE enrollments SET completed = $2, completed_at = $3
		 WHERE id = $1::uuid AND completed <> $2`,
		id, completed, at,
	)
	if err != nil {
		return false, mapError(err, "update enrollment "+id)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := t.GetEnrollment(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (t *pgTx) MarkEnrollmentCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	return t.setCompleted(ctx, id, true, &at)
}

func (t *pgTx) ClearEnrollmentCompleted(ctx context.Context, id string) (bool, error) {
	return t.setCompleted(ctx, id, false, nil)
}

func (t *pgTx) DeleteEnrollment(ctx context.Context, id string) error {
	if !validIDs(id) {
		return notFound("enrollment", id)
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM enrollments WHERE id = $1::uuid`, id)
	if err != nil {
		return mapError(err, "delete enrollment "+id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("enrollment", id)
	}
	return nil
}

func (t *pgTx) ListEnrollments(ctx context.Context, filter progress.EnrollmentFilter) ([]progress.Enrollment, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE ($1 = '' OR student_id::text = $1)
		   AND ($2 = '' OR course_id::text = $2)
		 ORDER BY enrolled_at, id`,
		filter.StudentID, filter.CourseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return collect(rows, "list enrollments", scanEnrollment)
}

func (t *pgTx) FindLessonProgress(ctx context.Context, enrollmentID, lessonID string) (progress.LessonProgress, bool, error) {
	if !validIDs(enrollmentID, lessonID) {
		return progress.LessonProgress{}, false, nil
	}
	p, err := scanProgress(t.q.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress
		 WHERE enrollment_id = $1::uuid AND lesson_id = $2::uuid`,
		enrollmentID, lessonID,
	))
	if noRows(err) {
		return progress.LessonProgress{}, false, nil
	}
	if err != nil {
		return progress.LessonProgress{}, false, fmt.Errorf("find lesson progress: %w", err)
	}
	return p, true, nil
}

func (t *pgTx) SaveLessonProgress(ctx context.Context, p progress.LessonProgress) (progress.LessonProgress, error) {
	if !validIDs(p.EnrollmentID, p.StudentID, p.LessonID) {
		return progress.LessonProgress{}, notFound("enrollment", p.EnrollmentID)
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = time.Now()
	}
	saved, err := scanProgress(t.q.QueryRow(ctx,
		`INSERT INTO lesson_progress (enrollment_id, student_id, lesson_id, completed, completed_at, last_accessed)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
		 ON CONFLICT (enrollment_id, lesson_id) DO UPDATE
		 SET completed = EXCLUDED.completed,
		     completed_at = EXCLUDED.completed_at,
		     last_accessed = EXCLUDED.last_accessed
		 RETURNING `+progressColumns,
		p.EnrollmentID, p.StudentID, p.LessonID, p.Completed, p.CompletedAt, p.LastAccessed,
	))
	if err != nil {
		return progress.LessonProgress{}, mapError(err, "save lesson progress")
	}
	return saved, nil
}

func (t *pgTx) ListLessonProgress(ctx context.Context, enrollmentID string) ([]progress.LessonProgress, error) {
	if !validIDs(enrollmentID) {
		return []progress.LessonProgress{}, nil
	}
	rows, err := t.q.Query(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE enrollment_id = $1::uuid ORDER BY lesson_id`,
		enrollmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	return collect(rows, "list lesson progress", scanProgress)
}

func (t *pgTx) DeleteLessonProgress(ctx context.Context, enrollmentID string) (int64, error) {
	return t.deleteByEnrollment(ctx, "lesson_progress", enrollmentID)
}

func (t *pgTx) deleteByEnrollment(ctx context.Context, table, enrollmentID string) (int64, error) {
	if !validIDs(enrollmentID) {
		return 0, nil
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM `+table+` WHERE enrollment_id = $1::uuid`, enrollmentID)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) CountAttempts(ctx context.Context, enrollmentID, quizID string) (int, error) {
	if !validIDs(enrollmentID, quizID) {
		return 0, nil
	}
	var n int
	err := t.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE enrollment_id = $1::uuid AND quiz_id = $2::uuid`,
		enrollmentID, quizID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (t *pgTx) ListAttempts(ctx context.Context, enrollmentID, quizID string) ([]progress.QuizAttempt, error) {
	if !validIDs(enrollmentID, quizID) {
		return []progress.QuizAttempt{}, nil
	}
	rows, err := t.q.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE enrollment_id = $1::uuid AND quiz_id = $2::uuid
		 ORDER BY attempt_number DESC`,
		enrollmentID, quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return collect(rows, "list attempts", scanAttempt)
}

func (t *pgTx) ListEnrollmentAttempts(ctx context.Context, enrollmentID string) ([]progress.QuizAttempt, error) {
	if !validIDs(enrollmentID) {
		return []progress.QuizAttempt{}, nil
	}
	rows, err := t.q.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE enrollment_id = $1::uuid
		 ORDER BY completed_at, quiz_id, attempt_number`,
		enrollmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrollment attempts: %w", err)
	}
	return collect(rows, "list enrollment attempts", scanAttempt)
}

func (t *pgTx) HasPassingAttempt(ctx context.Context, enrollmentID, quizID string) (bool, error) {
	if !validIDs(enrollmentID, quizID) {
		return false, nil
	}
	var passed bool
	err := t.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM quiz_attempts
		   WHERE enrollment_id = $1::uuid AND quiz_id = $2::uuid AND passed
		 )`,
		enrollmentID, quizID,
	).Scan(&passed)
	if err != nil {
		return false, fmt.Errorf("check passing attempt: %w", err)
	}
	return passed, nil
}

func (t *pgTx) CreateAttempt(ctx context.Context, a progress.QuizAttempt) (progress.QuizAttempt, error) {
	if !validIDs(a.EnrollmentID, a.QuizID, a.StudentID) {
		return progress.QuizAttempt{}, notFound("enrollment", a.EnrollmentID)
	}
	results := a.Results
	if results == nil {
		results = []progress.QuestionResult{}
	}
	err := t.q.QueryRow(ctx,
		`INSERT INTO quiz_attempts (student_id, quiz_id, enrollment_id, attempt_number, score, raw_points,
		                            max_points, passed, started_at, completed_at, results)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		 RETURNING id::text`,
		a.StudentID,
		a.QuizID,
		a.EnrollmentID,
		a.AttemptNumber,
		a.Score,
		a.RawPoints,
		a.MaxPoints,
		a.Passed,
		a.StartedAt,
		a.CompletedAt,
		results,
	).Scan(&a.ID)
	if err != nil {
		return progress.QuizAttempt{}, mapError(err, "create attempt")
	}
	a.Results = results
	return a, nil
}

func (t *pgTx) DeleteAttempts(ctx context.Context, enrollmentID string) (int64, error) {
	return t.deleteByEnrollment(ctx, "quiz_attempts", enrollmentID)
}

func (t *pgTx) findCertificate(ctx context.Context, column, value string) (progress.Certificate, bool, error) {
	c, err := scanCertificate(t.q.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE `+column+` = $1`, value))
	if noRows(err) {
		return progress.Certificate{}, false, nil
	}
	if err != nil {
		return progress.Certificate{}, false, fmt.Errorf("find certificate: %w", err)
	}
	return c, true, nil
}

func (t *pgTx) FindCertificate(ctx context.Context, enrollmentID string) (progress.Certificate, bool, error) {
	if !validIDs(enrollmentID) {
		return progress.Certificate{}, false, nil
	}
	return t.findCertificate(ctx, "enrollment_id", enrollmentID)
}

func (t *pgTx) FindCertificateByCode(ctx context.Context, certificateID string) (progress.Certificate, bool, error) {
	return t.findCertificate(ctx, "certificate_id", certificateID)
}

// CreateCertificate runs the insert under a savepoint so that a clash on the
// public id leaves the surrounding transaction usable for a retry.
func (t *pgTx) CreateCertificate(ctx context.Context, c progress.Certificate) (progress.Certificate, bool, error) {
	if !validIDs(c.EnrollmentID, c.StudentID, c.CourseID) {
		return progress.Certificate{}, false, notFound("enrollment", c.EnrollmentID)
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now()
	}

	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return progress.Certificate{}, false, fmt.Errorf("create certificate: savepoint: %w", err)
	}
	defer sp.Rollback(context.WithoutCancel(ctx))

	created, err := scanCertificate(sp.QueryRow(ctx,
		`INSERT INTO certificates (certificate_id, student_id, course_id, enrollment_id, issued_at)
		 VALUES ($1, $2::uuid, $3::uuid, $4::uuid, $5)
		 ON CONFLICT (enrollment_id) DO NOTHING
		 RETURNING `+certificateColumns,
		c.CertificateID, c.StudentID, c.CourseID, c.EnrollmentID, c.IssuedAt,
	))
	switch {
	case noRows(err):
		if err := sp.Commit(ctx); err != nil {
			return progress.Certificate{}, false, fmt.Errorf("create certificate: release savepoint: %w", err)
		}
		existing, ok, err := t.FindCertificate(ctx, c.EnrollmentID)
		if err != nil {
			return progress.Certificate{}, false, err
		}
		if !ok {
			return progress.Certificate{}, false, fmt.Errorf("create certificate: conflicting row vanished")
		}
		return existing, false, nil
	case isUniqueViolation(err, "certificates_certificate_id_key"):
		return progress.Certificate{}, false, apperr.New(apperr.Conflict, "certificate id %s already issued", c.CertificateID)
	case err != nil:
		return progress.Certificate{}, false, mapError(err, "create certificate")
	}

	if err := sp.Commit(ctx); err != nil {
		return progress.Certificate{}, false, fmt.Errorf("create certificate: release savepoint: %w", err)
	}
	return created, true, nil
}

func (t *pgTx) DeleteCertificate(ctx context.Context, enrollmentID string) (progress.Certificate, bool, error) {
	if !validIDs(enrollmentID) {
		return progress.Certificate{}, false, nil
	}
	c, err := scanCertificate(t.q.QueryRow(ctx,
		`DELETE FROM certificates WHERE enrollment_id = $1::uuid RETURNING `+certificateColumns,
		enrollmentID,
	))
	if noRows(err) {
		return progress.Certificate{}, false, nil
	}
	if err != nil {
		return progress.Certificate{}, false, fmt.Errorf("delete certificate: %w", err)
	}
	return c, true, nil
}

func (t *pgTx) ListCertificates(ctx context.Context, filter progress.CertificateFilter) ([]progress.Certificate, error) {
	rows, err := t.q.Query(ctx,
		`SELECT c.id::text, c.certificate_id, c.student_id::text, c.course_id::text, c.enrollment_id::text, c.issued_at
		 FROM certificates c
		 JOIN courses co ON co.id = c.course_id
		 WHERE ($1 = '' OR c.student_id::text = $1)
		   AND ($2 = '' OR co.instructor_id::text = $2)
		 ORDER BY c.issued_at, c.certificate_id`,
		filter.StudentID, filter.InstructorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return collect(rows, "list certificates", scanCertificate)
}
