package progress

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

const (
	certificatePrefix = "CERT-"
	maxIssueAttempts  = 5
)

var certificatePattern = regexp.MustCompile(`^CERT-[0-9A-F]{12}$`)

// NewCertificateCode returns a public certificate id: CERT- followed by 12
// uppercase hex characters from a cryptographic source.
func NewCertificateCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate certificate id: %w", err)
	}
	return certificatePrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// ValidCertificateCode reports whether s has the public certificate id format.
func ValidCertificateCode(s string) bool {
	return certificatePattern.MatchString(s)
}

// issue returns the enrollment's certificate, creating it if absent.
func (e *Engine) issue(ctx context.Context, tx Tx, out *outbox, enr Enrollment) (Certificate, error) {
	for range maxIssueAttempts {
		code, err := e.newCode()
		if err != nil {
			return Certificate{}, err
		}
		cert, created, err := tx.CreateCertificate(ctx, Certificate{
			CertificateID: code,
			StudentID:     enr.StudentID,
			CourseID:      enr.CourseID,
			EnrollmentID:  enr.ID,
			IssuedAt:      e.now(),
		})
		if apperr.Is(err, apperr.Conflict) {
			slog.Warn("certificate id collision, retrying", "enrollment_id", enr.ID)
			continue
		}
		if err != nil {
			return Certificate{}, fmt.Errorf("create certificate: %w", err)
		}
		if created {
			out.emit(Event{
				EnrollmentID: enr.ID,
				UserID:       enr.StudentID,
				CourseID:     enr.CourseID,
				EventType:    EventCertificateIssued,
				Data:         map[string]any{"certificate_id": cert.CertificateID},
			})
		}
		return cert, nil
	}
	return Certificate{}, fmt.Errorf("create certificate: no unique id after %d attempts", maxIssueAttempts)
}

// IssueCertificate returns the certificate of a completed enrollment,
// issuing it if needed. Admins may call it for any enrollment, students for
// their own.
func (e *Engine) IssueCertificate(ctx context.Context, actor access.Actor, enrollmentID string) (Certificate, error) {
	if err := actor.Require(access.RoleStudent, access.RoleAdmin); err != nil {
		return Certificate{}, err
	}

	var cert Certificate
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		enr, err := tx.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if actor.IsStudent() && actor.UserID != enr.StudentID {
			return apperr.New(apperr.PermissionDenied, "cannot issue a certificate for another student")
		}
		if !enr.Completed {
			return apperr.New(apperr.NotCompleted, "course not completed")
		}
		cert, err = e.issue(ctx, tx, out, enr)
		return err
	})
	if err != nil {
		return Certificate{}, err
	}
	return cert, nil
}

// RegenerateCertificate replaces the acting student's certificate for a
// completed course with one under a fresh id. The old id stops verifying.
func (e *Engine) RegenerateCertificate(ctx context.Context, actor access.Actor, courseID string) (Certificate, error) {
	if err := actor.Require(access.RoleStudent); err != nil {
		return Certificate{}, err
	}

	var cert Certificate
	err := e.run(ctx, func(tx Tx, out *outbox) error {
		enr, ok, err := tx.LockEnrollment(ctx, actor.UserID, courseID)
		if err != nil {
			return err
		}
		if !ok || !enr.Completed {
			return apperr.New(apperr.NotCompleted, "course not completed")
		}

		old, had, err := tx.DeleteCertificate(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("delete certificate: %w", err)
		}
		if had {
			out.revoked = append(out.revoked, old.CertificateID)
			out.emit(Event{
				EnrollmentID: enr.ID,
				UserID:       enr.StudentID,
				CourseID:     enr.CourseID,
				EventType:    EventCertificateRevoked,
				Data:         map[string]any{"certificate_id": old.CertificateID, "reason": "regenerated"},
			})
		}

		cert, err = e.issue(ctx, tx, out, enr)
		return err
	})
	if err != nil {
		return Certificate{}, err
	}

	slog.Info("certificate regenerated", "student_id", actor.UserID, "course_id", courseID, "certificate_id", cert.CertificateID)
	return cert, nil
}

// VerifyCertificate looks up a certificate by its public id. It needs no
// actor and has no side effects on learner state.
func (e *Engine) VerifyCertificate(ctx context.Context, certificateID string) (CertificateInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(certificateID))
	if !ValidCertificateCode(code) {
		return CertificateInfo{}, apperr.New(apperr.NotFound, "certificate %s not found", certificateID)
	}

	if entry, ok := e.cache.Get(ctx, code); ok {
		if entry.Revoked {
			return CertificateInfo{}, apperr.New(apperr.NotFound, "certificate %s not found", code)
		}
		info := entry.Info
		info.VerifiedAt = e.now()
		return info, nil
	}

	var (
		info         CertificateInfo
		instructorID string
	)
	err := e.view(ctx, func(tx Tx) error {
		cert, ok, err := tx.FindCertificateByCode(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.NotFound, "certificate %s not found", code)
		}
		enr, err := tx.GetEnrollment(ctx, cert.EnrollmentID)
		if err != nil {
			return err
		}
		course, err := tx.GetCourse(ctx, cert.CourseID)
		if err != nil {
			return err
		}

		instructorID = course.InstructorID
		info = CertificateInfo{
			CertificateID: cert.CertificateID,
			Valid:         enr.Completed,
			StudentID:     cert.StudentID,
			CourseID:      course.ID,
			CourseTitle:   course.Title,
			IssuedAt:      cert.IssuedAt,
			EnrolledAt:    enr.EnrolledAt,
			CompletedAt:   enr.CompletedAt,
		}
		return nil
	})
	if err != nil {
		return CertificateInfo{}, err
	}

	info.StudentName = e.displayName(ctx, info.StudentID)
	info.InstructorName = e.displayName(ctx, instructorID)

	e.cache.Add(ctx, code, info)
	info.VerifiedAt = e.now()
	return info, nil
}

// ListCertificates lists certificates visible to the actor: a student's own,
// those for an instructor's courses, or all for admins.
func (e *Engine) ListCertificates(ctx context.Context, actor access.Actor) ([]Certificate, error) {
	var filter CertificateFilter
	switch actor.Role {
	case access.RoleStudent:
		filter.StudentID = actor.UserID
	case access.RoleInstructor:
		filter.InstructorID = actor.UserID
	case access.RoleAdmin:
	default:
		return nil, apperr.New(apperr.Unauthenticated, "no authenticated user")
	}

	var certs []Certificate
	err := e.view(ctx, func(tx Tx) error {
		var err error
		certs, err = tx.ListCertificates(ctx, filter)
		return err
	})
	return certs, err
}
