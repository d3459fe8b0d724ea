package progress

import "time"

// Enrollment is a student's membership in a course.
type Enrollment struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	CourseID    string     `json:"course_id"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LessonProgress is one student's state on one lesson.
type LessonProgress struct {
	ID           string     `json:"id"`
	EnrollmentID string     `json:"enrollment_id"`
	StudentID    string     `json:"student_id"`
	LessonID     string     `json:"lesson_id"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastAccessed time.Time  `json:"last_accessed"`
}

// QuestionResult is the graded snapshot of one answered question. It is
// stored with the attempt so later edits to the quiz do not alter history.
type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	QuestionText  string `json:"question_text"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Points        int    `json:"points"`
	Awarded       int    `json:"awarded"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuizAttempt is an immutable record of one graded submission.
type QuizAttempt struct {
	ID            string           `json:"id"`
	StudentID     string           `json:"student_id"`
	QuizID        string           `json:"quiz_id"`
	EnrollmentID  string           `json:"enrollment_id"`
	AttemptNumber int              `json:"attempt_number"`
	Score         float64          `json:"score"` // percentage, two decimals
	RawPoints     int              `json:"raw_points"`
	MaxPoints     int              `json:"max_points"`
	Passed        bool             `json:"passed"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   time.Time        `json:"completed_at"`
	Results       []QuestionResult `json:"results"`
}

// Certificate is the credential issued for a completed enrollment.
type Certificate struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	StudentID     string    `json:"student_id"`
	CourseID      string    `json:"course_id"`
	EnrollmentID  string    `json:"enrollment_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Answer is one submitted answer.
type Answer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

// CertificateInfo is the public verification view of a certificate.
type CertificateInfo struct {
	CertificateID  string     `json:"certificate_id"`
	Valid          bool       `json:"valid"`
	StudentID      string     `json:"student_id"`
	StudentName    string     `json:"student_name"`
	CourseID       string     `json:"course_id"`
	CourseTitle    string     `json:"course_title"`
	InstructorName string     `json:"instructor_name"`
	IssuedAt       time.Time  `json:"issued_at"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	VerifiedAt     time.Time  `json:"verified_at"`
}

// EnrollmentFilter narrows ListEnrollments. Empty fields match everything.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
}

// CertificateFilter narrows ListCertificates. Empty fields match everything.
type CertificateFilter struct {
	StudentID    string
	InstructorID string
}
