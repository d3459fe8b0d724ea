package catalog

import "time"

// Course is a unit of study owned by one instructor.
type Course struct {
	ID            string    `json:"id"`
	InstructorID  string    `json:"instructor_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category,omitempty"`
	Level         string    `json:"level,omitempty"`
	Price         int64     `json:"price"` // minor currency units
	DurationHours float64   `json:"duration_hours"`
	IsPublished   bool      `json:"is_published"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ContentType is the body format of a lesson.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
)

// Lesson is an ordered member of a course.
type Lesson struct {
	ID              string      `json:"id"`
	CourseID        string      `json:"course_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	ContentType     ContentType `json:"content_type"`
	Content         string      `json:"content,omitempty"`
	VideoURL        string      `json:"video_url,omitempty"`
	Order           int         `json:"order"`
	DurationMinutes int         `json:"duration_minutes"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Quiz is the optional assessment gating a lesson's completion.
type Quiz struct {
	ID           string    `json:"id"`
	LessonID     string    `json:"lesson_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PassingScore int       `json:"passing_score"` // percentage, 0-100
	MaxAttempts  int       `json:"max_attempts"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuestionType is the answer format of a question.
type QuestionType string

const (
	MultipleChoice QuestionType = "mcq"
	TrueFalse      QuestionType = "tf"
	ShortAnswer    QuestionType = "sa"
)

// Question is one item of a quiz.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quiz_id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
	Order         int          `json:"order"`
}

// CourseFilter narrows ListCourses.
type CourseFilter struct {
	InstructorID  string
	PublishedOnly bool
}
