// Package catalog owns courses, lessons, quizzes and questions: their
// storage contract, instructor authoring, and YAML import.
package catalog

import "context"

// Reader is the read side of the catalog. Lookups of missing records return
// an apperr NotFound error.
type Reader interface {
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
	GetLesson(ctx context.Context, id string) (Lesson, error)
	// ListLessons returns the course's lessons sorted by Order.
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	FindQuizByLesson(ctx context.Context, lessonID string) (Quiz, bool, error)
	// ListQuestions returns the quiz's questions sorted by Order.
	ListQuestions(ctx context.Context, quizID string) ([]Question, error)
}

// Store persists catalog records.
type Store interface {
	Reader
	CreateCourse(ctx context.Context, c Course) (Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	// CreateLesson assigns max(order)+1 when l.Order is zero. A duplicate
	// order within the course is a Conflict.
	CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
	// CreateQuiz fails with Conflict if the lesson already has a quiz.
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	// CreateQuestion assigns max(order)+1 when q.Order is zero.
	CreateQuestion(ctx context.Context, q Question) (Question, error)
}
