package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/access"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
)

const (
	defaultPassingScore = 70
	defaultMaxAttempts  = 3
)

// ServiceConfig holds dependencies for the authoring service.
type ServiceConfig struct {
	Store               Store
	DefaultPassingScore int // default 70
	DefaultMaxAttempts  int // default 3
}

// Service implements catalog authoring with ownership checks.
type Service struct {
	store        Store
	passingScore int
	maxAttempts  int
}

// NewService creates a catalog service.
func NewService(cfg ServiceConfig) *Service {
	passing := cfg.DefaultPassingScore
	if passing == 0 {
		passing = defaultPassingScore
	}
	attempts := cfg.DefaultMaxAttempts
	if attempts == 0 {
		attempts = defaultMaxAttempts
	}
	return &Service{
		store:        cfg.Store,
		passingScore: passing,
		maxAttempts:  attempts,
	}
}

// NewCourse is the input for CreateCourse.
type NewCourse struct {
	// InstructorID is only honoured for admins; instructors always own
	// the courses they create.
	InstructorID  string  `json:"instructor_id"`
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=5000"`
	Category      string  `json:"category" validate:"max=100"`
	Level         string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Price         int64   `json:"price" validate:"gte=0"`
	DurationHours float64 `json:"duration_hours" validate:"gte=0"`
	Publish       bool    `json:"publish"`
}

// CourseUpdate is a partial update; nil fields are left unchanged.
type CourseUpdate struct {
	Title         *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	Category      *string  `json:"category" validate:"omitempty,max=100"`
	Level         *string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Price         *int64   `json:"price" validate:"omitempty,gte=0"`
	DurationHours *float64 `json:"duration_hours" validate:"omitempty,gte=0"`
}

// NewLesson is the input for CreateLesson.
type NewLesson struct {
	CourseID        string `json:"course_id" validate:"required"`
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=5000"`
	ContentType     string `json:"content_type" validate:"omitempty,oneof=text video"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	Order           int    `json:"order" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

// NewQuiz is the input for CreateQuiz.
type NewQuiz struct {
	LessonID     string `json:"lesson_id" validate:"required"`
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	PassingScore *int   `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
	MaxAttempts  *int   `json:"max_attempts" validate:"omitempty,gte=1"`
	IsActive     *bool  `json:"is_active"`
}

// NewQuestion is the input for AddQuestion.
type NewQuestion struct {
	QuizID        string   `json:"quiz_id" validate:"required"`
	Type          string   `json:"type" validate:"required,oneof=mcq tf sa"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Explanation   string   `json:"explanation"`
	Points        *int     `json:"points" validate:"omitempty,gte=0"`
	Order         int      `json:"order" validate:"gte=0"`
}

// CreateCourse creates an unpublished course unless Publish is set.
func (s *Service) CreateCourse(ctx context.Context, actor access.Actor, in NewCourse) (Course, error) {
	if err := actor.Require(access.RoleInstructor, access.RoleAdmin); err != nil {
		return Course{}, err
	}
	if err := validate.Struct(in); err != nil {
		return Course{}, err
	}

	owner := actor.UserID
	if actor.IsAdmin() && in.InstructorID != "" {
		owner = in.InstructorID
	}

	c, err := s.store.CreateCourse(ctx, Course{
		InstructorID:  owner,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Category:      in.Category,
		Level:         in.Level,
		Price:         in.Price,
		DurationHours: in.DurationHours,
		IsPublished:   in.Publish,
	})
	if err != nil {
		return Course{}, fmt.Errorf("create course: %w", err)
	}

	slog.Info("course created", "course_id", c.ID, "instructor_id", c.InstructorID)
	return c, nil
}

// GetCourse returns a course. Unpublished courses are visible only to their
// owner and admins.
func (s *Service) GetCourse(ctx context.Context, actor access.Actor, id string) (Course, error) {
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsPublished && !actor.CanManage(c.InstructorID) {
		return Course{}, apperr.New(apperr.NotFound, "course %s not found", id)
	}
	return c, nil
}

// ListCourses lists published courses plus, for instructors, their own drafts.
func (s *Service) ListCourses(ctx context.Context, actor access.Actor) ([]Course, error) {
	if actor.IsAdmin() {
		return s.store.ListCourses(ctx, CourseFilter{})
	}
	courses, err := s.store.ListCourses(ctx, CourseFilter{PublishedOnly: true})
	if err != nil {
		return nil, err
	}
	if !actor.IsInstructor() {
		return courses, nil
	}
	own, err := s.store.ListCourses(ctx, CourseFilter{InstructorID: actor.UserID})
	if err != nil {
		return nil, err
	}
	for _, c := range own {
		if !c.IsPublished {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

// UpdateCourse applies a partial update. Only the owning instructor or an
// admin may update a course.
func (s *Service) UpdateCourse(ctx context.Context, actor access.Actor, id string, in CourseUpdate) (Course, error) {
	if err := validate.Struct(in); err != nil {
		return Course{}, err
	}
	c, err := s.ownedCourse(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}

	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.Level != nil {
		c.Level = *in.Level
	}
	if in.Price != nil {
		c.Price = *in.Price
	}
	if in.DurationHours != nil {
		c.DurationHours = *in.DurationHours
	}

	return s.store.UpdateCourse(ctx, c)
}

// SetPublished publishes or unpublishes a course.
func (s *Service) SetPublished(ctx context.Context, actor access.Actor, id string, published bool) (Course, error) {
	c, err := s.ownedCourse(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	if c.IsPublished == published {
		return c, nil
	}
	c.IsPublished = published
	c, err = s.store.UpdateCourse(ctx, c)
	if err != nil {
		return Course{}, err
	}
	slog.Info("course publication changed", "course_id", c.ID, "published", published)
	return c, nil
}

// CreateLesson appends a lesson to a course owned by the actor.
func (s *Service) CreateLesson(ctx context.Context, actor access.Actor, in NewLesson) (Lesson, error) {
	if err := validate.Struct(in); err != nil {
		return Lesson{}, err
	}
	if _, err := s.ownedCourse(ctx, actor, in.CourseID); err != nil {
		return Lesson{}, err
	}

	contentType := ContentType(in.ContentType)
	if contentType == "" {
		contentType = ContentText
	}
	if contentType == ContentVideo && in.VideoURL == "" {
		return Lesson{}, apperr.Invalid("invalid input", map[string]string{
			"video_url": "video lessons require a video URL",
		})
	}

	return s.store.CreateLesson(ctx, Lesson{
		CourseID:        in.CourseID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		ContentType:     contentType,
		Content:         in.Content,
		VideoURL:        in.VideoURL,
		Order:           in.Order,
		DurationMinutes: in.DurationMinutes,
	})
}

// CreateQuiz attaches a quiz to a lesson. A lesson has at most one quiz.
func (s *Service) CreateQuiz(ctx context.Context, actor access.Actor, in NewQuiz) (Quiz, error) {
	if err := validate.Struct(in); err != nil {
		return Quiz{}, err
	}
	lesson, err := s.store.GetLesson(ctx, in.LessonID)
	if err != nil {
		return Quiz{}, err
	}
	if _, err := s.ownedCourse(ctx, actor, lesson.CourseID); err != nil {
		return Quiz{}, err
	}
	if _, exists, err := s.store.FindQuizByLesson(ctx, lesson.ID); err != nil {
		return Quiz{}, err
	} else if exists {
		return Quiz{}, apperr.Invalid("invalid input", map[string]string{
			"lesson_id": "lesson already has a quiz",
		})
	}

	q := Quiz{
		LessonID:     lesson.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		PassingScore: s.passingScore,
		MaxAttempts:  s.maxAttempts,
		IsActive:     true,
	}
	if in.PassingScore != nil {
		q.PassingScore = *in.PassingScore
	}
	if in.MaxAttempts != nil {
		q.MaxAttempts = *in.MaxAttempts
	}
	if in.IsActive != nil {
		q.IsActive = *in.IsActive
	}
	return s.store.CreateQuiz(ctx, q)
}

// AddQuestion appends a question to a quiz.
func (s *Service) AddQuestion(ctx context.Context, actor access.Actor, in NewQuestion) (Question, error) {
	if err := validate.Struct(in); err != nil {
		return Question{}, err
	}
	if err := checkAnswerKey(in); err != nil {
		return Question{}, err
	}
	quiz, err := s.store.GetQuiz(ctx, in.QuizID)
	if err != nil {
		return Question{}, err
	}
	lesson, err := s.store.GetLesson(ctx, quiz.LessonID)
	if err != nil {
		return Question{}, err
	}
	if _, err := s.ownedCourse(ctx, actor, lesson.CourseID); err != nil {
		return Question{}, err
	}

	points := 1
	if in.Points != nil {
		points = *in.Points
	}
	return s.store.CreateQuestion(ctx, Question{
		QuizID:        quiz.ID,
		Type:          QuestionType(in.Type),
		Text:          strings.TrimSpace(in.Text),
		Options:       in.Options,
		CorrectAnswer: strings.TrimSpace(in.CorrectAnswer),
		Explanation:   in.Explanation,
		Points:        points,
		Order:         in.Order,
	})
}

func (s *Service) ownedCourse(ctx context.Context, actor access.Actor, courseID string) (Course, error) {
	if err := actor.Require(access.RoleInstructor, access.RoleAdmin); err != nil {
		return Course{}, err
	}
	c, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err := actor.RequireOwner(c.InstructorID); err != nil {
		return Course{}, err
	}
	return c, nil
}

func checkAnswerKey(in NewQuestion) error {
	switch QuestionType(in.Type) {
	case MultipleChoice:
		if len(in.Options) < 2 {
			return apperr.Invalid("invalid input", map[string]string{
				"options": "multiple choice questions need at least two options",
			})
		}
		answer := strings.TrimSpace(in.CorrectAnswer)
		if !slices.ContainsFunc(in.Options, func(o string) bool {
			return strings.EqualFold(strings.TrimSpace(o), answer)
		}) {
			return apperr.Invalid("invalid input", map[string]string{
				"correct_answer": "must be one of the options",
			})
		}
	case TrueFalse:
		a := strings.ToLower(strings.TrimSpace(in.CorrectAnswer))
		if a != "true" && a != "false" {
			return apperr.Invalid("invalid input", map[string]string{
				"correct_answer": "must be true or false",
			})
		}
	}
	return nil
}
