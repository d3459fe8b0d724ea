package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-learn/internal/access"
)

//go:embed schema.json
var courseSchema string

// CourseFile is the YAML layout of an importable course.
type CourseFile struct {
	Title         string       `yaml:"title"`
	InstructorID  string       `yaml:"instructor_id"`
	Description   string       `yaml:"description"`
	Category      string       `yaml:"category"`
	Level         string       `yaml:"level"`
	Price         int64        `yaml:"price"`
	DurationHours float64      `yaml:"duration_hours"`
	Published     bool         `yaml:"published"`
	Lessons       []LessonFile `yaml:"lessons"`
}

// LessonFile is a lesson inside a CourseFile.
type LessonFile struct {
	Title           string    `yaml:"title"`
	Description     string    `yaml:"description"`
	ContentType     string    `yaml:"content_type"`
	Content         string    `yaml:"content"`
	VideoURL        string    `yaml:"video_url"`
	DurationMinutes int       `yaml:"duration_minutes"`
	Quiz            *QuizFile `yaml:"quiz"`
}

// QuizFile is a lesson's quiz inside a CourseFile.
type QuizFile struct {
	Title        string         `yaml:"title"`
	Description  string         `yaml:"description"`
	PassingScore *int           `yaml:"passing_score"`
	MaxAttempts  *int           `yaml:"max_attempts"`
	Active       *bool          `yaml:"active"`
	Questions    []QuestionFile `yaml:"questions"`
}

// QuestionFile is a quiz question inside a CourseFile.
type QuestionFile struct {
	Type          string   `yaml:"type"`
	Text          string   `yaml:"text"`
	Options       []string `yaml:"options"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Explanation   string   `yaml:"explanation"`
	Points        *int     `yaml:"points"`
}

// Loader imports YAML course definitions through the authoring service.
type Loader struct {
	service *Service
	schema  *gojsonschema.Schema
	actor   access.Actor
}

// NewLoader creates a loader that writes through svc.
func NewLoader(svc *Service) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(courseSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling course schema: %w", err)
	}
	return &Loader{
		service: svc,
		schema:  schema,
		actor:   access.Admin("catalog-import"),
	}, nil
}

// ImportDir imports every course YAML under rootDir. Invalid files are
// logged and skipped; courses whose title already exists for the same
// instructor are left untouched.
func (l *Loader) ImportDir(ctx context.Context, rootDir string) ([]Course, error) {
	var imported []Course
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		c, created, err := l.ImportFile(ctx, path)
		if err != nil {
			slog.Warn("skipping invalid course YAML", "path", path, "error", err)
			return nil
		}
		if created {
			imported = append(imported, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing catalog: %w", err)
	}

	slog.Info("catalog imported", "courses", len(imported), "path", rootDir)
	return imported, nil
}

// ImportFile validates and imports one course file. created is false when
// the course already existed.
func (l *Loader) ImportFile(ctx context.Context, path string) (Course, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Course{}, false, err
	}
	cf, err := l.Parse(data)
	if err != nil {
		return Course{}, false, err
	}

	existing, err := l.service.store.ListCourses(ctx, CourseFilter{InstructorID: cf.InstructorID})
	if err != nil {
		return Course{}, false, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Title, strings.TrimSpace(cf.Title)) {
			return c, false, nil
		}
	}

	c, err := l.create(ctx, cf)
	if err != nil {
		return Course{}, false, err
	}
	return c, true, nil
}

// Parse decodes a course document and checks it against the course schema.
func (l *Loader) Parse(data []byte) (CourseFile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CourseFile{}, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return CourseFile{}, fmt.Errorf("empty document")
	}

	result, err := l.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return CourseFile{}, fmt.Errorf("validate course: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return CourseFile{}, fmt.Errorf("course does not match schema: %s", strings.Join(msgs, "; "))
	}

	var cf CourseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return CourseFile{}, fmt.Errorf("decode course: %w", err)
	}
	return cf, nil
}

func (l *Loader) create(ctx context.Context, cf CourseFile) (Course, error) {
	course, err := l.service.CreateCourse(ctx, l.actor, NewCourse{
		InstructorID:  cf.InstructorID,
		Title:         cf.Title,
		Description:   cf.Description,
		Category:      cf.Category,
		Level:         cf.Level,
		Price:         cf.Price,
		DurationHours: cf.DurationHours,
		Publish:       cf.Published,
	})
	if err != nil {
		return Course{}, err
	}

	for i, lf := range cf.Lessons {
		lesson, err := l.service.CreateLesson(ctx, l.actor, NewLesson{
			CourseID:        course.ID,
			Title:           lf.Title,
			Description:     lf.Description,
			ContentType:     lf.ContentType,
			Content:         lf.Content,
			VideoURL:        lf.VideoURL,
			DurationMinutes: lf.DurationMinutes,
		})
		if err != nil {
			return Course{}, fmt.Errorf("lesson %d: %w", i+1, err)
		}
		if lf.Quiz == nil {
			continue
		}

		quiz, err := l.service.CreateQuiz(ctx, l.actor, NewQuiz{
			LessonID:     lesson.ID,
			Title:        lf.Quiz.Title,
			Description:  lf.Quiz.Description,
			PassingScore: lf.Quiz.PassingScore,
			MaxAttempts:  lf.Quiz.MaxAttempts,
			IsActive:     lf.Quiz.Active,
		})
		if err != nil {
			return Course{}, fmt.Errorf("lesson %d quiz: %w", i+1, err)
		}
		for j, qf := range lf.Quiz.Questions {
			if _, err := l.service.AddQuestion(ctx, l.actor, NewQuestion{
				QuizID:        quiz.ID,
				Type:          qf.Type,
				Text:          qf.Text,
				Options:       qf.Options,
				CorrectAnswer: qf.CorrectAnswer,
				Explanation:   qf.Explanation,
				Points:        qf.Points,
			}); err != nil {
				return Course{}, fmt.Errorf("lesson %d question %d: %w", i+1, j+1, err)
			}
		}
	}

	slog.Info("course imported", "course_id", course.ID, "lessons", len(cf.Lessons))
	return course, nil
}
