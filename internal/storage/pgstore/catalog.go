package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

const courseColumns = `id::text, instructor_id::text, title, description, category, level,
	price, duration_hours, is_published, created_at, updated_at`

func scanCourse(row pgx.Row) (catalog.Course, error) {
	var c catalog.Course
	err := row.Scan(
		&c.ID,
		&c.InstructorID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Level,
		&c.Price,
		&c.DurationHours,
		&c.IsPublished,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const lessonColumns = `id::text, course_id::text, title, description, content_type, content,
	video_url, lesson_order, duration_minutes, created_at`

func scanLesson(row pgx.Row) (catalog.Lesson, error) {
	var l catalog.Lesson
	var contentType string
	err := row.Scan(
		&l.ID,
		&l.CourseID,
		&l.Title,
		&l.Description,
		&contentType,
		&l.Content,
		&l.VideoURL,
		&l.Order,
		&l.DurationMinutes,
		&l.CreatedAt,
	)
	l.ContentType = catalog.ContentType(contentType)
	return l, err
}

const quizColumns = `id::text, lesson_id::text, title, description, passing_score, max_attempts, is_active, created_at`

func scanQuiz(row pgx.Row) (catalog.Quiz, error) {
	var q catalog.Quiz
	err := row.Scan(
		&q.ID,
		&q.LessonID,
		&q.Title,
		&q.Description,
		&q.PassingScore,
		&q.MaxAttempts,
		&q.IsActive,
		&q.CreatedAt,
	)
	return q, err
}

const questionColumns = `id::text, quiz_id::text, question_type, text, options, correct_answer,
	explanation, points, question_order`

func scanQuestion(row pgx.Row) (catalog.Question, error) {
	var q catalog.Question
	var qType string
	err := row.Scan(
		&q.ID,
		&q.QuizID,
		&qType,
		&q.Text,
		&q.Options,
		&q.CorrectAnswer,
		&q.Explanation,
		&q.Points,
		&q.Order,
	)
	q.Type = catalog.QuestionType(qType)
	if len(q.Options) == 0 {
		q.Options = nil
	}
	return q, err
}

func (s queries) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	if !validIDs(id) {
		return catalog.Course{}, notFound("course", id)
	}
	c, err := scanCourse(s.q.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1::uuid`, id))
	if err != nil {
		return catalog.Course{}, mapError(err, "get course "+id)
	}
	return c, nil
}

func (s queries) ListCourses(ctx context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	if filter.InstructorID != "" && !validIDs(filter.InstructorID) {
		return []catalog.Course{}, nil
	}
	rows, err := s.q.Query(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE ($1 = '' OR instructor_id::text = $1)
		   AND (NOT $2 OR is_published)
		 ORDER BY created_at, title, id`,
		filter.InstructorID,
		filter.PublishedOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return collect(rows, "list courses", scanCourse)
}

func (s queries) GetLesson(ctx context.Context, id string) (catalog.Lesson, error) {
	if !validIDs(id) {
		return catalog.Lesson{}, notFound("lesson", id)
	}
	l, err := scanLesson(s.q.QueryRow(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE id = $1::uuid`, id))
	if err != nil {
		return catalog.Lesson{}, mapError(err, "get lesson "+id)
	}
	return l, nil
}

func (s queries) ListLessons(ctx context.Context, courseID string) ([]catalog.Lesson, error) {
	if !validIDs(courseID) {
		return []catalog.Lesson{}, nil
	}
	rows, err := s.q.Query(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE course_id = $1::uuid ORDER BY lesson_order`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return collect(rows, "list lessons", scanLesson)
}

func (s queries) GetQuiz(ctx context.Context, id string) (catalog.Quiz, error) {
	if !validIDs(id) {
		return catalog.Quiz{}, notFound("quiz", id)
	}
	q, err := scanQuiz(s.q.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1::uuid`, id))
	if err != nil {
		return catalog.Quiz{}, mapError(err, "get quiz "+id)
	}
	return q, nil
}

func (s queries) FindQuizByLesson(ctx context.Context, lessonID string) (catalog.Quiz, bool, error) {
	if !validIDs(lessonID) {
		return catalog.Quiz{}, false, nil
	}
	q, err := scanQuiz(s.q.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE lesson_id = $1::uuid`, lessonID))
	if noRows(err) {
		return catalog.Quiz{}, false, nil
	}
	if err != nil {
		return catalog.Quiz{}, false, fmt.Errorf("find quiz by lesson: %w", err)
	}
	return q, true, nil
}

func (s queries) ListQuestions(ctx context.Context, quizID string) ([]catalog.Question, error) {
	if !validIDs(quizID) {
		return []catalog.Question{}, nil
	}
	rows, err := s.q.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE quiz_id = $1::uuid ORDER BY question_order`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return collect(rows, "list questions", scanQuestion)
}

func (s *Store) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	if !validIDs(c.InstructorID) {
		return catalog.Course{}, notFound("instructor", c.InstructorID)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO courses (instructor_id, title, description, category, level, price, duration_hours, is_published)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text, created_at, updated_at`,
		c.InstructorID,
		c.Title,
		c.Description,
		c.Category,
		c.Level,
		c.Price,
		c.DurationHours,
		c.IsPublished,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return catalog.Course{}, mapError(err, "create course")
	}
	return c, nil
}

func (s *Store) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	if !validIDs(c.ID) {
		return catalog.Course{}, notFound("course", c.ID)
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE courses
		 SET title = $2, description = $3, category = $4, level = $5, price = $6,
		     duration_hours = $7, is_published = $8, updated_at = NOW()
		 WHERE id = $1::uuid
		 RETURNING created_at, updated_at`,
		c.ID,
		c.Title,
		c.Description,
		c.Category,
		c.Level,
		c.Price,
		c.DurationHours,
		c.IsPublished,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return catalog.Course{}, mapError(err, "update course "+c.ID)
	}
	return c, nil
}

// CreateLesson computes the next order in the INSERT itself. Two concurrent
// appends can pick the same order; the loser gets a Conflict.
func (s *Store) CreateLesson(ctx context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	if !validIDs(l.CourseID) {
		return catalog.Lesson{}, notFound("course", l.CourseID)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lessons (course_id, title, description, content_type, content, video_url, lesson_order, duration_minutes)
		 SELECT $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text,
		        CASE WHEN $7::int > 0 THEN $7::int
		             ELSE COALESCE((SELECT MAX(lesson_order) FROM lessons WHERE course_id = $1::uuid), 0) + 1 END,
		        $8::int
		 RETURNING id::text, lesson_order, created_at`,
		l.CourseID,
		l.Title,
		l.Description,
		string(l.ContentType),
		l.Content,
		l.VideoURL,
		l.Order,
		l.DurationMinutes,
	).Scan(&l.ID, &l.Order, &l.CreatedAt)
	if err != nil {
		return catalog.Lesson{}, mapError(err, "create lesson")
	}
	return l, nil
}

func (s *Store) CreateQuiz(ctx context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	if !validIDs(q.LessonID) {
		return catalog.Quiz{}, notFound("lesson", q.LessonID)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quizzes (lesson_id, title, description, passing_score, max_attempts, is_active)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)
		 RETURNING id::text, created_at`,
		q.LessonID,
		q.Title,
		q.Description,
		q.PassingScore,
		q.MaxAttempts,
		q.IsActive,
	).Scan(&q.ID, &q.CreatedAt)
	if isUniqueViolation(err, "quizzes_lesson_id_key") {
		return catalog.Quiz{}, apperr.New(apperr.Conflict, "lesson %s already has a quiz", q.LessonID)
	}
	if err != nil {
		return catalog.Quiz{}, mapError(err, "create quiz")
	}
	return q, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q catalog.Question) (catalog.Question, error) {
	if !validIDs(q.QuizID) {
		return catalog.Question{}, notFound("quiz", q.QuizID)
	}
	options := q.Options
	if options == nil {
		options = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (quiz_id, question_type, text, options, correct_answer, explanation, points, question_order)
		 SELECT $1::uuid, $2::text, $3::text, $4::jsonb, $5::text, $6::text, $7::int,
		        CASE WHEN $8::int > 0 THEN $8::int
		             ELSE COALESCE((SELECT MAX(question_order) FROM questions WHERE quiz_id = $1::uuid), 0) + 1 END
		 RETURNING id::text, question_order`,
		q.QuizID,
		string(q.Type),
		q.Text,
		options,
		q.CorrectAnswer,
		q.Explanation,
		q.Points,
		q.Order,
	).Scan(&q.ID, &q.Order)
	if err != nil {
		return catalog.Question{}, mapError(err, "create question")
	}
	return q, nil
}
