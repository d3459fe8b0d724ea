package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// view answers catalog reads from one state snapshot.
type view struct {
	st *state
}

func (v view) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	c, ok := v.st.courses[id]
	if !ok {
		return catalog.Course{}, apperr.New(apperr.NotFound, "course %s not found", id)
	}
	return c, nil
}

func (v view) ListCourses(_ context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	out := []catalog.Course{}
	for _, c := range v.st.courses {
		if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
			continue
		}
		if filter.PublishedOnly && !c.IsPublished {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Course) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (v view) GetLesson(_ context.Context, id string) (catalog.Lesson, error) {
	l, ok := v.st.lessons[id]
	if !ok {
		return catalog.Lesson{}, apperr.New(apperr.NotFound, "lesson %s not found", id)
	}
	return l, nil
}

func (v view) ListLessons(_ context.Context, courseID string) ([]catalog.Lesson, error) {
	out := []catalog.Lesson{}
	for _, l := range v.st.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b catalog.Lesson) int { return cmp.Compare(a.Order, b.Order) })
	return out, nil
}

func (v view) GetQuiz(_ context.Context, id string) (catalog.Quiz, error) {
	q, ok := v.st.quizzes[id]
	if !ok {
		return catalog.Quiz{}, apperr.New(apperr.NotFound, "quiz %s not found", id)
	}
	return q, nil
}

func (v view) FindQuizByLesson(_ context.Context, lessonID string) (catalog.Quiz, bool, error) {
	for _, q := range v.st.quizzes {
		if q.LessonID == lessonID {
			return q, true, nil
		}
	}
	return catalog.Quiz{}, false, nil
}

func (v view) ListQuestions(_ context.Context, quizID string) ([]catalog.Question, error) {
	out := []catalog.Question{}
	for _, q := range v.st.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b catalog.Question) int { return cmp.Compare(a.Order, b.Order) })
	return out, nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	return s.read().GetCourse(ctx, id)
}

func (s *Store) ListCourses(ctx context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	return s.read().ListCourses(ctx, filter)
}

func (s *Store) GetLesson(ctx context.Context, id string) (catalog.Lesson, error) {
	return s.read().GetLesson(ctx, id)
}

func (s *Store) ListLessons(ctx context.Context, courseID string) ([]catalog.Lesson, error) {
	return s.read().ListLessons(ctx, courseID)
}

func (s *Store) GetQuiz(ctx context.Context, id string) (catalog.Quiz, error) {
	return s.read().GetQuiz(ctx, id)
}

func (s *Store) FindQuizByLesson(ctx context.Context, lessonID string) (catalog.Quiz, bool, error) {
	return s.read().FindQuizByLesson(ctx, lessonID)
}

func (s *Store) ListQuestions(ctx context.Context, quizID string) ([]catalog.Question, error) {
	return s.read().ListQuestions(ctx, quizID)
}

func (s *Store) CreateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	err := s.update(func(st *state) error {
		if c.ID == "" {
			c.ID = newID()
		}
		now := s.now()
		c.CreatedAt = now
		c.UpdatedAt = now
		st.courses[c.ID] = c
		return nil
	})
	return c, err
}

func (s *Store) UpdateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	err := s.update(func(st *state) error {
		old, ok := st.courses[c.ID]
		if !ok {
			return apperr.New(apperr.NotFound, "course %s not found", c.ID)
		}
		c.CreatedAt = old.CreatedAt
		c.UpdatedAt = s.now()
		st.courses[c.ID] = c
		return nil
	})
	return c, err
}

func (s *Store) CreateLesson(_ context.Context, l catalog.Lesson) (catalog.Lesson, error) {
	err := s.update(func(st *state) error {
		if _, ok := st.courses[l.CourseID]; !ok {
			return apperr.New(apperr.NotFound, "course %s not found", l.CourseID)
		}
		maxOrder := 0
		for _, other := range st.lessons {
			if other.CourseID != l.CourseID {
				continue
			}
			if l.Order != 0 && other.Order == l.Order {
				return apperr.New(apperr.Conflict, "lesson order %d already used in course", l.Order)
			}
			maxOrder = max(maxOrder, other.Order)
		}
		if l.Order == 0 {
			l.Order = maxOrder + 1
		}
		if l.ID == "" {
			l.ID = newID()
		}
		l.CreatedAt = s.now()
		st.lessons[l.ID] = l
		return nil
	})
	return l, err
}

func (s *Store) CreateQuiz(_ context.Context, q catalog.Quiz) (catalog.Quiz, error) {
	err := s.update(func(st *state) error {
		if _, ok := st.lessons[q.LessonID]; !ok {
			return apperr.New(apperr.NotFound, "lesson %s not found", q.LessonID)
		}
		for _, other := range st.quizzes {
			if other.LessonID == q.LessonID {
				return apperr.New(apperr.Conflict, "lesson %s already has a quiz", q.LessonID)
			}
		}
		if q.ID == "" {
			q.ID = newID()
		}
		q.CreatedAt = s.now()
		st.quizzes[q.ID] = q
		return nil
	})
	return q, err
}

func (s *Store) CreateQuestion(_ context.Context, q catalog.Question) (catalog.Question, error) {
	err := s.update(func(st *state) error {
		if _, ok := st.quizzes[q.QuizID]; !ok {
			return apperr.New(apperr.NotFound, "quiz %s not found", q.QuizID)
		}
		maxOrder := 0
		for _, other := range st.questions {
			if other.QuizID != q.QuizID {
				continue
			}
			if q.Order != 0 && other.Order == q.Order {
				return apperr.New(apperr.Conflict, "question order %d already used in quiz", q.Order)
			}
			maxOrder = max(maxOrder, other.Order)
		}
		if q.Order == 0 {
			q.Order = maxOrder + 1
		}
		if q.ID == "" {
			q.ID = newID()
		}
		q.Options = append([]string(nil), q.Options...)
		st.questions[q.ID] = q
		return nil
	})
	return q, err
}
