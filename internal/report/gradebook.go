package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

const (
	gradesSheet  = "Grades"
	quizzesSheet = "Quizzes"
	timeLayout   = "2006-01-02 15:04"
)

// WriteGradebook renders a snapshot as an xlsx workbook. The Grades sheet
// has one row per enrollment and one best-score column per quiz; the
// Quizzes sheet carries the per-quiz aggregates. names maps student ids to
// display names; missing entries fall back to the id.
func WriteGradebook(w io.Writer, s CourseSnapshot, names map[string]string, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := []any{"Student", "Student ID", "Enrolled At", "Lessons Completed", "Progress %", "Completed", "Completed At"}
	for _, q := range s.Quizzes {
		header = append(header, q.Title+" (best)")
	}
	if err := writeRow(f, gradesSheet, 1, header, bold); err != nil {
		return err
	}

	for i, e := range s.Enrollments {
		summary := progress.Summarize(s.Lessons, e.Progress)
		name := names[e.Enrollment.StudentID]
		if name == "" {
			name = e.Enrollment.StudentID
		}
		completedAt := ""
		if e.Enrollment.CompletedAt != nil {
			completedAt = e.Enrollment.CompletedAt.UTC().Format(timeLayout)
		}
		row := []any{
			name,
			e.Enrollment.StudentID,
			e.Enrollment.EnrolledAt.UTC().Format(timeLayout),
			fmt.Sprintf("%d/%d", summary.CompletedLessons, summary.TotalLessons),
			summary.Percentage,
			yesNo(e.Enrollment.Completed),
			completedAt,
		}
		best := BestScores(e.Attempts)
		for _, q := range s.Quizzes {
			if score, ok := best[q.ID]; ok {
				row = append(row, score)
			} else {
				row = append(row, "")
			}
		}
		if err := writeRow(f, gradesSheet, i+2, row, 0); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(quizzesSheet); err != nil {
		return fmt.Errorf("create quizzes sheet: %w", err)
	}
	if err := writeRow(f, quizzesSheet, 1,
		[]any{"Quiz", "Passing Score", "Attempts", "Students", "Average Score", "Pass Rate %"}, bold); err != nil {
		return err
	}
	for i, qp := range QuizStats(s) {
		row := []any{qp.Title, qp.PassingScore, qp.Attempts, qp.Students, qp.AverageScore, qp.PassRate}
		if err := writeRow(f, quizzesSheet, i+2, row, 0); err != nil {
			return err
		}
	}
	footer := []any{"Generated", now.UTC().Format(timeLayout)}
	if err := writeRow(f, quizzesSheet, len(s.Quizzes)+3, footer, 0); err != nil {
		return err
	}

	if err := f.SetColWidth(gradesSheet, "A", "C", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write gradebook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	if style == 0 || len(values) == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellStyle(sheet, start, end, style); err != nil {
		return fmt.Errorf("style %s row %d: %w", sheet, row, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
