package report_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-learn/internal/report"
)

func openWorkbook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteGradebook(t *testing.T) {
	var buf bytes.Buffer
	names := map[string]string{"s1": "Grace Hopper"}
	if err := report.WriteGradebook(&buf, sampleSnapshot(), names, now); err != nil {
		t.Fatalf("WriteGradebook() error = %v", err)
	}

	f := openWorkbook(t, &buf)
	if got := f.GetSheetList(); !slices.Equal(got, []string{"Grades", "Quizzes"}) {
		t.Errorf("GetSheetList() = %v, want [Grades Quizzes]", got)
	}

	rows, err := f.GetRows("Grades")
	if err != nil {
		t.Fatalf("GetRows(Grades) error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want header + 3 students", len(rows))
	}
	if got := rows[0][len(rows[0])-1]; got != "Checkpoint (best)" {
		t.Errorf("last header = %q, want %q", got, "Checkpoint (best)")
	}

	tests := []struct {
		row  int
		col  int
		want string
	}{
		{1, 0, "Grace Hopper"},
		{1, 3, "2/2"},
		{1, 4, "100"},
		{1, 5, "yes"},
		{1, 7, "80"},
		{2, 0, "s2"},
		{2, 3, "1/2"},
		{2, 4, "50"},
		{2, 5, "no"},
		{2, 7, "40"},
		{3, 3, "0/2"},
	}
	for _, tt := range tests {
		if got := rows[tt.row][tt.col]; got != tt.want {
			t.Errorf("Grades[%d][%d] = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
	if len(rows[3]) > 7 && rows[3][7] != "" {
		t.Errorf("untouched student best score = %q, want empty", rows[3][7])
	}

	quizRows, err := f.GetRows("Quizzes")
	if err != nil {
		t.Fatalf("GetRows(Quizzes) error = %v", err)
	}
	want := []string{"Checkpoint", "70", "3", "2", "56.67", "33.33"}
	if !slices.Equal(quizRows[1], want) {
		t.Errorf("Quizzes row = %v, want %v", quizRows[1], want)
	}
}

func TestWriteGradebook_NoEnrollments(t *testing.T) {
	snap := sampleSnapshot()
	snap.Enrollments = nil

	var buf bytes.Buffer
	if err := report.WriteGradebook(&buf, snap, nil, now); err != nil {
		t.Fatalf("WriteGradebook() error = %v", err)
	}
	rows, err := openWorkbook(t, &buf).GetRows("Grades")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want header only", len(rows))
	}
}
