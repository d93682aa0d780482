package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func TestClassReportXLSX(t *testing.T) {
	day := models.DateOf(2024, time.March, 4)
	recs := []models.AttendanceRecord{
		{StudentID: 1, SubjectID: 3, TeacherID: 9, Date: day, PeriodNumber: 1, Status: models.StatusPresent, MarkingMethod: models.MethodManual},
		{StudentID: 2, SubjectID: 3, TeacherID: 9, Date: day, PeriodNumber: 1, Status: models.StatusAbsent, MarkingMethod: models.MethodQRCode},
	}
	report := attendance.ClassReport{
		ClassSectionID: 7,
		Range:          attendance.DateRange{Start: day, End: day},
		Aggregate:      attendance.ComputeStats(recs),
		Students: []attendance.StudentStats{
			{StudentID: 1, Stats: attendance.ComputeStats(recs[:1])},
			{StudentID: 2, Stats: attendance.ComputeStats(recs[1:])},
		},
		Records: recs,
	}

	b, err := ClassReportXLSX(report)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("summary rows = %d, want header + 2 students + total", len(rows))
	}
	if rows[3][0] != "All" || rows[3][1] != "2" || rows[3][6] != "50" {
		t.Fatalf("aggregate row: %v", rows[3])
	}

	rows, err = f.GetRows(recordsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2][5] != "ABSENT" || rows[2][6] != "QR_CODE" {
		t.Fatalf("records: %v", rows)
	}
}

func TestClassReportFilename(t *testing.T) {
	day := models.DateOf(2024, time.March, 4)
	got := ClassReportFilename(attendance.ClassReport{ClassSectionID: 7, Range: attendance.DateRange{Start: day, End: day}})
	if got != "attendance class 7 2024-03-04..2024-03-04.xlsx" {
		t.Fatalf("filename = %q", got)
	}
}

func TestColumnName(t *testing.T) {
	for n, want := range map[int]string{1: "A", 26: "Z", 27: "AA", 28: "AB"} {
		if got := columnName(n); got != want {
			t.Fatalf("columnName(%d) = %s, want %s", n, got, want)
		}
	}
}
