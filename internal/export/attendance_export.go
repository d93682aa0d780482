package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/campus-attendance/internal/attendance"
)

const (
	summarySheet = "Summary"
	recordsSheet = "Records"
)

// ClassReportFilename names the export of a class report.
func ClassReportFilename(r attendance.ClassReport) string {
	name := fmt.Sprintf("attendance class %d %s..%s.xlsx", r.ClassSectionID, r.Range.Start, r.Range.End)
	return sanitizeFileName(name)
}

// ClassReportXLSX renders a class report as a workbook with one row per
// student on Summary and one row per record on Records.
func ClassReportXLSX(r attendance.ClassReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	summary := [][]any{{"Student", "Total", "Present", "Absent", "Late", "On leave", "Attendance %"}}
	for _, s := range r.Students {
		summary = append(summary, statsRow(s.StudentID, s.Stats))
	}
	summary = append(summary, statsRow("All", r.Aggregate))
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}
	records := [][]any{{"Date", "Period", "Student", "Subject", "Teacher", "Status", "Method", "Remarks"}}
	for _, rec := range r.Records {
		remarks := ""
		if rec.Remarks != nil {
			remarks = *rec.Remarks
		}
		records = append(records, []any{
			rec.Date.String(), rec.PeriodNumber, rec.StudentID, rec.SubjectID, rec.TeacherID,
			string(rec.Status), string(rec.MarkingMethod), remarks,
		})
	}
	if err := writeRows(f, recordsSheet, records); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func statsRow(label any, st attendance.Stats) []any {
	return []any{label, st.TotalClasses, st.Present, st.Absent, st.Late, st.OnLeave, st.Percentage}
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, cell(1, i+1), &row); err != nil {
			return err
		}
	}
	return ApplyDefaultFormatting(f, sheet)
}
