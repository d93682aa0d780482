package attendance

import (
	"context"
	"sort"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

type Stats struct {
	TotalClasses int     `json:"total_classes"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Late         int     `json:"late"`
	OnLeave      int     `json:"on_leave"`
	Percentage   float64 `json:"attendance_percentage"`
}

// ComputeStats counts statuses. LATE counts as attended.
func ComputeStats(recs []models.AttendanceRecord) Stats {
	var st Stats
	for _, r := range recs {
		st.add(r.Status)
	}
	st.finish()
	return st
}

func (st *Stats) add(s models.AttendanceStatus) {
	st.TotalClasses++
	switch s {
	case models.StatusPresent:
		st.Present++
	case models.StatusAbsent:
		st.Absent++
	case models.StatusLate:
		st.Late++
	case models.StatusOnLeave:
		st.OnLeave++
	}
}

func (st *Stats) finish() {
	if st.TotalClasses == 0 {
		st.Percentage = 0
		return
	}
	st.Percentage = float64(st.Present+st.Late) * 100 / float64(st.TotalClasses)
}

type DailyRecord struct {
	Date         models.Date             `json:"date"`
	PeriodNumber int                     `json:"period_number"`
	SubjectID    int64                   `json:"subject_id"`
	Status       models.AttendanceStatus `json:"status"`
}

type StudentReport struct {
	StudentID    int64         `json:"student_id"`
	Range        DateRange     `json:"range"`
	SubjectID    *int64        `json:"subject_id,omitempty"`
	Stats        Stats         `json:"stats"`
	DailyRecords []DailyRecord `json:"daily_records"`
}

type StudentStats struct {
	StudentID int64 `json:"student_id"`
	Stats
}

type ClassReport struct {
	ClassSectionID int64          `json:"class_section_id"`
	Range          DateRange      `json:"range"`
	SubjectID      *int64         `json:"subject_id,omitempty"`
	PeriodNumber   *int           `json:"period_number,omitempty"`
	Aggregate      Stats          `json:"aggregate"`
	Students       []StudentStats `json:"students"`
	DailyRecords   []DailyRecord  `json:"daily_records"`
	// Records backs the xlsx export; it is not serialized.
	Records []models.AttendanceRecord `json:"-"`
}

func dailyRecords(recs []models.AttendanceRecord) []DailyRecord {
	out := make([]DailyRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, DailyRecord{Date: r.Date, PeriodNumber: r.PeriodNumber, SubjectID: r.SubjectID, Status: r.Status})
	}
	return out
}

func (s *Service) StudentSummary(ctx context.Context, studentID int64, rng DateRange, subjectID *int64) (StudentReport, error) {
	recs, err := s.QueryStudent(ctx, studentID, rng, subjectID)
	if err != nil {
		return StudentReport{}, err
	}
	return StudentReport{
		StudentID:    studentID,
		Range:        rng,
		SubjectID:    subjectID,
		Stats:        ComputeStats(recs),
		DailyRecords: dailyRecords(recs),
	}, nil
}

// ClassSummary groups the class's records by student and adds one aggregate
// over every matched record. Students are ordered by id.
func (s *Service) ClassSummary(ctx context.Context, classID int64, rng DateRange, subjectID *int64, period *int) (ClassReport, error) {
	if err := rng.Validate(); err != nil {
		return ClassReport{}, err
	}
	f := rng.filter()
	f.ClassSectionID = &classID
	f.SubjectID = subjectID
	f.PeriodNumber = period
	recs, err := s.store.QueryRecords(ctx, f)
	if err != nil {
		return ClassReport{}, apperr.Persistence("query class attendance", err)
	}

	byStudent := make(map[int64]*Stats)
	var agg Stats
	for _, r := range recs {
		st, ok := byStudent[r.StudentID]
		if !ok {
			st = &Stats{}
			byStudent[r.StudentID] = st
		}
		st.add(r.Status)
		agg.add(r.Status)
	}
	agg.finish()

	students := make([]StudentStats, 0, len(byStudent))
	for id, st := range byStudent {
		st.finish()
		students = append(students, StudentStats{StudentID: id, Stats: *st})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })

	return ClassReport{
		ClassSectionID: classID,
		Range:          rng,
		SubjectID:      subjectID,
		PeriodNumber:   period,
		Aggregate:      agg,
		Students:       students,
		DailyRecords:   dailyRecords(recs),
		Records:        recs,
	}, nil
}
