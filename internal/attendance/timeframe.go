package attendance

import (
	"strings"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

type TimeFrame string

const (
	FrameDaily   TimeFrame = "daily"
	FrameWeekly  TimeFrame = "weekly"
	FrameMonthly TimeFrame = "monthly"
	FrameCustom  TimeFrame = "custom"
)

var TimeFrames = []TimeFrame{FrameDaily, FrameWeekly, FrameMonthly, FrameCustom}

func ParseTimeFrame(s string) (TimeFrame, bool) {
	switch f := TimeFrame(strings.ToLower(strings.TrimSpace(s))); f {
	case FrameDaily, FrameWeekly, FrameMonthly, FrameCustom:
		return f, true
	}
	return "", false
}

// TimeFrameToDateRange derives the default range ending at ref. Weeks start on
// Monday. For FrameCustom the caller's own dates win, so (ref, ref) is
// returned.
func TimeFrameToDateRange(frame TimeFrame, ref models.Date) (start, end models.Date) {
	end = ref
	switch frame {
	case FrameWeekly:
		offset := (int(ref.Weekday()) + 6) % 7
		start = models.NewDate(ref.AddDate(0, 0, -offset))
	case FrameMonthly:
		start = models.DateOf(ref.Year(), ref.Month(), 1)
	default:
		start = ref
	}
	return start, end
}

// DateRange is an inclusive calendar range. A zero bound is open.
type DateRange struct {
	Start models.Date `json:"start_date"`
	End   models.Date `json:"end_date"`
}

func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End.Time) {
		return apperr.Invalid("start_date", "must not be after end_date")
	}
	return nil
}

func (r DateRange) filter() models.RecordFilter {
	var f models.RecordFilter
	if !r.Start.IsZero() {
		t := r.Start.Time
		f.From = &t
	}
	if !r.End.IsZero() {
		t := r.End.Time
		f.To = &t
	}
	return f
}

// Today is the current calendar date in the configured location.
func (s *Service) Today() models.Date {
	return models.NewDate(s.now().In(s.loc))
}

// ResolveRange turns report parameters into a concrete range. FrameCustom
// needs both dates; other frames end at end, or today when end is zero.
func (s *Service) ResolveRange(frame TimeFrame, start, end models.Date) (DateRange, error) {
	if frame == "" {
		frame = FrameCustom
		if start.IsZero() && end.IsZero() {
			frame = FrameMonthly
		}
	}
	if frame == FrameCustom {
		var fields []apperr.FieldError
		if start.IsZero() {
			fields = append(fields, apperr.FieldError{Field: "start_date", Error: "is required for a custom time frame"})
		}
		if end.IsZero() {
			fields = append(fields, apperr.FieldError{Field: "end_date", Error: "is required for a custom time frame"})
		}
		if len(fields) > 0 {
			return DateRange{}, apperr.NewValidationError(nil, fields...)
		}
		r := DateRange{Start: start, End: end}
		return r, r.Validate()
	}
	ref := end
	if ref.IsZero() {
		ref = s.Today()
	}
	from, to := TimeFrameToDateRange(frame, ref)
	return DateRange{Start: from, End: to}, nil
}
