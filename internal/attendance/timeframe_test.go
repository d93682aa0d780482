package attendance_test

import (
	"testing"
	"time"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func TestTimeFrameToDateRange(t *testing.T) {
	wed := models.DateOf(2024, time.March, 6)
	sun := models.DateOf(2024, time.March, 10)
	mon := models.DateOf(2024, time.March, 4)

	cases := []struct {
		name       string
		frame      attendance.TimeFrame
		ref        models.Date
		start, end string
	}{
		{"daily", attendance.FrameDaily, wed, "2024-03-06", "2024-03-06"},
		{"weekly from wednesday", attendance.FrameWeekly, wed, "2024-03-04", "2024-03-06"},
		{"weekly from sunday", attendance.FrameWeekly, sun, "2024-03-04", "2024-03-10"},
		{"weekly from monday", attendance.FrameWeekly, mon, "2024-03-04", "2024-03-04"},
		{"monthly", attendance.FrameMonthly, wed, "2024-03-01", "2024-03-06"},
		{"weekly across month", attendance.FrameWeekly, models.DateOf(2024, time.March, 1), "2024-02-26", "2024-03-01"},
		{"custom", attendance.FrameCustom, wed, "2024-03-06", "2024-03-06"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := attendance.TimeFrameToDateRange(tc.frame, tc.ref)
			if start.String() != tc.start || end.String() != tc.end {
				t.Fatalf("got %s..%s, want %s..%s", start, end, tc.start, tc.end)
			}
		})
	}
}

func TestResolveRange(t *testing.T) {
	svc, _ := newService(t)
	// newService clock is 2024-03-06 (a Wednesday)

	r, err := svc.ResolveRange(attendance.FrameWeekly, models.Date{}, models.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Start.String() != "2024-03-04" || r.End.String() != "2024-03-06" {
		t.Fatalf("weekly default: %s..%s", r.Start, r.End)
	}

	if _, err := svc.ResolveRange(attendance.FrameCustom, models.DateOf(2024, time.March, 1), models.Date{}); !apperr.IsValidation(err) {
		t.Fatalf("custom without end: %v", err)
	}
	if _, err := svc.ResolveRange(attendance.FrameCustom, models.DateOf(2024, time.March, 9), models.DateOf(2024, time.March, 1)); !apperr.IsValidation(err) {
		t.Fatalf("inverted custom: %v", err)
	}
	c, err := svc.ResolveRange("", models.DateOf(2024, time.January, 1), models.DateOf(2024, time.January, 31))
	if err != nil || c.Start.String() != "2024-01-01" || c.End.String() != "2024-01-31" {
		t.Fatalf("explicit dates: %+v %v", c, err)
	}
}

func TestResolveRange_TodayInLocation(t *testing.T) {
	// 22:30 UTC on the 6th is already the 7th in Vladivostok
	loc := time.FixedZone("VLAT", 10*3600)
	svc, _ := newService(t, func(o *attendance.Options) {
		o.Now = func() time.Time { return time.Date(2024, time.March, 6, 22, 30, 0, 0, time.UTC) }
		o.Location = loc
	})
	r, err := svc.ResolveRange(attendance.FrameDaily, models.Date{}, models.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Start.String() != "2024-03-07" {
		t.Fatalf("today = %s", r.Start)
	}
}

func TestParseTimeFrame(t *testing.T) {
	if f, ok := attendance.ParseTimeFrame(" Weekly "); !ok || f != attendance.FrameWeekly {
		t.Fatalf("got %q %v", f, ok)
	}
	if _, ok := attendance.ParseTimeFrame("yearly"); ok {
		t.Fatal("yearly is not a frame")
	}
}
