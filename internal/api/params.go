package api

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// firstQuery returns the first non-empty query value among names.
func firstQuery(c echo.Context, names ...string) (string, string) {
	for _, n := range names {
		if v := strings.TrimSpace(c.QueryParam(n)); v != "" {
			return n, v
		}
	}
	return names[0], ""
}

func queryDate(c echo.Context, names ...string) (models.Date, error) {
	name, v := firstQuery(c, names...)
	if v == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return models.Date{}, apperr.Invalid(name, "want YYYY-MM-DD")
	}
	return d, nil
}

func queryInt64(c echo.Context, names ...string) (*int64, error) {
	name, v := firstQuery(c, names...)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return nil, apperr.Invalid(name, "must be a positive integer")
	}
	return &n, nil
}

func queryInt(c echo.Context, name string) (*int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, apperr.Invalid(name, "must be a non-negative integer")
	}
	return &n, nil
}

// queryStatuses accepts repeated and comma-separated status values.
func queryStatuses(c echo.Context) ([]models.AttendanceStatus, error) {
	var out []models.AttendanceStatus
	for _, raw := range c.QueryParams()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, ok := models.ParseStatus(part)
			if !ok {
				return nil, apperr.Invalid("status", "must be one of "+models.StatusNames())
			}
			out = append(out, st)
		}
	}
	return out, nil
}

// reportRange reads frame, start_date and end_date. A date parameter
// selects that single day.
func reportRange(c echo.Context, svc *attendance.Service) (attendance.DateRange, error) {
	day, err := queryDate(c, "date")
	if err != nil {
		return attendance.DateRange{}, err
	}
	if !day.IsZero() {
		return attendance.DateRange{Start: day, End: day}, nil
	}

	var frame attendance.TimeFrame
	if v := c.QueryParam("frame"); v != "" {
		f, ok := attendance.ParseTimeFrame(v)
		if !ok {
			return attendance.DateRange{}, apperr.Invalid("frame", "must be one of daily, weekly, monthly, custom")
		}
		frame = f
	}
	start, err := queryDate(c, "start_date", "start")
	if err != nil {
		return attendance.DateRange{}, err
	}
	end, err := queryDate(c, "end_date", "end")
	if err != nil {
		return attendance.DateRange{}, err
	}
	return svc.ResolveRange(frame, start, end)
}

func normalizeStatus(s models.AttendanceStatus) models.AttendanceStatus {
	if st, ok := models.ParseStatus(string(s)); ok {
		return st
	}
	return s
}
