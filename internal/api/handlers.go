package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

type handler struct {
	svc       *attendance.Service
	campus    attendance.Campus
	geoPolicy attendance.GeoPolicy
}

func (h *handler) createRecord(c echo.Context) error {
	var ev models.AttendanceEvent
	if err := c.Bind(&ev); err != nil {
		return err
	}
	ev.Status = normalizeStatus(ev.Status)
	rec, err := h.svc.MarkManual(c.Request().Context(), principal(c), caller(c), ev)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *handler) getRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := attendance.CanViewStudent(principal(c), rec.StudentID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *handler) updateRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	rec, err := h.svc.UpdateStatus(c.Request().Context(), principal(c), caller(c),
		id, normalizeStatus(models.AttendanceStatus(req.Status)), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *handler) listAudit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.svc.ListAudit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"attendance_id": id, "entries": entries})
}

func (h *handler) studentRecords(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := attendance.CanViewStudent(principal(c), id); err != nil {
		return err
	}
	start, err := queryDate(c, "start_date", "start")
	if err != nil {
		return err
	}
	end, err := queryDate(c, "end_date", "end")
	if err != nil {
		return err
	}
	subject, err := queryInt64(c, "subject", "subject_id")
	if err != nil {
		return err
	}
	statuses, err := queryStatuses(c)
	if err != nil {
		return err
	}
	recs, err := h.svc.QueryStudent(c.Request().Context(), id, attendance.DateRange{Start: start, End: end}, subject, statuses...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"student_id": id, "records": recs})
}
