package api

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) timeFrames(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"time_frames": attendance.TimeFrames})
}

func (h *handler) studentSummary(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := attendance.CanViewStudent(principal(c), id); err != nil {
		return err
	}
	rng, err := reportRange(c, h.svc)
	if err != nil {
		return err
	}
	subject, err := queryInt64(c, "subject", "subject_id")
	if err != nil {
		return err
	}
	report, err := h.svc.StudentSummary(c.Request().Context(), id, rng, subject)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handler) classReport(c echo.Context) (attendance.ClassReport, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return attendance.ClassReport{}, err
	}
	rng, err := reportRange(c, h.svc)
	if err != nil {
		return attendance.ClassReport{}, err
	}
	subject, err := queryInt64(c, "subject", "subject_id")
	if err != nil {
		return attendance.ClassReport{}, err
	}
	period, err := queryInt(c, "period")
	if err != nil {
		return attendance.ClassReport{}, err
	}
	return h.svc.ClassSummary(c.Request().Context(), id, rng, subject, period)
}

func (h *handler) classSummary(c echo.Context) error {
	report, err := h.classReport(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handler) classExport(c echo.Context) error {
	report, err := h.classReport(c)
	if err != nil {
		return err
	}
	b, err := export.ClassReportXLSX(report)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": export.ClassReportFilename(report)}))
	return c.Blob(http.StatusOK, xlsxContentType, b)
}
