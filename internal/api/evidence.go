package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func (h *handler) issueQR(c echo.Context) error {
	var req attendance.IssueQRRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	qr, err := h.svc.IssueQRCode(c.Request().Context(), principal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, qr)
}

// scanDevice describes the scanning client when the body carries no device
// info of its own.
func scanDevice(c echo.Context) json.RawMessage {
	cl := caller(c)
	b, _ := json.Marshal(cl)
	return b
}

func (h *handler) verifyQR(c echo.Context) error {
	qr, err := h.svc.VerifyQRCode(c.Request().Context(), c.Param("code"), attendance.ScanMetadata{DeviceInfo: scanDevice(c)})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, qr)
}

type qrCheckInRequest struct {
	Code       string                 `json:"qr_code" validate:"required,max=255"`
	DeviceInfo json.RawMessage        `json:"device_info,omitempty"`
	Attendance models.AttendanceEvent `json:"attendance" validate:"-"`
}

func (h *handler) qrCheckIn(c echo.Context) error {
	var req qrCheckInRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := attendance.CanCheckIn(principal(c), req.Attendance.StudentID); err != nil {
		return err
	}
	scan := attendance.ScanMetadata{DeviceInfo: req.DeviceInfo}
	if len(scan.DeviceInfo) == 0 {
		scan.DeviceInfo = scanDevice(c)
	}
	req.Attendance.Status = normalizeStatus(req.Attendance.Status)
	rec, qr, err := h.svc.CheckInWithQR(c.Request().Context(), principal(c), caller(c), req.Code, scan, req.Attendance)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"attendance": rec, "qr_code": qr})
}

func (h *handler) qrImage(c echo.Context) error {
	size := 0
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Invalid("size", "must be an integer")
		}
		size = n
	}
	png, err := attendance.RenderQRCodePNG(c.Param("code"), size)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

type geolocationRequest struct {
	attendance.GeoSubmission
	// Attendance turns the submission into a check-in.
	Attendance *models.AttendanceEvent `json:"attendance,omitempty"`
}

func (h *handler) geolocation(c echo.Context) error {
	var req geolocationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if req.Attendance == nil {
		g, err := h.svc.SubmitGeolocation(ctx, req.GeoSubmission, h.campus)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, g)
	}

	ev := *req.Attendance
	if err := attendance.CanCheckIn(principal(c), ev.StudentID); err != nil {
		return err
	}
	ev.Status = normalizeStatus(ev.Status)
	rec, g, err := h.svc.CheckInWithGeolocation(ctx, principal(c), caller(c), req.GeoSubmission, h.campus, ev, h.geoPolicy)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"attendance": rec, "geolocation": g})
}
