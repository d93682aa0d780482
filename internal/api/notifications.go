package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/models"
)

func (h *handler) createNotification(c echo.Context) error {
	var req attendance.NotificationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	n, err := h.svc.CreateNotification(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

type notificationStatusRequest struct {
	Status       string  `json:"status" validate:"required"`
	ErrorMessage *string `json:"error_message" validate:"omitempty,max=2000"`
}

func (h *handler) updateNotification(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req notificationStatusRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	n, err := h.svc.UpdateNotificationStatus(c.Request().Context(), id, models.DeliveryStatus(req.Status), req.ErrorMessage)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *handler) pendingNotifications(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return apperr.Invalid("limit", "must be a positive integer")
		}
		limit = n
	}
	ns, err := h.svc.PendingNotifications(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": ns})
}
