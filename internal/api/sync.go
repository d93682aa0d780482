package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/models"
)

type syncRequest struct {
	DeviceID string                 `json:"device_id" validate:"required,max=255"`
	Records  []models.OfflineRecord `json:"sync_data"`
}

// submitSync stores the batch and replays it in the same request.
func (h *handler) submitSync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	b, err := h.svc.SubmitBatch(ctx, req.DeviceID, req.Records)
	if err != nil {
		return err
	}
	if _, err := h.svc.ProcessBatch(ctx, b.BatchID, principal(c), caller(c)); err != nil {
		return h.replayFailed(c, b.BatchID, err)
	}
	b, err = h.svc.GetBatch(ctx, b.BatchID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *handler) getBatch(c echo.Context) error {
	b, err := h.svc.GetBatch(c.Request().Context(), c.Param("batchId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// processBatch replays a PENDING batch. Terminal batches answer
// processed=false.
func (h *handler) processBatch(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("batchId")
	ok, err := h.svc.ProcessBatch(ctx, id, principal(c), caller(c))
	if err != nil {
		return h.replayFailed(c, id, err)
	}
	b, err := h.svc.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"processed": ok, "batch": b})
}

// replayFailed answers 422 with the FAILED batch. Other errors go to the
// error handler.
func (h *handler) replayFailed(c echo.Context, batchID string, err error) error {
	var be *apperr.BatchReplayError
	if !errors.As(err, &be) {
		return err
	}
	b, gerr := h.svc.GetBatch(context.WithoutCancel(c.Request().Context()), batchID)
	if gerr != nil {
		return err
	}
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": be.Error(), "batch": b})
}
