package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/logging"
	"github.com/Spok95/campus-attendance/internal/observability"
)

// newErrorHandler maps the apperr taxonomy to status codes. Only 5xx
// responses are logged as errors and reported.
func newErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := errorResponse(err)
		if code >= http.StatusInternalServerError {
			ctx := c.Request().Context()
			logging.FromContext(ctx, log).Error("request failed", zap.Error(err))
			observability.CaptureCtxErr(ctx, err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func errorResponse(err error) (int, any) {
	var (
		he *echo.HTTPError
		be *apperr.BatchReplayError
		ve *apperr.ValidationError
	)
	switch {
	case errors.As(err, &he):
		if inner, ok := he.Internal.(*echo.HTTPError); ok {
			he = inner
		}
		if m, ok := he.Message.(string); ok {
			return he.Code, echo.Map{"error": m}
		}
		return he.Code, he.Message
	case errors.As(err, &be):
		return http.StatusUnprocessableEntity, echo.Map{"error": be.Error()}
	case errors.As(err, &ve):
		if len(ve.Fields) == 0 {
			return http.StatusBadRequest, echo.Map{"error": ve.Error()}
		}
		fields := make(map[string]string, len(ve.Fields))
		for _, f := range ve.Fields {
			fields[f.Field] = f.Error
		}
		return http.StatusBadRequest, fields
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, echo.Map{"error": err.Error()}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, echo.Map{"error": err.Error()}
	case errors.Is(err, apperr.ErrInvalidOrExpired):
		return http.StatusGone, echo.Map{"error": err.Error()}
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, echo.Map{"error": err.Error()}
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized, echo.Map{"error": err.Error()}
	}
	return http.StatusInternalServerError, echo.Map{"error": http.StatusText(http.StatusInternalServerError)}
}
